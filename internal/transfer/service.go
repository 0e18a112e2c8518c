package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/core/events"
	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/policy"
	"github.com/miyuou/smartticket/internal/ticket"
)

type Config struct {
	// ImportMode is internal.ImportModeAtomic or internal.ImportModeBestEffort.
	ImportMode string
}

type Service struct {
	repo      ticket.RepositoryAPI
	exporter  ExporterAPI
	publisher events.Publisher
	cfg       Config
	logger    *slog.Logger
	onDeny    func(op policy.Operation, reason policy.Reason)
}

func NewService(repo ticket.RepositoryAPI, exporter ExporterAPI, publisher events.Publisher, cfg Config, logger *slog.Logger) *Service {
	if cfg.ImportMode == "" {
		cfg.ImportMode = internal.ImportModeAtomic
	}
	return &Service{
		repo:      repo,
		exporter:  exporter,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// OnDeny registers a callback run when an import or export is refused.
func (s *Service) OnDeny(fn func(op policy.Operation, reason policy.Reason)) {
	s.onDeny = fn
}

func (s *Service) authorize(ctx context.Context, p identity.Principal, op policy.Operation) (policy.Decision, error) {
	d := policy.Authorize(p, op, nil)
	if !d.Allowed {
		s.logger.WarnContext(ctx, "transfer access denied",
			"user_id", p.UserID,
			"role", p.Role.String(),
			"operation", string(op),
			"reason", string(d.Reason))
		if s.onDeny != nil {
			s.onDeny(op, d.Reason)
		}
		return d, d.Err()
	}
	return d, nil
}

// Import creates one ticket per CSV row. In atomic mode any bad row
// rejects the whole file; in best effort mode good rows are kept.
func (s *Service) Import(ctx context.Context, p identity.Principal, r io.Reader) (*ImportSummary, error) {
	if _, err := s.authorize(ctx, p, policy.OpImport); err != nil {
		return nil, err
	}

	rows, err := ParseTickets(r)
	if err != nil {
		return nil, err
	}

	var summary *ImportSummary
	if s.cfg.ImportMode == internal.ImportModeBestEffort {
		summary, err = s.importBestEffort(ctx, rows)
	} else {
		summary, err = s.importAtomic(ctx, rows)
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tickets imported",
		"mode", s.cfg.ImportMode,
		"imported", summary.Imported,
		"failed", summary.Failed,
		"by", p.UserID)

	if s.publisher != nil {
		event := events.NewTicketsImportedEvent(p.UserID, summary.Imported, summary.Failed)
		if err := s.publisher.PublishSync(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish import event", "error", err)
		}
	}
	return summary, nil
}

func (s *Service) importAtomic(ctx context.Context, rows []Row) (*ImportSummary, error) {
	var rowErrors []RowError
	for _, row := range rows {
		if err := checkRow(row); err != nil {
			rowErrors = append(rowErrors, RowError{Row: row.Line, Message: rowMessage(err)})
		}
	}
	if len(rowErrors) > 0 {
		return nil, importFailed(rowErrors)
	}

	err := s.repo.WithTx(ctx, func(tx ticket.RepositoryAPI) error {
		for _, row := range rows {
			if err := tx.Create(ctx, row.DTO.ToDataModel()); err != nil {
				if _, ok := internal.IsAppError(err); ok {
					return importFailed([]RowError{{Row: row.Line, Message: rowMessage(err)}})
				}
				return fmt.Errorf("import row %d: %w", row.Line, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ImportSummary{
		Msg:      "Import completed",
		Imported: len(rows),
		Errors:   []RowError{},
	}, nil
}

func (s *Service) importBestEffort(ctx context.Context, rows []Row) (*ImportSummary, error) {
	summary := &ImportSummary{Errors: []RowError{}}
	for _, row := range rows {
		err := checkRow(row)
		if err == nil {
			err = s.repo.WithTx(ctx, func(tx ticket.RepositoryAPI) error {
				return tx.Create(ctx, row.DTO.ToDataModel())
			})
		}
		if err != nil {
			if _, ok := internal.IsAppError(err); !ok && row.Err == nil {
				s.logger.ErrorContext(ctx, "import row failed", "row", row.Line, "error", err)
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, RowError{Row: row.Line, Message: rowMessage(err)})
			continue
		}
		summary.Imported++
	}

	summary.Msg = "Import completed"
	if summary.Failed > 0 {
		summary.Msg = "Import completed with errors"
	}
	return summary, nil
}

// Export writes the caller's visible tickets as CSV.
func (s *Service) Export(ctx context.Context, p identity.Principal, w io.Writer) error {
	d, err := s.authorize(ctx, p, policy.OpExport)
	if err != nil {
		return err
	}

	rows, err := s.exporter.ExportRows(ctx, d.Scope.Filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read tickets for export", "error", err, "user_id", p.UserID)
		return err
	}

	var buf bytes.Buffer
	if err := WriteTickets(&buf, rows); err != nil {
		return internal.NewInternalError("failed to encode export", err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "tickets exported", "count", len(rows), "user_id", p.UserID)
	return nil
}

func checkRow(row Row) error {
	if row.Err != nil {
		return row.Err
	}
	return row.DTO.Validate()
}

func rowMessage(err error) string {
	if appErr, ok := internal.IsAppError(err); ok {
		if details, ok := appErr.Details.(internal.ValidationErrors); ok && len(details.Errors) > 0 {
			return appErr.GetDetailedMessage()
		}
		return appErr.Message
	}
	return err.Error()
}

func importFailed(rowErrors []RowError) error {
	msg := fmt.Sprintf("row %d: %s", rowErrors[0].Row, rowErrors[0].Message)
	if len(rowErrors) > 1 {
		msg = fmt.Sprintf("%s (and %d more rows)", msg, len(rowErrors)-1)
	}
	return internal.NewValidationError(msg, internal.ErrCodeImportFailed).
		WithDetails(map[string]interface{}{"errors": rowErrors})
}
