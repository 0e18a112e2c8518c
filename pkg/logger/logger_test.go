package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/miyuou/smartticket/pkg/logger"
)

var _ = Describe("Logger", func() {
	DescribeTable("ParseLevel",
		func(in string, want slog.Level) {
			Expect(logger.ParseLevel(in)).To(Equal(want))
		},
		Entry("debug", "debug", slog.LevelDebug),
		Entry("warning alias", " WARNING ", slog.LevelWarn),
		Entry("error", "error", slog.LevelError),
		Entry("unknown falls back to info", "verbose", slog.LevelInfo),
	)

	It("writes JSON at the configured level", func() {
		var buf bytes.Buffer
		lg := logger.Configure(logger.Options{Format: "json", Level: "warn", Output: &buf})

		lg.Info("dropped")
		lg.Warn("kept", "ticket_id", 7)

		var rec map[string]interface{}
		Expect(json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec)).To(Succeed())
		Expect(rec).To(HaveKeyWithValue("msg", "kept"))
		Expect(rec).To(HaveKeyWithValue("ticket_id", BeNumerically("==", 7)))
	})

	It("carries fields through the context", func() {
		var buf bytes.Buffer
		logger.Configure(logger.Options{Format: "json", Level: "info", Output: &buf})

		ctx := logger.With(context.Background(), "request_id", "r-1")
		ctx = logger.With(ctx, "user_id", 3)
		logger.From(ctx).Info("hello")

		Expect(buf.String()).To(ContainSubstring(`"request_id":"r-1"`))
		Expect(buf.String()).To(ContainSubstring(`"user_id":3`))
	})

	It("falls back to the process logger", func() {
		Expect(logger.From(context.Background())).NotTo(BeNil())
	})
})
