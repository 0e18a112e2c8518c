package cmd

import (
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miyuou/smartticket/internal/core/events"
	"github.com/miyuou/smartticket/internal/metrics"
	"github.com/miyuou/smartticket/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect the ticket event bus`,
}

var listHandlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List the handlers subscribed per event type",
	Run: func(cmd *cobra.Command, args []string) {
		for _, line := range describeHandlers(newServerEventBus(true)) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	},
}

// newServerEventBus builds the bus with the same subscriptions the server uses.
func newServerEventBus(withMetrics bool) *events.EventBus {
	lg := logger.LoggerWrapper()
	bus := events.NewEventBus(lg)
	audit := events.AuditLogHandler(lg)
	for _, t := range events.TicketEventTypes {
		bus.Subscribe(t, audit)
	}
	if withMetrics {
		metrics.NewCollector(prometheus.NewRegistry()).Subscribe(bus)
	}
	return bus
}

func describeHandlers(bus *events.EventBus) []string {
	counts := bus.HandlerCounts()
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	lines := make([]string, 0, len(types))
	for _, t := range types {
		lines = append(lines, fmt.Sprintf("%-20s %d", t, counts[t]))
	}
	return lines
}

func init() {
	eventCmd.AddCommand(listHandlersCmd)
	rootCmd.AddCommand(eventCmd)
}
