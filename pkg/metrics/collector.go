// Package metrics exposes Prometheus instrumentation for the bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_events_total",
			Help: "Payment notifications received, labeled by processing outcome",
		},
		[]string{"outcome"},
	)
	creditedTokensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credited_tokens_total",
			Help: "Recipe tokens credited to user balances",
		},
	)
	debitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_debits_total",
			Help: "Ledger debit attempts labeled by result",
		},
		[]string{"result"},
	)
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_updates_total",
			Help: "Inbound updates labeled by transport mode and status",
		},
		[]string{"mode", "status"},
	)
	fetchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transport_fetch_failures_total",
			Help: "Failed getUpdates fetches in polling mode",
		},
	)
	completionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "completion_duration_seconds",
			Help:    "Duration of completion backend calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outbound notifications labeled by delivery status",
		},
		[]string{"status"},
	)
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

// Payment event outcomes.
const (
	PaymentCredited  = "credited"
	PaymentDuplicate = "duplicate"
	PaymentIgnored   = "ignored"
	PaymentRejected  = "rejected"
	PaymentFailed    = "failed"
)

// RecordPaymentEvent counts one processed payment notification.
func RecordPaymentEvent(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}

	paymentEventsTotal.WithLabelValues(outcome).Inc()
}

// RecordCreditedTokens adds credited tokens to the running total.
func RecordCreditedTokens(tokens int64) {
	if tokens <= 0 {
		return
	}

	creditedTokensTotal.Add(float64(tokens))
}

// RecordDebit counts a ledger debit attempt.
func RecordDebit(applied bool) {
	result := "applied"
	if !applied {
		result = "refused"
	}

	debitsTotal.WithLabelValues(result).Inc()
}

// RecordUpdate counts one inbound update per transport mode.
func RecordUpdate(mode, status string) {
	if mode == "" {
		mode = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	updatesTotal.WithLabelValues(mode, status).Inc()
}

// RecordFetchFailure counts a failed polling fetch.
func RecordFetchFailure() {
	fetchFailuresTotal.Inc()
}

// RecordCompletion records one completion backend call.
func RecordCompletion(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}

	completionDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNotification counts an outbound notification delivery attempt.
func RecordNotification(status string) {
	if status == "" {
		status = "unknown"
	}

	notificationsTotal.WithLabelValues(status).Inc()
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	commandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}
