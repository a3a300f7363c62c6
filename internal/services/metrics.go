package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carshare_booking_transitions_total",
		Help: "Booking lifecycle transitions by operation and outcome",
	}, []string{"operation", "outcome"})

	ledgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carshare_wallet_ledger_entries_total",
		Help: "Wallet ledger rows written by transaction type",
	}, []string{"type"})

	paymentCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carshare_payment_callbacks_total",
		Help: "Payment gateway callbacks by purpose and outcome",
	}, []string{"purpose", "outcome"})

	notificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carshare_notification_failures_total",
		Help: "Notifications that could not be delivered, by channel",
	}, []string{"channel"})

	remindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carshare_trip_reminders_sent_total",
		Help: "Trip reminders sent by kind",
	}, []string{"kind"})
)

// observeTransition counts a transition attempt
func observeTransition(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	bookingTransitions.WithLabelValues(operation, outcome).Inc()
}
