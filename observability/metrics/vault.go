package metrics

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DonationMetrics tracks the donation engine.
type DonationMetrics struct {
	donations      *prometheus.CounterVec
	fundsRaised    prometheus.Gauge
	unitsRemaining prometheus.Gauge
	unitsGranted   prometheus.Gauge
	registrations  *prometheus.CounterVec
	claims         *prometheus.CounterVec
	refunds        *prometheus.CounterVec
}

// BankMetrics tracks settlement activity.
type BankMetrics struct {
	transfers *prometheus.CounterVec
}

var (
	donationOnce     sync.Once
	donationRegistry *DonationMetrics

	bankOnce     sync.Once
	bankRegistry *BankMetrics
)

// Donation returns the lazily-initialised donation metrics registry.
func Donation() *DonationMetrics {
	donationOnce.Do(func() {
		donationRegistry = &DonationMetrics{
			donations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardvault",
				Name:      "donations_total",
				Help:      "Accepted donations segmented by whether a reward unit was granted.",
			}, []string{"outcome"}),
			fundsRaised: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rewardvault",
				Name:      "funds_raised",
				Help:      "Funds raised since the last claim, in base units (float approximation).",
			}),
			unitsRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rewardvault",
				Name:      "units_remaining",
				Help:      "Reward units still available for donors.",
			}),
			unitsGranted: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rewardvault",
				Name:      "units_granted",
				Help:      "Reward units granted to donors.",
			}),
			registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardvault",
				Name:      "registration_total",
				Help:      "Asset class registration steps segmented by outcome.",
			}, []string{"outcome"}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardvault",
				Name:      "claims_total",
				Help:      "Operator claims segmented by kind.",
			}, []string{"kind"}),
			refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardvault",
				Name:      "refunds_total",
				Help:      "Registration fee refunds segmented by result.",
			}, []string{"result"}),
		}
		prometheus.MustRegister(
			donationRegistry.donations,
			donationRegistry.fundsRaised,
			donationRegistry.unitsRemaining,
			donationRegistry.unitsGranted,
			donationRegistry.registrations,
			donationRegistry.claims,
			donationRegistry.refunds,
		)
	})
	return donationRegistry
}

// RecordDonation counts an accepted donation.
func (m *DonationMetrics) RecordDonation(granted bool) {
	if m == nil {
		return
	}
	outcome := "plain"
	if granted {
		outcome = "granted"
	}
	m.donations.WithLabelValues(outcome).Inc()
}

// ObserveLedger publishes the current counters.
func (m *DonationMetrics) ObserveLedger(fundsRaised *big.Int, granted, remaining uint32) {
	if m == nil {
		return
	}
	if fundsRaised != nil {
		value, _ := new(big.Float).SetInt(fundsRaised).Float64()
		m.fundsRaised.Set(value)
	}
	m.unitsGranted.Set(float64(granted))
	m.unitsRemaining.Set(float64(remaining))
}

// RecordRegistration counts a registration step outcome such as issued,
// succeeded, failed or roles_requested.
func (m *DonationMetrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(label(outcome)).Inc()
}

// RecordClaim counts an operator claim of the given kind.
func (m *DonationMetrics) RecordClaim(kind string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(label(kind)).Inc()
}

// RecordRefund counts a refund attempt result.
func (m *DonationMetrics) RecordRefund(result string) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(label(result)).Inc()
}

// Bank returns the lazily-initialised settlement metrics registry.
func Bank() *BankMetrics {
	bankOnce.Do(func() {
		bankRegistry = &BankMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardvault",
				Subsystem: "bank",
				Name:      "transfers_total",
				Help:      "Settled transfer legs segmented by token identifier.",
			}, []string{"token"}),
		}
		prometheus.MustRegister(bankRegistry.transfers)
	})
	return bankRegistry
}

// RecordTransfer increments the transfer counter for the supplied token.
func (m *BankMetrics) RecordTransfer(token string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(token)
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	m.transfers.WithLabelValues(normalized).Inc()
}

func label(v string) string {
	trimmed := strings.TrimSpace(strings.ToLower(v))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
