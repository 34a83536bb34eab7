package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the billing core's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EventsIngestedTotal    *prometheus.CounterVec
	InvoicesRatedTotal     *prometheus.CounterVec
	InvoiceAmountTotal     *prometheus.CounterVec
	PaymentsTotal          *prometheus.CounterVec
	DunningOutcomesTotal   *prometheus.CounterVec
	WebhookDeliveriesTotal *prometheus.CounterVec
	JobsProcessedTotal     *prometheus.CounterVec
	JobDuration            *prometheus.HistogramVec
	SweepDuration          *prometheus.HistogramVec
	TenantPoolsOpen        prometheus.Gauge
}

// NewMetrics creates and registers all collectors on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		EventsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billingcore_events_ingested_total",
				Help: "Usage events received, split by whether they were new or duplicates",
			},
			[]string{"result"},
		),
		InvoicesRatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billingcore_invoices_rated_total",
				Help: "Invoices produced by the rating engine",
			},
			[]string{"kind", "status"},
		),
		InvoiceAmountTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billingcore_invoice_amount_total",
				Help: "Sum of rated invoice amounts in major currency units",
			},
			[]string{"currency"},
		),
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billingcore_payments_total",
				Help: "Charge attempts against payment providers",
			},
			[]string{"provider", "status"},
		),
		DunningOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billingcore_dunning_outcomes_total",
				Help: "Payment retry outcomes",
			},
			[]string{"outcome"},
		),
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billingcore_webhook_deliveries_total",
				Help: "Outbound webhook delivery attempts",
			},
			[]string{"event_name", "success"},
		),
		JobsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billingcore_jobs_processed_total",
				Help: "Queued work units handled by consumers",
			},
			[]string{"topic", "status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billingcore_job_duration_seconds",
				Help:    "Time spent handling one work unit",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billingcore_sweep_duration_seconds",
				Help:    "Time spent on one periodic sweep across all tenants",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"sweep"},
		),
		TenantPoolsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "billingcore_tenant_pools_open",
				Help: "Tenant connection pools currently held by the registry",
			},
		),
	}

	registry.MustRegister(
		m.EventsIngestedTotal,
		m.InvoicesRatedTotal,
		m.InvoiceAmountTotal,
		m.PaymentsTotal,
		m.DunningOutcomesTotal,
		m.WebhookDeliveriesTotal,
		m.JobsProcessedTotal,
		m.JobDuration,
		m.SweepDuration,
		m.TenantPoolsOpen,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventIngested(duplicate bool) {
	if m == nil {
		return
	}
	result := "new"
	if duplicate {
		result = "duplicate"
	}
	m.EventsIngestedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) InvoiceRated(kind, status, currency string, amount float64) {
	if m == nil {
		return
	}
	m.InvoicesRatedTotal.WithLabelValues(kind, status).Inc()
	if amount > 0 {
		m.InvoiceAmountTotal.WithLabelValues(currency).Add(amount)
	}
}

func (m *Metrics) PaymentAttempted(provider string, success bool) {
	if m == nil {
		return
	}
	status := "failed"
	if success {
		status = "succeeded"
	}
	m.PaymentsTotal.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) DunningOutcome(outcome string) {
	if m == nil {
		return
	}
	m.DunningOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) WebhookDelivered(eventName string, success bool) {
	if m == nil {
		return
	}
	s := "false"
	if success {
		s = "true"
	}
	m.WebhookDeliveriesTotal.WithLabelValues(eventName, s).Inc()
}

func (m *Metrics) JobProcessed(topic string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.JobsProcessedTotal.WithLabelValues(topic, status).Inc()
	m.JobDuration.WithLabelValues(topic).Observe(seconds)
}

func (m *Metrics) SweepObserved(sweep string, seconds float64) {
	if m == nil {
		return
	}
	m.SweepDuration.WithLabelValues(sweep).Observe(seconds)
}

func (m *Metrics) SetTenantPools(n int) {
	if m == nil {
		return
	}
	m.TenantPoolsOpen.Set(float64(n))
}
