package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	FetchCycles        prometheus.Counter
	EmailsFetched      prometheus.Counter
	EmailsProcessed    prometheus.Counter
	DuplicatesSkipped  prometheus.Counter
	DealsCreated       prometheus.Counter
	DealsMatched       prometheus.Counter
	DocumentsParsed    prometheus.Counter
	DocumentsFailed    prometheus.Counter
	ExtractionFailures prometheus.Counter
	ProcessingTime     prometheus.Histogram
}

// NewMetrics creates metrics registered on the default registry
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting creates metrics on a throwaway registry so tests can
// construct pipelines repeatedly without duplicate-registration panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_intake_fetch_cycles_total",
			Help: "Total number of mailbox fetch cycles",
		}),
		EmailsFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_intake_emails_fetched_total",
			Help: "Total number of candidate emails fetched",
		}),
		EmailsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_intake_emails_processed_total",
			Help: "Total number of emails run through the pipeline",
		}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_intake_duplicates_skipped_total",
			Help: "Total number of already-processed emails skipped",
		}),
		DealsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_intake_deals_created_total",
			Help: "Total number of deals created from inbound email",
		}),
		DealsMatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_intake_deals_matched_total",
			Help: "Total number of emails matched to an existing deal",
		}),
		DocumentsParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_intake_documents_parsed_total",
			Help: "Total number of attachments parsed successfully",
		}),
		DocumentsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_intake_documents_failed_total",
			Help: "Total number of attachments that failed processing",
		}),
		ExtractionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_intake_extraction_failures_total",
			Help: "Total number of failed extraction model calls",
		}),
		ProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_intake_processing_duration_seconds",
			Help:    "Time spent processing one email",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
