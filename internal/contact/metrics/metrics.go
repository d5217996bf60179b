package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"contactlink/internal/contact/models"
)

type Metrics struct {
	ContactsCreated   *prometheus.CounterVec
	ContactsDemoted   prometheus.Counter
	ContactsRelinked  prometheus.Counter
	IdentifyRequests  *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	ClusterSize       prometheus.Histogram
}

// New registers the contact metrics on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ContactsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contactlink_contacts_created_total",
			Help: "Total number of contacts created, by link precedence",
		}, []string{"precedence"}),
		ContactsDemoted: factory.NewCounter(prometheus.CounterOpts{
			Name: "contactlink_contacts_demoted_total",
			Help: "Total number of primary contacts demoted while merging clusters",
		}),
		ContactsRelinked: factory.NewCounter(prometheus.CounterOpts{
			Name: "contactlink_contacts_relinked_total",
			Help: "Total number of secondary contacts re-pointed at a new primary",
		}),
		IdentifyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contactlink_identify_requests_total",
			Help: "Total number of identify requests, by outcome",
		}, []string{"outcome"}),
		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contactlink_reconcile_duration_seconds",
			Help:    "Duration of a reconciliation including lock wait and commit",
			Buckets: prometheus.DefBuckets,
		}),
		ClusterSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contactlink_cluster_size",
			Help:    "Number of contacts in the resolved cluster",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		}),
	}
}

func (m *Metrics) ObserveResult(result *models.ReconcileResult, seconds float64) {
	if result.Created != nil {
		m.ContactsCreated.WithLabelValues(string(result.Created.LinkPrecedence)).Inc()
	}
	m.ContactsDemoted.Add(float64(len(result.Demoted)))
	m.ContactsRelinked.Add(float64(len(result.Relinked)))
	m.ClusterSize.Observe(float64(len(result.View.SecondaryIDs) + 1))
	m.ReconcileDuration.Observe(seconds)
}

func (m *Metrics) IncrementOutcome(outcome string) {
	m.IdentifyRequests.WithLabelValues(outcome).Inc()
}
