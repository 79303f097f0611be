package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patchfinder"

// Drop reasons for responses that never reach extraction.
const (
	DropFetchError   = "fetch_error"
	DropStatus       = "status"
	DropContentType  = "content_type"
	DropParseError   = "parse_error"
	DropCollaborator = "collaborator_error"
)

// Metrics holds the counters of one crawl engine. Each instance owns its
// registry so engines can run side by side.
type Metrics struct {
	Registry *prometheus.Registry

	PagesFetched     *prometheus.CounterVec
	ResponsesDropped *prometheus.CounterVec
	UnitsIssued      prometheus.Counter
	PatchesFound     *prometheus.CounterVec
	AliasesResolved  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages fetched, by resource rule.",
		}, []string{"rule"}),
		ResponsesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_dropped_total",
			Help:      "Responses discarded before extraction, by reason.",
		}, []string{"reason"}),
		UnitsIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_issued_total",
			Help:      "Crawl units handed to fetchers.",
		}),
		PatchesFound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patches_found_total",
			Help:      "Patches accepted into the session, by source.",
		}, []string{"source"}),
		AliasesResolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aliases_resolved_total",
			Help:      "CVE aliases resolved from advisories.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
