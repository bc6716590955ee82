package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medassist_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medassist_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medassist_retrieval_results_count",
			Help:    "Number of passages retrieved per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	RetrievalFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medassist_retrieval_failures_total",
			Help: "Queries answered without augmentation after a retrieval failure",
		},
	)

	CitationsParsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medassist_citations_parsed_total",
			Help: "Citations parsed out of generated answers",
		},
	)

	CitationsPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medassist_citations_persisted_total",
			Help: "Citations stored (deduplicated per message and reference number)",
		},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medassist_documents_processed_total",
			Help: "Reference documents ingested",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medassist_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medassist_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(RetrievalFailures)
	prometheus.MustRegister(CitationsParsed)
	prometheus.MustRegister(CitationsPersisted)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
