package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_insights_fetch_duration_seconds",
			Help:    "Upstream fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"flow"},
	)

	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_insights_fetch_total",
			Help: "Total upstream fetches by outcome",
		},
		[]string{"flow", "status"},
	)

	StaleDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_insights_stale_responses_discarded_total",
			Help: "Responses dropped because a newer request superseded them",
		},
		[]string{"flow"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_insights_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_insights_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ConversationsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_insights_conversations_loaded",
			Help: "Conversations in the session after the last refresh",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(FetchDuration)
		prometheus.MustRegister(FetchTotal)
		prometheus.MustRegister(StaleDiscarded)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(ConversationsLoaded)
	})
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
