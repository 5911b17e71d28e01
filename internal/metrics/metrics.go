package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TileRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevtiles_tile_requests_total",
		Help: "Total number of GetOrLoadTile calls",
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevtiles_cache_hits_total",
		Help: "Tile requests served from the cache",
	})

	CoalescedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevtiles_coalesced_requests_total",
		Help: "Cache misses joined onto an existing load request",
	})

	RejectedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevtiles_rejected_requests_total",
		Help: "Cache misses rejected because the waiting queue was full",
	})

	Loads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elevtiles_loads_total",
		Help: "Completed tile loads by outcome",
	}, []string{"outcome"})

	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevtiles_evictions_total",
		Help: "Tiles evicted because no owner used them",
	})

	CachedTiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "elevtiles_cached_tiles",
		Help: "Tiles currently held in the cache",
	})

	WaitingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "elevtiles_waiting_requests",
		Help: "Load requests waiting for admission",
	})

	InFlightRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "elevtiles_in_flight_requests",
		Help: "Load requests currently fetching",
	})

	FetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "elevtiles_fetch_latency_seconds",
		Help:    "Latency of upstream elevation tile fetches in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	DecodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "elevtiles_decode_latency_seconds",
		Help:    "Time spent decoding and downsampling a fetched tile",
		Buckets: prometheus.DefBuckets,
	})
)

const (
	OutcomeLoaded = "loaded"
	OutcomeFailed = "failed"
)
