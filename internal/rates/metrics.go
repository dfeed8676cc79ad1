package rates

import "github.com/prometheus/client_golang/prometheus"

var (
	// fetchTotal counts upstream fetches by the source that was served.
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hesapla",
			Subsystem: "rates",
			Name:      "fetch_total",
			Help:      "Exchange-rate fetches by resulting source (PRIMARY or FALLBACK).",
		},
		[]string{"source"},
	)

	// cacheLookups counts cache reads by outcome (hit or miss).
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hesapla",
			Subsystem: "rates",
			Name:      "cache_lookups_total",
			Help:      "Exchange-rate cache lookups by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(fetchTotal, cacheLookups)
}
