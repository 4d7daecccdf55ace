package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultStale   = "stale"
	ResultSkipped = "skipped"
)

var (
	Fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_notification_fetches_total",
		Help: "Notification fetches by result",
	}, []string{"result"})

	Mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_notification_mutations_total",
		Help: "Notification mutations by operation and result",
	}, []string{"op", "result"})

	Rollbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "campus_notification_rollbacks_total",
		Help: "Failed mutations reconciled by re-fetching",
	})

	Unread = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campus_notifications_unread",
		Help: "Unread notifications in the local store",
	})

	Important = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campus_notifications_important",
		Help: "Unread important notifications in the local store",
	})

	// Requests is recorded by the development backend.
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_devserver_requests_total",
		Help: "Development backend requests by route and status",
	}, []string{"route", "status"})
)

var once sync.Once

// Init registers every collector on the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(Fetches, Mutations, Rollbacks, Unread, Important, Requests)
	})
}

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
