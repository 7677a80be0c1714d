package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderbot_api_requests_total",
		Help: "The total number of upstream API requests",
	}, []string{"api"})

	APIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderbot_api_errors_total",
		Help: "The total number of upstream API calls that failed (non-200 or transport error)",
	}, []string{"api"})

	DocumentsDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tenderbot_documents_downloaded_total",
		Help: "The total number of tender documents downloaded",
	})
)

// Serve exposes /metrics on addr in a background goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logrus.Errorf("metrics listener failed: %v", err)
		}
	}()
}
