package telemetry

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusRetried = "retried"
)

var (
	// RowsTotal counts rows handed to the output per source
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "olake_jdbc_rows_total",
			Help: "Total number of rows read",
		},
		[]string{"source"},
	)

	// PollsTotal counts finished polls
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "olake_jdbc_polls_total",
			Help: "Total number of polls",
		},
		[]string{"source", "status"}, // status: success, failed, retried
	)

	// PollDuration measures a poll including retries
	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "olake_jdbc_poll_duration_seconds",
			Help:    "Poll duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"source"},
	)

	// CommittedTimestamp is the timestamp of the committed offset (unix seconds)
	CommittedTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "olake_jdbc_committed_timestamp_seconds",
			Help: "Timestamp component of the committed offset",
		},
		[]string{"source"},
	)

	// CommittedIncrementing is the incrementing component of the committed offset
	CommittedIncrementing = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "olake_jdbc_committed_incrementing",
			Help: "Incrementing component of the committed offset",
		},
		[]string{"source"},
	)
)

var (
	server *http.Server
	once   sync.Once
)

// Init serves /metrics on addr; an empty addr disables the server
func Init(addr string) {
	if addr == "" {
		return
	}
	once.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server = &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 15 * time.Second,
			Handler:           mux,
		}

		go func() {
			logger.Infof("starting metrics server on %s", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("metrics server stopped: %s", err)
			}
		}()
	})
}

// TrackPoll records the outcome of one poll of source
func TrackPoll(source string, rows int64, duration time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	PollsTotal.WithLabelValues(source, status).Inc()
	PollDuration.WithLabelValues(source).Observe(duration.Seconds())
	if rows > 0 {
		RowsTotal.WithLabelValues(source).Add(float64(rows))
	}
}

func TrackRetry(source string) {
	PollsTotal.WithLabelValues(source, StatusRetried).Inc()
}

func TrackOffset(source string, offset types.Offset) {
	if offset.Timestamp != nil {
		CommittedTimestamp.WithLabelValues(source).Set(float64(offset.Timestamp.UnixNano()) / float64(time.Second))
	}
	if offset.Incrementing != nil {
		CommittedIncrementing.WithLabelValues(source).Set(float64(*offset.Incrementing))
	}
}
