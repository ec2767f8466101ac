package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StoreOpCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"collection", "operation", "status"},
	)

	StoreOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_operation_duration_seconds",
			Help:    "Duration of document store operations",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2},
		},
		[]string{"collection", "operation"},
	)

	PurgedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "knowledge_purged_records_total",
			Help: "Total number of permanently purged knowledge points",
		},
	)
)

func Init() {
	prometheus.MustRegister(StoreOpCounter)
	prometheus.MustRegister(StoreOpDuration)
	prometheus.MustRegister(PurgedRecords)
}

// ObserveStoreOp 记录一次存储操作的结果与耗时
func ObserveStoreOp(collection, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreOpCounter.WithLabelValues(collection, operation, status).Inc()
	StoreOpDuration.WithLabelValues(collection, operation).Observe(time.Since(start).Seconds())
}

// Handler 暴露给外层 HTTP 服务挂载
func Handler() http.Handler {
	return promhttp.Handler()
}
