package service

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appErrors "github.com/noah-isme/student-records/pkg/errors"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// record operations and store writes. A nil *MetricsService is a no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	operations      *prometheus.CounterVec
	storeWrites     *prometheus.HistogramVec
	collectionSize  *prometheus.GaugeVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "record_operations_total",
		Help: "Record service operations by outcome",
	}, []string{"operation", "result"})

	storeWrites := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "record_store_write_seconds",
		Help:    "Latency of key-value store writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	collectionSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "record_collection_size",
		Help: "Number of entities held per collection",
	}, []string{"collection"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, operations, storeWrites, collectionSize, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		operations:      operations,
		storeWrites:     storeWrites,
		collectionSize:  collectionSize,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordOperation counts a record service call, labelled by error code.
func (m *MetricsService) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, resultLabel(err)).Inc()
}

// ObserveStoreWrite tracks the duration of a store write.
func (m *MetricsService) ObserveStoreWrite(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeWrites.WithLabelValues(resultLabel(err)).Observe(duration.Seconds())
}

// SetCollectionSizes publishes the current collection sizes.
func (m *MetricsService) SetCollectionSizes(students, courses, enrollments int) {
	if m == nil {
		return
	}
	m.collectionSize.WithLabelValues("students").Set(float64(students))
	m.collectionSize.WithLabelValues("courses").Set(float64(courses))
	m.collectionSize.WithLabelValues("enrollments").Set(float64(enrollments))
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(appErrors.FromError(err).Code)
}
