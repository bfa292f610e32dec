package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	RequestsLimited    uint64
	AnalysesPaste      uint64
	AnalysesFile       uint64
	AnalysesArchive    uint64
	AnalysesParsed     uint64
	AnalysesRaw        uint64
	UpstreamFailures   uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// IncrementRateLimited counts requests rejected with 429
func IncrementRateLimited() {
	atomic.AddUint64(&globalMetrics.RequestsLimited, 1)
}

// IncrementUpstreamFailures counts completion calls that returned an error
func IncrementUpstreamFailures() {
	atomic.AddUint64(&globalMetrics.UpstreamFailures, 1)
}

// RecordAnalysis counts a finished analysis by submission kind and by
// whether the model reply could be parsed.
func RecordAnalysis(kind string, parsed bool) {
	switch kind {
	case "paste":
		atomic.AddUint64(&globalMetrics.AnalysesPaste, 1)
	case "file":
		atomic.AddUint64(&globalMetrics.AnalysesFile, 1)
	case "archive":
		atomic.AddUint64(&globalMetrics.AnalysesArchive, 1)
	}
	if parsed {
		atomic.AddUint64(&globalMetrics.AnalysesParsed, 1)
	} else {
		atomic.AddUint64(&globalMetrics.AnalysesRaw, 1)
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":        atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress":  atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":      atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":       atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"requests_rate_limited": atomic.LoadUint64(&globalMetrics.RequestsLimited),
		"analyses": map[string]interface{}{
			"paste":   atomic.LoadUint64(&globalMetrics.AnalysesPaste),
			"file":    atomic.LoadUint64(&globalMetrics.AnalysesFile),
			"archive": atomic.LoadUint64(&globalMetrics.AnalysesArchive),
			"parsed":  atomic.LoadUint64(&globalMetrics.AnalysesParsed),
			"raw":     atomic.LoadUint64(&globalMetrics.AnalysesRaw),
		},
		"upstream_failures": atomic.LoadUint64(&globalMetrics.UpstreamFailures),
		"uptime_seconds":    time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
