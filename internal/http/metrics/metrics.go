package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
)

type Collector struct {
	requests uint64
	errors   uint64

	mu       sync.Mutex
	byStatus map[int]uint64
	byCode   map[string]uint64
}

func NewCollector() *Collector {
	return &Collector{byStatus: make(map[int]uint64), byCode: make(map[string]uint64)}
}

// Observe records a finished request. Errors count 5xx responses only.
func (c *Collector) Observe(status int) {
	atomic.AddUint64(&c.requests, 1)
	if status >= http.StatusInternalServerError {
		atomic.AddUint64(&c.errors, 1)
	}
	c.mu.Lock()
	c.byStatus[status]++
	c.mu.Unlock()
}

func (c *Collector) IncError(code string) {
	c.mu.Lock()
	c.byCode[code]++
	c.mu.Unlock()
}

type Snapshot struct {
	Requests uint64
	Errors   uint64
	ByStatus map[int]uint64
	ByCode   map[string]uint64
}

func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		Requests: atomic.LoadUint64(&c.requests),
		Errors:   atomic.LoadUint64(&c.errors),
		ByStatus: make(map[int]uint64),
		ByCode:   make(map[string]uint64),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for status, n := range c.byStatus {
		snap.ByStatus[status] = n
	}
	for code, n := range c.byCode {
		snap.ByCode[code] = n
	}
	return snap
}

type Handler struct {
	collector *Collector
}

func NewHandler(collector *Collector) *Handler {
	return &Handler{collector: collector}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	snap := Snapshot{ByStatus: map[int]uint64{}, ByCode: map[string]uint64{}}
	if h.collector != nil {
		snap = h.collector.Snapshot()
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = fmt.Fprintf(w, "# HELP admissions_requests_total Total number of HTTP requests.\n")
	_, _ = fmt.Fprintf(w, "# TYPE admissions_requests_total counter\n")
	_, _ = fmt.Fprintf(w, "admissions_requests_total %d\n", snap.Requests)
	_, _ = fmt.Fprintf(w, "# HELP admissions_errors_total Total number of 5xx HTTP responses.\n")
	_, _ = fmt.Fprintf(w, "# TYPE admissions_errors_total counter\n")
	_, _ = fmt.Fprintf(w, "admissions_errors_total %d\n", snap.Errors)

	_, _ = fmt.Fprintf(w, "# HELP admissions_responses_total HTTP responses by status code.\n")
	_, _ = fmt.Fprintf(w, "# TYPE admissions_responses_total counter\n")
	statuses := make([]int, 0, len(snap.ByStatus))
	for status := range snap.ByStatus {
		statuses = append(statuses, status)
	}
	sort.Ints(statuses)
	for _, status := range statuses {
		_, _ = fmt.Fprintf(w, "admissions_responses_total{status=%q} %d\n", strconv.Itoa(status), snap.ByStatus[status])
	}

	_, _ = fmt.Fprintf(w, "# HELP admissions_error_responses_total Error responses by application error code.\n")
	_, _ = fmt.Fprintf(w, "# TYPE admissions_error_responses_total counter\n")
	codes := make([]string, 0, len(snap.ByCode))
	for code := range snap.ByCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		_, _ = fmt.Fprintf(w, "admissions_error_responses_total{code=%q} %d\n", code, snap.ByCode[code])
	}
}
