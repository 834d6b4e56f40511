package handler

import (
	"expvar"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
)

var httpRequestsInFlight = expvar.NewInt("gauge_http_requests_in_flight")
var httpResponses = expvar.NewMap("counter_http_responses")
var httpRequestDurationSeconds = newRequestHistogram(
	10*time.Millisecond,
	25*time.Millisecond,
	50*time.Millisecond,
	100*time.Millisecond,
	250*time.Millisecond,
	500*time.Millisecond,
	time.Second,
	2500*time.Millisecond,
	5*time.Second,
	10*time.Second,
	30*time.Second,
)

func init() {
	expvar.Publish("http_request_duration_seconds", httpRequestDurationSeconds)
}

// Metrics is a handler that collects request counts and durations per route
func Metrics(h http.Handler, routeMatcher RouteMatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeMatcher.Match(r)

		httpRequestsInFlight.Add(1)
		defer httpRequestsInFlight.Add(-1)

		respMetrics := httpsnoop.CaptureMetricsFn(w, func(ww http.ResponseWriter) {
			h.ServeHTTP(ww, r)
		})

		httpResponses.Add(strconv.Itoa(respMetrics.Code), 1)
		httpRequestDurationSeconds.Add(route, respMetrics.Code, respMetrics.Duration)
	})
}

type bucket struct {
	m             expvar.Map
	count         expvar.Int
	totalDuration expvar.Float
}

// RequestHistogram is a request duration histogram keyed by status code and route,
// exported in the prometheus text format through expvar
type RequestHistogram struct {
	mu      sync.Mutex
	bounds  []time.Duration
	labels  []string
	buckets map[string]*bucket
}

func newRequestHistogram(bounds ...time.Duration) *RequestHistogram {
	labels := make([]string, len(bounds))
	for i, bound := range bounds {
		labels[i] = strconv.FormatFloat(bound.Seconds(), 'f', -1, 64)
	}

	return &RequestHistogram{
		bounds:  bounds,
		labels:  labels,
		buckets: make(map[string]*bucket),
	}
}

// Add records a request
func (r *RequestHistogram) Add(path string, code int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%d;%s", code, path)

	b, exists := r.buckets[key]
	if !exists {
		b = &bucket{}
		r.buckets[key] = b
	}

	b.count.Add(1)
	b.totalDuration.Add(duration.Seconds())

	for i, bound := range r.bounds {
		if duration <= bound {
			b.m.Add(r.labels[i], 1)
		}
	}

	b.m.Add("+Inf", 1)
}

// WritePrometheus writes the histogram in the prometheus text format
func (r *RequestHistogram) WritePrometheus(w io.Writer, prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(w, "# TYPE %s histogram\n", prefix)

	for key, b := range r.buckets {
		code, path, ok := strings.Cut(key, ";")
		if !ok {
			continue
		}

		b.m.Do(func(kv expvar.KeyValue) {
			fmt.Fprintf(w, "%s_bucket{path=%q,code=%q,le=%q} %v\n", prefix, path, code, kv.Key, kv.Value)
		})

		fmt.Fprintf(w, "%s_count{path=%q,code=%q} %v\n", prefix, path, code, b.count.String())
		fmt.Fprintf(w, "%s_sum{path=%q,code=%q} %v\n", prefix, path, code, b.totalDuration.String())
	}
}

func (r *RequestHistogram) String() string {
	return "{}"
}
