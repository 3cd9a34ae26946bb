// Package probe measures the quality of the network path to an HTTP
// endpoint.
//
// A probe run issues a fixed number of sequential, individually time-limited
// GET requests and aggregates the successful ones into a mean latency and a
// throughput estimate. Failed attempts are data points: they are counted and
// logged, never retried and never returned to the caller.
package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/vppro/patchy/deadline"
	"github.com/vppro/patchy/logging"
	"github.com/vppro/patchy/metrics"
)

// cacheBusterParam is the query parameter that makes every attempt URL
// unique, so that no intermediate cache can answer on behalf of the target.
const cacheBusterParam = "_"

// ErrInvalidTarget is returned by Run for targets that are not absolute
// http(s) URLs.
var ErrInvalidTarget = errors.New("invalid probe target")

// Prober runs probes using Fetcher. A Prober holds no per-run state and may be
// used by concurrent callers.
type Prober struct {
	Fetcher Fetcher

	// now is the monotonic clock used to time attempts; nil means time.Now.
	now func() time.Time
}

func (p *Prober) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// New returns a Prober using f.
func New(f Fetcher) *Prober {
	return &Prober{Fetcher: f}
}

// Run probes target with cfg using an HTTPFetcher backed by http.DefaultClient.
func Run(ctx context.Context, target string, cfg Config) (Result, error) {
	return New(HTTPFetcher{}).Run(ctx, target, cfg)
}

// outcome is the result of a single attempt.
type outcome struct {
	succeeded bool
	elapsed   time.Duration
	bytes     int64
}

// totals accumulates the outcomes of the successful attempts of one run.
type totals struct {
	ok      int
	elapsed time.Duration
	bytes   int64
}

func (t *totals) add(o outcome) {
	if !o.succeeded {
		return
	}
	t.ok++
	t.elapsed += o.elapsed
	t.bytes += o.bytes
}

// Run executes cfg.Attempts attempts against target, one after the other, and
// returns the resulting verdict. Errors are returned only for an invalid cfg
// or target, before any request is sent.
//
// Canceling ctx does not stop the run: the remaining attempts fail
// immediately, so the number of attempts is always cfg.Attempts.
func (p *Prober) Run(ctx context.Context, target string, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	u, err := parseTarget(target)
	if err != nil {
		return Result{}, err
	}
	id := uuid.NewString()
	entry := logging.Logger.WithFields(log.Fields{"probe": id, "target": u.String()})
	entry.Debug("probe: start")

	var t totals
	for i := 0; i < cfg.Attempts; i++ {
		t.add(p.attempt(ctx, entry.WithField("attempt", i), u, i, cfg.PingTimeout))
	}
	result := aggregate(t, cfg)

	verdict := "fail"
	if result.Passes {
		verdict = "pass"
	}
	metrics.ProbeRuns.WithLabelValues(verdict).Inc()
	fields := log.Fields{
		"ok":     result.OK,
		"kbps":   result.Kbps,
		"passes": result.Passes,
	}
	// +Inf does not survive the JSON log handler.
	if result.HasLatency() {
		fields["avg_ms"] = result.AvgMs
	}
	entry.WithFields(fields).Debug("probe: done")
	return result, nil
}

// attempt performs one timed request. The deadline is released on every
// return path.
func (p *Prober) attempt(ctx context.Context, entry *log.Entry, target *url.URL, i int, timeout time.Duration) outcome {
	dl := deadline.New(ctx, timeout)
	defer dl.Release()

	start := p.clock()
	n, err := p.Fetcher.Fetch(dl.Context(), cacheBust(target, start, i))
	elapsed := p.clock().Sub(start)
	if err != nil {
		reason := classify(dl, err)
		metrics.ProbeAttempts.WithLabelValues(reason).Inc()
		entry.WithError(err).WithField("reason", reason).Debug("probe: attempt failed")
		return outcome{elapsed: elapsed}
	}
	metrics.ProbeAttempts.WithLabelValues("success").Inc()
	metrics.ProbeAttemptDuration.Observe(elapsed.Seconds())
	return outcome{succeeded: true, elapsed: elapsed, bytes: n}
}

// classify maps an attempt error onto a metric label.
func classify(dl *deadline.Deadline, err error) string {
	var se *StatusError
	switch {
	case dl.Expired():
		return "timeout"
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "network"
	}
}

// aggregate computes the verdict from the totals of the successful attempts.
// The throughput denominator is the summed duration of the successful
// attempts, not the wall-clock span of the run.
func aggregate(t totals, cfg Config) Result {
	r := Result{OK: t.ok, AvgMs: math.Inf(1)}
	if t.ok > 0 {
		totalMs := float64(t.elapsed) / float64(time.Millisecond)
		r.AvgMs = totalMs / float64(t.ok)
		bytes := float64(t.bytes)
		if cfg.ExpectBytes > 0 {
			bytes = float64(cfg.ExpectBytes) * float64(t.ok)
		}
		if t.elapsed > 0 {
			r.Kbps = bytes / t.elapsed.Seconds() / 1024
		}
	}
	r.Passes = r.OK >= cfg.MinSuccesses &&
		(cfg.MinThroughputKbps == 0 || r.Kbps >= cfg.MinThroughputKbps)
	return r
}

func parseTarget(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidTarget, target)
	}
	return u, nil
}

// cacheBust returns target with a query token unique to this run and attempt.
func cacheBust(target *url.URL, now time.Time, i int) string {
	u := *target
	q := u.Query()
	q.Set(cacheBusterParam, strconv.FormatInt(now.UnixMilli(), 10)+"-"+strconv.Itoa(i))
	u.RawQuery = q.Encode()
	return u.String()
}
