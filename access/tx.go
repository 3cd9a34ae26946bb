package access

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/procfs"

	"github.com/vppro/patchy/logging"
)

var (
	procPath       = "/proc"
	accessRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patchy_access_txcontroller_requests_total",
			Help: "Total number of ping requests seen by the tx controller.",
		},
		[]string{"request"},
	)
)

// TxController tracks the bit rate transmitted by a network device and
// rejects ping requests while it is above a limit. Ping payloads are what a
// probe measures, so a saturated uplink would only produce misleading
// throughput figures.
type TxController struct {
	period  time.Duration
	device  string
	current uint64
	limit   uint64
	pfs     procfs.FS
}

// NewTxController creates a controller for device with a limit of rate bits
// per second, sampling once a second. Callers should run Watch in a
// goroutine to keep the current rate up to date.
func NewTxController(device string, rate uint64) (*TxController, error) {
	pfs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, err
	}
	// Read the device once to verify that the device exists.
	_, err = readNetDevLine(pfs, device)
	if err != nil {
		return nil, err
	}
	return &TxController{
		device: device,
		limit:  rate,
		pfs:    pfs,
		period: time.Second,
	}, nil
}

// Limit rejects requests with 503 while the observed rate exceeds the
// limit. A zero limit accepts every request.
func (tx *TxController) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.LoadUint64(&tx.current)
		if tx.limit > 0 && cur > tx.limit {
			accessRequests.WithLabelValues("rejected").Inc()
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		accessRequests.WithLabelValues("accepted").Inc()
		next.ServeHTTP(w, r)
	})
}

// Watch updates the current rate every period until ctx is done, and then
// returns the context error. If the limit is zero, Watch returns nil
// immediately.
func (tx *TxController) Watch(ctx context.Context) error {
	if tx.limit == 0 {
		return nil
	}
	t := time.NewTicker(tx.period)
	defer t.Stop()

	v, err := readNetDevLine(tx.pfs, tx.device)
	if err != nil {
		return err
	}
	for prev := v.TxBytes; ctx.Err() == nil; {
		select {
		case <-ctx.Done():
			continue
		case <-t.C:
		}
		v, err := readNetDevLine(tx.pfs, tx.device)
		if err != nil {
			logging.Logger.WithError(err).Warn("txcontroller: cannot read net/dev")
			continue
		}
		rate := uint64(float64((v.TxBytes-prev)*8) / tx.period.Seconds())
		atomic.StoreUint64(&tx.current, rate)
		prev = v.TxBytes
	}
	return ctx.Err()
}

func readNetDevLine(pfs procfs.FS, device string) (procfs.NetDevLine, error) {
	nd, err := pfs.NetDev()
	if err != nil {
		return procfs.NetDevLine{}, err
	}
	v, ok := nd[device]
	if !ok {
		return procfs.NetDevLine{}, fmt.Errorf("device not found: %q", device)
	}
	return v, nil
}
