// patchy-probe measures the quality of the network path to a patchy server
// (or any HTTP health endpoint) and prints one JSON record per probe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/memoryless"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/go/warnonerror"

	"github.com/vppro/patchy/cmd/patchy-probe/client"
	"github.com/vppro/patchy/data"
	"github.com/vppro/patchy/logging"
	"github.com/vppro/patchy/metadata"
	"github.com/vppro/patchy/probe"
)

var (
	target        = flag.String("url", "http://localhost:8080/ping", "The health endpoint to probe")
	configFile    = flag.String("config", "", "Optional YAML probe profile; explicit flags override it")
	attempts      = flag.Int("attempts", probe.DefaultAttempts, "Number of sequential attempts per probe")
	pingTimeout   = flag.Duration("ping-timeout", probe.DefaultPingTimeout, "Timeout of a single attempt")
	minSuccesses  = flag.Int("min-successes", probe.DefaultMinSuccesses, "Successful attempts needed to pass")
	expectBytes   = flag.Int64("expect-bytes", 0, "Known payload size in bytes; 0 uses the measured size")
	minThroughput = flag.Float64("min-throughput-kbps", 0, "Throughput floor in KiB/s; 0 disables it")
	saveURL       = flag.String("save", "", "Base URL of a patchy server where records are submitted")
	watch         = flag.Duration("watch", 0, "Average interval between probes; 0 probes once and exits")
	logLevel      = flag.String("log.level", "info", "Log level: debug, info, warn or error")
	clientMeta    metadata.Flag

	// Destination of the JSON records.
	stdout io.Writer = os.Stdout
	osExit           = os.Exit

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

func init() {
	flag.Var(&clientMeta, "metadata", "name=value annotation added to every record; may be repeated")
}

// resolveConfig merges the profile, if any, with the flags set on the
// command line or in the environment.
func resolveConfig(fs *flag.FlagSet) (probe.Config, error) {
	cfg := probe.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = probe.LoadConfig(*configFile)
		if err != nil {
			return cfg, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "attempts":
			cfg.Attempts = *attempts
		case "ping-timeout":
			cfg.PingTimeout = *pingTimeout
		case "min-successes":
			cfg.MinSuccesses = *minSuccesses
		case "expect-bytes":
			cfg.ExpectBytes = *expectBytes
		case "min-throughput-kbps":
			cfg.MinThroughputKbps = *minThroughput
		}
	})
	return cfg, cfg.Validate()
}

// reporter runs probes and reports their records.
type reporter struct {
	prober *probe.Prober
	target string
	cfg    probe.Config
	out    io.Writer
	saver  *client.Client
	meta   []metadata.NameValue
}

// probeOnce runs one probe, prints its record and submits it when a server
// is configured. Submission failures are logged, never fatal.
//
// A probe interrupted by ctx is discarded and ctx.Err() is returned: its
// canceled attempts say nothing about the target.
func (r *reporter) probeOnce(ctx context.Context) (data.ProbeRecord, error) {
	start := time.Now()
	result, err := r.prober.Run(ctx, r.target, r.cfg)
	if err != nil {
		return data.ProbeRecord{}, err
	}
	if ctx.Err() != nil {
		logging.Logger.Info("Probe interrupted, discarding its record")
		return data.ProbeRecord{}, ctx.Err()
	}
	rec := data.NewProbeRecord(uuid.NewString(), r.target, r.cfg, start, time.Now(), result)
	rec.ClientMetadata = r.meta
	if err := json.NewEncoder(r.out).Encode(rec); err != nil {
		return rec, err
	}
	if r.saver != nil {
		if err := r.saver.Save(ctx, rec); err != nil {
			logging.Logger.WithError(err).Warn("Failed to save result")
		} else {
			logging.Logger.WithField("uuid", rec.UUID).Info("Result saved successfully")
		}
	}
	return rec, nil
}

// watchLoop probes at exponentially distributed intervals averaging
// interval, until ctx is canceled.
func (r *reporter) watchLoop(ctx context.Context, interval time.Duration) error {
	ticker, err := memoryless.NewTicker(ctx, memoryless.Config{
		Min:      interval / 10,
		Expected: interval,
		Max:      4 * interval,
	})
	if err != nil {
		return err
	}
	defer ticker.Stop()
	for {
		if _, err := r.probeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ticker.C:
			if !ok {
				return nil
			}
		}
	}
}

func catchSignals() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(c)
	select {
	case <-c:
		logging.Logger.Info("Received signal, stopping")
		cancel()
	case <-ctx.Done():
	}
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment")
	rtx.Must(logging.SetLevel(*logLevel), "Invalid log level %q", *logLevel)
	cfg, err := resolveConfig(flag.CommandLine)
	rtx.Must(err, "Invalid probe configuration")
	go catchSignals()

	r := &reporter{
		prober: probe.New(probe.HTTPFetcher{Client: &http.Client{}}),
		target: *target,
		cfg:    cfg,
		out:    stdout,
		meta:   clientMeta,
	}
	if *saveURL != "" {
		u, err := url.Parse(*saveURL)
		rtx.Must(err, "Invalid server URL %q", *saveURL)
		r.saver = &client.Client{URL: *u}
	}

	if *watch <= 0 {
		rec, err := r.probeOnce(ctx)
		if err != nil && ctx.Err() != nil {
			osExit(1)
			return
		}
		rtx.Must(err, "Probe failed to run")
		if !rec.Result.Passes {
			osExit(1)
		}
		return
	}

	// Long-running probes export their attempt and verdict counters.
	promServer := prometheusx.MustServeMetrics()
	defer warnonerror.Close(promServer, "Could not close the metrics server")

	rtx.Must(r.watchLoop(ctx, *watch), "Probe loop failed")
}
