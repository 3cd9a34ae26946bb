package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/go/warnonerror"

	"github.com/vppro/patchy/access"
	"github.com/vppro/patchy/handler"
	"github.com/vppro/patchy/logging"
	"github.com/vppro/patchy/redis"
)

var (
	// Flags that can be passed in on the command line
	listenAddr      = flag.String("listen_addr", ":8080", "The address and port to serve the patchy API on")
	redisAddr       = flag.String("redis_addr", "localhost:6379", "The address of the Redis server storing results")
	pingMaxConc     = flag.Int64("ping.max_concurrent", 0, "Maximum concurrent ping requests; 0 means unlimited")
	pingMaxTxRate   = flag.Uint64("ping.max_tx_rate", 0, "Reject ping requests while the device transmits more bits/s than this; 0 disables")
	pingTxDevice    = flag.String("ping.tx_device", "eth0", "The device whose transmit rate is watched")
	pingMinBytes    = flag.Int("ping.min_bytes", handler.DefaultPingMinBytes, "Smallest ping payload in bytes")
	pingMaxBytes    = flag.Int("ping.max_bytes", handler.DefaultPingMaxBytes, "Largest ping payload in bytes")
	logLevel        = flag.String("log.level", "info", "Log level: debug, info, warn or error")
	shutdownTimeout = 5 * time.Second

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

func catchSigterm() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(c)

	select {
	case <-c:
		logging.Logger.Info("Received SIGTERM")
		cancel()
	case <-ctx.Done():
	}
}

// httpServer creates a new *http.Server with explicit Read and Write timeouts.
func httpServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,
		// NOTE: set absolute read and write timeouts for server connections.
		// This prevents clients, or middleboxes, from opening a connection and
		// holding it open indefinitely.
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
}

// pingControllers returns the admission controllers for the ping handler.
func pingControllers() []access.Controller {
	controllers := []access.Controller{&access.MaxController{Max: *pingMaxConc}}
	if *pingMaxTxRate == 0 {
		return controllers
	}
	tx, err := access.NewTxController(*pingTxDevice, *pingMaxTxRate)
	rtx.Must(err, "Could not watch device %q", *pingTxDevice)
	go func() {
		err := tx.Watch(ctx)
		if err != nil && err != context.Canceled {
			logging.Logger.WithError(err).Warn("txcontroller stopped")
		}
	}()
	return append(controllers, tx)
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment")
	rtx.Must(logging.SetLevel(*logLevel), "Invalid log level %q", *logLevel)
	defer cancel()

	promServer := prometheusx.MustServeMetrics()
	defer warnonerror.Close(promServer, "Could not close the metrics server")

	go catchSigterm()

	store := redis.NewClient(*redisAddr)
	defer warnonerror.Close(store, "Could not close the Redis client")
	if err := store.Ping(ctx); err != nil {
		// Results will fail until Redis shows up, the ping endpoint still works.
		logging.Logger.WithError(err).Warn("Redis is not reachable")
	} else if n, err := store.Count(ctx); err == nil {
		logging.Logger.WithField("results", n).Info("Connected to Redis")
	}

	h := &handler.Handler{
		Store:        store,
		PingMinBytes: *pingMinBytes,
		PingMaxBytes: *pingMaxBytes,
	}
	srv := httpServer(*listenAddr,
		logging.MakeAccessLogHandler(h.NewMux(access.Chain(pingControllers()...))))
	logging.Logger.Info("About to listen for the patchy API on " + *listenAddr)
	rtx.Must(httpx.ListenAndServeAsync(srv), "Could not start the patchy server")

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.WithError(err).Warn("Unclean shutdown")
	}
}
