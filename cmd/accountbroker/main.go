// Command accountbroker runs the shared game-account credential broker: it
// loads config/config.ini, opens the MySQL pool, seeds accounts.txt if
// present, and serves the broker's HTTP surface.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/domizei385/pogoAccountServer/internal/bootstrap"
	"github.com/domizei385/pogoAccountServer/internal/clock"
	"github.com/domizei385/pogoAccountServer/internal/concurrency"
	"github.com/domizei385/pogoAccountServer/internal/config"
	"github.com/domizei385/pogoAccountServer/internal/engine"
	"github.com/domizei385/pogoAccountServer/internal/ratelimit"
	"github.com/domizei385/pogoAccountServer/internal/store"
	"github.com/domizei385/pogoAccountServer/internal/transport/httpapi"
	"github.com/domizei385/pogoAccountServer/internal/validate"
)

func main() {
	configPath := flag.String("config", "config/config.ini", "path to config.ini")
	accountsPath := flag.String("accounts", "accounts.txt", "path to the accounts seed file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[accountbroker] loading config: %v", err)
	}

	st, err := store.Open(store.Config{
		DSN:             cfg.DSN(),
		MaxIdleConns:    cfg.PoolMaxIdle,
		MaxOpenConns:    cfg.PoolMaxOpen,
		ConnMaxLifeSecs: int(cfg.PoolConnLife.Seconds()),
	}, clock.Real)
	if err != nil {
		log.Fatalf("[accountbroker] opening store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if n, err := bootstrap.LoadFile(ctx, st, *accountsPath, clock.Unix(clock.Real)); err != nil {
		log.Fatalf("[accountbroker] loading %s: %v", *accountsPath, err)
	} else if n > 0 {
		log.Printf("[accountbroker] seeded %d accounts from %s", n, *accountsPath)
	}

	validator := validate.New(validate.Config{
		AllowedPurposes:  validate.DefaultConfig().AllowedPurposes,
		AllowedReasons:   validate.DefaultConfig().AllowedReasons,
		DisableIVPurpose: cfg.DisableIVPurpose,
	})

	eng := engine.New(st, clock.Real, cfg, validator)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimitPerSecond,
		BurstSize:         float64(cfg.RateLimitBurst),
		CleanupInterval:   ratelimit.DefaultConfig().CleanupInterval,
	})
	defer limiter.Stop()

	gate := concurrency.New(concurrency.Config{
		MaxConcurrent: cfg.ConcurrencyLimit,
		QueueSize:     cfg.ConcurrencyQueue,
		WaitTimeout:   concurrency.DefaultConfig().WaitTimeout,
	})

	srv := httpapi.NewServer(eng, limiter, gate, cfg.AuthUsername, cfg.AuthPassword, st)

	addr := cfg.ListenHost + ":" + strconv.Itoa(cfg.ListenPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("[accountbroker] listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[accountbroker] server stopped: %v", err)
	}
}
