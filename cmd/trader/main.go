package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"github.com/aelhadee/247trader-V2-sub000/internal/alert"
	"github.com/aelhadee/247trader-V2-sub000/internal/audit"
	"github.com/aelhadee/247trader-V2-sub000/internal/bus"
	"github.com/aelhadee/247trader-V2-sub000/internal/clock"
	"github.com/aelhadee/247trader-V2-sub000/internal/exec"
	"github.com/aelhadee/247trader-V2-sub000/internal/ledger"
	"github.com/aelhadee/247trader-V2-sub000/internal/loop"
	"github.com/aelhadee/247trader-V2-sub000/internal/obs"
	"github.com/aelhadee/247trader-V2-sub000/internal/og"
	"github.com/aelhadee/247trader-V2-sub000/internal/ops"
	"github.com/aelhadee/247trader-V2-sub000/internal/resilience"
	"github.com/aelhadee/247trader-V2-sub000/internal/risk"
	"github.com/aelhadee/247trader-V2-sub000/internal/venue"
	"github.com/aelhadee/247trader-V2-sub000/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 10*time.Second, "Config reload interval (0=disable)")
	proposalsPath := flag.String("proposals", "proposals.json", "Proposal drop file written by the upstream layer")
	auditDir := flag.String("audit-dir", "audit", "Audit log directory (overrides config when set)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address (empty=disabled)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		logs.Info("shutdown signal received")
		cancel()
	}()

	if loaded.Pyroscope.ServerAddress != "" {
		appName := loaded.Pyroscope.AppName
		if appName == "" {
			appName = "trader"
		}
		profiler, perr := pyroscope.Start(pyroscope.Config{
			ApplicationName: appName,
			ServerAddress:   loaded.Pyroscope.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if perr != nil {
			log.Fatalf("pyroscope start failed: %v", perr)
		}
		defer profiler.Stop()
	}

	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if serr := http.ListenAndServe(*metricsAddr, mux); serr != nil {
				logs.Errorf("metrics server stopped: %v", serr)
			}
		}()
	}

	clk := clock.Real{}

	alertsDir := *auditDir
	if alertsDir == "" {
		alertsDir = loaded.Audit.Dir
	}
	alertQueue := bus.NewQueue(256)
	alerts := alert.NewNotifier(alert.NewQueueSink(alertQueue))
	go persistAlerts(ctx, alertQueue, filepath.Join(alertsDir, "alerts.jsonl"))
	defer alertQueue.Close()

	limiter := resilience.NewLimiter(loaded.Limits, clk)
	breaker := resilience.NewBreaker(loaded.Breaker, clk, func(consecutive int) {
		alerts.Fire(alert.Event{
			Kind:    alert.KindBreakerTrip,
			Message: "exchange health breaker opened",
		})
		logs.Errorf("breaker opened after %d consecutive failures", consecutive)
	})
	retrier := resilience.NewRetrier(loaded.Retry, clk)
	retrier.OnRetry(metrics.IncRetry)
	guard := resilience.NewGuard(limiter, retrier, breaker)

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SetBreakerState(int(breaker.State()))
			}
		}
	}()

	// paper and sim routes read live market data but never submit, so
	// REST is safe whenever a venue is configured; without one, the
	// in-process sim venue serves offline runs
	var client venue.Client
	if loaded.Venue.BaseURL != "" {
		client = venue.NewGuarded(venue.NewREST(loaded.Venue, nil), guard)
	} else {
		sim := venue.NewSim(clk, loaded.Exec.FeePct.Div(decimal.NewFromInt(100)))
		client = venue.NewGuarded(sim, guard)
	}

	book := og.NewBook(clk)
	led := ledger.New(clk)

	var store *ledger.Store
	if loaded.Postgres.Enabled() {
		pg, cerr := conn.New(conn.Option{
			Host:     loaded.Postgres.Host,
			Port:     loaded.Postgres.Port,
			User:     loaded.Postgres.User,
			Password: loaded.Postgres.Password,
			Database: loaded.Postgres.Database,
			SSLMode:  loaded.Postgres.SSLMode,
		})
		if cerr != nil {
			log.Fatalf("postgres connect failed: %v", cerr)
		}
		defer pg.Close()
		store, err = ledger.NewStore(pg.DB())
		if err != nil {
			log.Fatalf("ledger store init failed: %v", err)
		}
		if rerr := store.Restore(led); rerr != nil {
			log.Fatalf("ledger restore failed: %v", rerr)
		}
		logs.Infof("ledger restored, %d open positions", len(led.Positions()))
	}

	auditCfg := loaded.Audit
	if *auditDir != "" {
		auditCfg.Dir = *auditDir
	}
	auditW, err := audit.NewWriter(auditCfg)
	if err != nil {
		log.Fatalf("audit writer init failed: %v", err)
	}
	if err := auditW.Start(ctx); err != nil {
		log.Fatalf("audit writer start failed: %v", err)
	}
	defer auditW.Close()

	riskEng := risk.NewEngine(loaded.Risk, breaker.Healthy, alerts, clk)
	execEng := exec.NewEngine(loaded.Exec, client, book, led, clk)

	l := loop.New(loaded.Loop, loop.Deps{
		Source:     &loop.FileSource{Path: *proposalsPath},
		Risk:       riskEng,
		Exec:       execEng,
		Client:     client,
		Meta:       venue.NewMetaCache(client, clk),
		Ledger:     led,
		Book:       book,
		Store:      store,
		Audit:      auditW,
		Alerts:     alerts,
		Metrics:    metrics,
		Limiter:    limiter,
		Clock:      clk,
		Mode:       loaded.Mode,
		ConfigHash: loaded.Hash,
	})

	if *configReload > 0 {
		go watchConfig(ctx, *configPath, *configReload, loaded.Hash, func(next ops.Loaded) {
			l.SwapRisk(risk.NewEngine(next.Risk, breaker.Healthy, alerts, clk))
		})
	}

	logs.Infof("trader starting, mode=%s config=%s hash=%s", loaded.Mode, *configPath, loaded.Hash)
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("loop stopped: %v", err)
	}

	if loaded.SnapshotPath != "" {
		if err := ledger.WriteSnapshot(loaded.SnapshotPath, led.FileSnapshot()); err != nil {
			logs.Errorf("final snapshot failed: %v", err)
		}
	}
	logs.Info("trader stopped")
}

// persistAlerts drains the alert queue into an append-only JSONL file,
// one encoded event per line, so alerts survive a crash of whatever is
// tailing them.
func persistAlerts(ctx context.Context, q *bus.Queue, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logs.Errorf("alert dir create failed: %v", err)
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logs.Errorf("alert file open failed: %v", err)
		return
	}
	defer f.Close()
	q.Run(ctx, func(e bus.Event) {
		if _, werr := f.Write(append(e.Payload, '\n')); werr != nil {
			logs.Errorf("alert write failed: %v", werr)
		}
	})
}

// watchConfig re-reads the config file on an interval and applies risk
// limit changes without a restart. Only the admission engine is
// hot-swapped; transport and persistence changes need a restart.
func watchConfig(ctx context.Context, path string, interval time.Duration, lastHash string, apply func(ops.Loaded)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next, err := ops.Load(path)
			if err != nil {
				logs.Warnf("config reload skipped: %v", err)
				continue
			}
			if next.Hash == lastHash {
				continue
			}
			lastHash = next.Hash
			apply(next)
			logs.Infof("risk limits reloaded, hash=%s", next.Hash)
		}
	}
}
