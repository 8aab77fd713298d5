// Package app wires the daemon together: config, logging, storage, the
// scheduler pool and the configured jobs.
package app

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"tempo/internal/config"
	"tempo/internal/storage"
	"tempo/pkg/cronplan"
	logx "tempo/pkg/logx"
	"tempo/pkg/sched"
	"tempo/pkg/sched/eventloop"
	"tempo/pkg/subscription"
)

type App struct {
	cfgPath string
	mgr     *config.Manager

	logSvc *logx.Service
	log    logx.Logger

	store storage.Store
	pool  *eventloop.Pool

	mu  sync.Mutex
	gen *subscription.Subscription // lifetime of the current job set

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(toLogxConfig(cfg.Logging))
	mgr.SetLogger(log)
	sched.SetLogger(log)

	return &App{
		cfgPath: cfgPath,
		mgr:     mgr,
		logSvc:  logSvc,
		log:     log,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.mgr.Get()

	if cfg.Storage != nil {
		busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, a.log)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		a.store = st
	}

	a.pool = eventloop.NewPool(cfg.Scheduler.Loops, a.log)
	a.applyJobs(cfg)

	wctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.mgr.Watch(wctx)
	}()
	updates := a.mgr.Subscribe(1)
	go func() {
		defer a.wg.Done()
		defer a.mgr.Unsubscribe(updates)
		for {
			select {
			case <-wctx.Done():
				return
			case cfg := <-updates:
				a.logSvc.Apply(toLogxConfig(cfg.Logging))
				a.applyJobs(cfg)
			}
		}
	}()

	a.log.Info("tempod started",
		logx.String("config", a.cfgPath),
		logx.Int("jobs", len(cfg.Jobs)),
	)
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	a.mu.Lock()
	gen := a.gen
	a.gen = nil
	a.mu.Unlock()
	gen.Unsubscribe()

	if a.pool != nil {
		a.pool.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("tempod stopped")
	return a.logSvc.Close()
}

// applyJobs tears down the previous job set and schedules the new one.
// Each job gets its own worker so jobs never serialize against each
// other; a generation lifetime ties them together for one-shot teardown.
func (a *App) applyJobs(cfg *config.Config) {
	gen := subscription.New()
	scheduler := a.pool.Scheduler()

	count := 0
	for _, j := range cfg.Jobs {
		if !j.IsEnabled() {
			continue
		}
		plan, err := cronplan.Parse(j.Schedule)
		if err != nil {
			// Validate() rejects these before commit.
			a.log.Warn("job skipped", logx.String("job", j.Name), logx.Err(err))
			continue
		}
		timeout, _ := config.ParseDurationField("timeout", j.Timeout)

		w := scheduler.CreateWorker()
		gen.Add(w.Subscription())
		cronplan.Run(w, w.Subscription(), plan, a.runJob(j, timeout))
		count++

		a.log.Debug("job scheduled",
			logx.String("job", j.Name),
			logx.String("plan", plan.String()),
		)
	}

	a.mu.Lock()
	prev := a.gen
	a.gen = gen
	a.mu.Unlock()
	prev.Unsubscribe()

	a.log.Info("jobs applied", logx.Int("active", count))
}

func (a *App) runJob(j config.JobConfig, timeout time.Duration) func(time.Time) {
	return func(time.Time) {
		id := uuid.NewString()
		start := time.Now()

		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		err := runCommand(ctx, j.Command)
		took := time.Since(start)

		rec := storage.RunRecord{
			ID:       id,
			Job:      j.Name,
			Started:  start,
			Duration: took,
			Error:    errString(err),
		}
		if a.store != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if serr := a.store.AppendRun(sctx, rec); serr != nil {
				a.log.Warn("run history write failed", logx.String("job", j.Name), logx.Err(serr))
			}
			cancel()
		}

		if err != nil {
			a.log.Warn("job failed",
				logx.String("job", j.Name),
				logx.String("run", id),
				logx.Duration("took", took),
				logx.Err(err),
			)
			return
		}
		a.log.Info("job ok",
			logx.String("job", j.Name),
			logx.String("run", id),
			logx.Duration("took", took),
		)
	}
}

func runCommand(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			return fmt.Errorf("%w: %s", err, truncate(string(out), 400))
		}
		return err
	}
	return nil
}

func toLogxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
		Sample: logx.SampleConfig{
			Enabled:    c.Sample.Enabled,
			MinLevel:   c.Sample.MinLevel,
			RatePerSec: c.Sample.RatePerSec,
		},
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func truncate(s string, maxN int) string {
	if len(s) <= maxN {
		return s
	}
	return s[:maxN-3] + "..."
}
