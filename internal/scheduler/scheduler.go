package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultHealthCheckSpec = "@every 1m"
	Timezone               = "UTC"
	TimezoneOffsetSeconds  = 0
	probeTimeout           = 10 * time.Second
)

type Prober interface {
	Health(ctx context.Context) error
}

type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	spec    string
	prober  Prober
	healthy atomic.Bool
	log     *slog.Logger
}

// New assumes the sidecar is healthy until the first probe says otherwise.
func New(ctx context.Context, spec string, prober Prober, log *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultHealthCheckSpec
	}

	s := &Scheduler{
		ctx:    ctx,
		cron:   cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds))),
		spec:   spec,
		prober: prober,
		log:    log,
	}
	s.healthy.Store(true)

	return s
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.probe); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop waits for a running probe to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Healthy() bool {
	return s.healthy.Load()
}

func (s *Scheduler) probe() {
	ctx, cancel := context.WithTimeout(s.ctx, probeTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	start := time.Now()
	err := s.prober.Health(ctx)
	healthy := err == nil

	if was := s.healthy.Swap(healthy); was == healthy {
		return
	}

	if healthy {
		s.log.InfoContext(ctx, "Model sidecar is available again",
			"durationMs", time.Since(start).Milliseconds())
		return
	}

	s.log.ErrorContext(ctx, "Model sidecar is unavailable",
		"error", err,
		"durationMs", time.Since(start).Milliseconds())
}
