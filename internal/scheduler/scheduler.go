package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultPruneSpec      = "0 3 * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	pruneQueriesTimeout   = 5 * time.Minute
)

// Pruner deletes query log records created before cutoff.
type Pruner interface {
	PruneQueries(ctx context.Context, cutoff time.Time) (int64, error)
}

type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	pruner    Pruner
	spec      string
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

func New(
	ctx context.Context,
	pruner Pruner,
	spec string,
	retention time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	if spec == "" {
		spec = DefaultPruneSpec
	}

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		pruner:    pruner,
		spec:      spec,
		retention: retention,
		now:       time.Now,
		log:       log,
	}
}

func (s *Scheduler) Spec() string {
	return s.spec
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.pruneQueries); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop stops the cron and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) pruneQueries() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneQueriesTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	if s.retention <= 0 {
		return
	}

	cutoff := s.now().UTC().Add(-s.retention)

	removed, err := s.pruner.PruneQueries(ctx, cutoff)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune query log",
			"error", err,
			"cutoff", cutoff,
			"retention", s.retention.String())

		return
	}

	s.log.InfoContext(ctx, "Query log is pruned",
		"removed", removed,
		"cutoff", cutoff,
		"retention", s.retention.String())
}
