package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Pruner deletes audit events older than a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs the event retention job on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	pruner    Pruner
	retention time.Duration
	timeout   time.Duration
	now       func() time.Time
}

// NewScheduler creates a scheduler that prunes events older than retention
// on spec, a standard five-field cron expression or descriptor such as
// "@daily".
func NewScheduler(pruner Pruner, retention time.Duration, spec string) (*Scheduler, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		pruner:    pruner,
		retention: retention,
		timeout:   time.Minute,
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.PruneEvents(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	log.Info().Dur("retention", s.retention).Msg("Starting event retention scheduler")
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		log.Info().Msg("Stopped event retention scheduler")
	case <-ctx.Done():
		log.Warn().Msg("Event retention job still running at shutdown")
	}
}

// PruneEvents deletes events older than the retention window once.
func (s *Scheduler) PruneEvents(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	removed, err := s.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("Failed to prune events")
		return
	}
	log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Pruned old events")
}

// cronLogger routes cron's logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
