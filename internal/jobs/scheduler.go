package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"memeshare/api/internal/storage"
)

const sweepTimeout = 5 * time.Minute

// PathChecker reports whether a stored file is still referenced by a record.
type PathChecker interface {
	FilePathInUse(ctx context.Context, path string) (bool, error)
}

// Scheduler runs the periodic sweep that removes local files no record
// points at, such as copies left behind by a crash between save and insert.
type Scheduler struct {
	cron     *cron.Cron
	files    *storage.LocalStore
	images   PathChecker
	schedule string
	minAge   time.Duration
	log      zerolog.Logger
}

func NewScheduler(files *storage.LocalStore, images PathChecker, schedule string, minAge time.Duration, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		files:    files,
		images:   images,
		schedule: schedule,
		minAge:   minAge,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.schedule == "" || s.files == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits up to timeout for a running sweep.
func (s *Scheduler) Stop(timeout time.Duration) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(timeout):
		s.log.Warn().Msg("orphan sweep still running at shutdown")
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("orphan sweep failed")
		return
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("orphan sweep removed files")
	}
}

// RunOnce sweeps both storage directories immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.files.Sweep(ctx, s.images.FilePathInUse, s.minAge)
}
