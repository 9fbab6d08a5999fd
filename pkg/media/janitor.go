package media

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"
)

// Janitor removes stale files from the temporary media directory on a cron schedule.
type Janitor struct {
	Dir      string
	MaxAge   time.Duration
	Schedule string
	log      zerolog.Logger
	now      func() time.Time
}

func NewJanitor(dir string, maxAge time.Duration, schedule string, log zerolog.Logger) *Janitor {
	if schedule == "" {
		schedule = "@hourly"
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Janitor{
		Dir:      dir,
		MaxAge:   maxAge,
		Schedule: schedule,
		log:      log.With().Str("component", "media_janitor").Logger(),
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick of the schedule until ctx is canceled.
func (j *Janitor) Run(ctx context.Context) error {
	if !gronx.IsValid(j.Schedule) {
		return errors.New("invalid cleanup schedule: " + j.Schedule)
	}
	j.sweepAndLog()
	for {
		next, err := gronx.NextTickAfter(j.Schedule, j.now(), false)
		if err != nil {
			return err
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			j.sweepAndLog()
		}
	}
}

func (j *Janitor) sweepAndLog() {
	removed, err := j.Sweep()
	if err != nil {
		j.log.Warn().Err(err).Msg("Temp media cleanup failed")
	} else if removed > 0 {
		j.log.Info().Int("count", removed).Msg("Removed stale temp media files")
	}
}

// Sweep removes regular files in Dir older than MaxAge and returns how many were removed.
func (j *Janitor) Sweep() (int, error) {
	entries, err := os.ReadDir(j.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	cutoff := j.now().Add(-j.MaxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(j.Dir, entry.Name())
		if err = os.Remove(path); err != nil {
			j.log.Debug().Err(err).Str("path", path).Msg("Failed to remove temp file")
			continue
		}
		removed++
	}
	return removed, nil
}
