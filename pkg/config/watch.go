package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDebounce collapses the burst of events editors produce when saving.
const reloadDebounce = 500 * time.Millisecond

// Watch reloads the config file whenever it changes and passes the new
// config to onChange. Invalid configs are logged and ignored. Watch blocks
// until ctx is canceled.
func Watch(ctx context.Context, path string, log zerolog.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// Watch the directory, editors often replace the file instead of writing it.
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	log = log.With().Str("component", "config_watcher").Str("path", path).Logger()
	target := filepath.Clean(path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) == target && (evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create)) {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Config watcher error")
		case <-pending:
			pending = nil
			cfg, err := Load(path, false)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to reload config, keeping the previous one")
				continue
			}
			log.Info().Msg("Config file changed")
			onChange(cfg)
		}
	}
}

// ApplyLogLevel sets the global log level from the config's logging.min_level.
func ApplyLogLevel(cfg *Config) {
	if cfg.Logging.MinLevel != nil {
		zerolog.SetGlobalLevel(*cfg.Logging.MinLevel)
	}
}
