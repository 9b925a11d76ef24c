package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/agentstation/nightsync"
	pkgsync "github.com/agentstation/nightsync/pkg/sync"
)

// Watcher re-syncs when one file changes.
type Watcher struct {
	syncer   nightsync.Syncer
	path     string
	debounce time.Duration
	logger   *zerolog.Logger
}

// New creates a Watcher for path.
func New(s nightsync.Syncer, path string, debounce time.Duration, logger *zerolog.Logger) *Watcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Watcher{
		syncer:   s,
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   logger,
	}
}

// Run syncs once and then after every debounced change until ctx is done.
// report receives every run outcome. The parent directory is watched so
// that atomic replacements are seen.
func (w *Watcher) Run(ctx context.Context, report func(*pkgsync.Result, error), opts ...pkgsync.Option) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.logger.Info().Str("path", w.path).Dur("debounce", w.debounce).Msg("Watching artifact")

	run := func() {
		result, err := w.syncer.Sync(ctx, opts...)
		if ctx.Err() != nil {
			return
		}
		if report != nil {
			report(result, err)
		}
	}
	run()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != w.path || evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().Str("op", evt.Op.String()).Msg("Artifact changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}
