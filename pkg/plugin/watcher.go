package plugin

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// MetadataWatcher drops cached metadata when an AGENT.json changes
type MetadataWatcher struct {
	watcher  *fsnotify.Watcher
	metadata *MetadataLoader
	logger   zerolog.Logger
	onChange func(dir string)
	done     chan struct{}
}

// Watch starts watching the given artifact directories until ctx is done.
// onChange, when set, runs after each invalidation.
func (l *Loader) Watch(ctx context.Context, onChange func(dir string), dirs ...string) (*MetadataWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	mw := &MetadataWatcher{
		watcher:  watcher,
		metadata: l.metadata,
		logger:   l.logger.With().Str("component", "metadata-watcher").Logger(),
		onChange: onChange,
		done:     make(chan struct{}),
	}

	go mw.run(ctx)

	return mw, nil
}

// Done is closed once the watcher has stopped
func (mw *MetadataWatcher) Done() <-chan struct{} {
	return mw.done
}

// Close stops the watcher
func (mw *MetadataWatcher) Close() error {
	return mw.watcher.Close()
}

func (mw *MetadataWatcher) run(ctx context.Context) {
	defer close(mw.done)

	for {
		select {
		case event, ok := <-mw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != MetadataFile {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				dir := filepath.Dir(event.Name)
				mw.metadata.Invalidate(dir)
				mw.logger.Debug().
					Str("dir", dir).
					Str("op", event.Op.String()).
					Msg("Metadata change detected")
				if mw.onChange != nil {
					mw.onChange(dir)
				}
			}

		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			mw.logger.Error().Err(err).Msg("Metadata watcher error")

		case <-ctx.Done():
			mw.watcher.Close()
			return
		}
	}
}
