package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher watches a drop directory and feeds new files to an Ingestor
type Watcher struct {
	watcher  *fsnotify.Watcher
	ingestor *Ingestor
	logger   zerolog.Logger
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	stopCh chan struct{}
}

// NewWatcher creates a watcher over the given drop directory. Writes
// are debounced per file so a drop is ingested once, after it has
// settled.
func NewWatcher(dropDir string, ingestor *Ingestor, logger zerolog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  watcher,
		ingestor: ingestor,
		logger:   logger.With().Str("component", "ingest_watcher").Logger(),
		debounce: 500 * time.Millisecond,
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}

	if err := watcher.Add(dropDir); err != nil {
		watcher.Close()
		return nil, err
	}

	go w.run()
	w.logger.Info().Str("dir", dropDir).Msg("watching drop directory")
	return w, nil
}

// Stop stops the watcher and cancels pending ingests
func (w *Watcher) Stop() error {
	close(w.stopCh)

	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !supportedDrop(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("drop change detected")
				w.scheduleIngest(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("drop watcher error")

		case <-w.stopCh:
			return
		}
	}
}

func supportedDrop(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".json":
		return true
	}
	return false
}

// scheduleIngest debounces ingestion per file path
func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.stopCh:
			return
		default:
		}

		_, _ = w.ingestor.ProcessFile(context.Background(), path)
	})
}
