package sabotage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const defaultDebounce = 300 * time.Millisecond

// CatalogWatcher hot-reloads a catalog from a JSON override file. The
// file holds an array of Strategy objects replacing the built-in set.
type CatalogWatcher struct {
	catalog  *Catalog
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewCatalogWatcher creates a watcher for the given override file. The
// file does not need to exist yet; its directory does.
func NewCatalogWatcher(catalog *Catalog, path string) (*CatalogWatcher, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if path == "" {
		return nil, fmt.Errorf("override file path is required")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &CatalogWatcher{
		catalog:  catalog,
		path:     path,
		debounce: defaultDebounce,
		watcher:  w,
		done:     make(chan struct{}),
	}, nil
}

// Start applies the override file if present, then watches its
// directory for changes.
func (cw *CatalogWatcher) Start() error {
	if _, err := os.Stat(cw.path); err == nil {
		if err := cw.reload(); err != nil {
			log.Warn().Str("path", cw.path).Err(err).Msg("Initial catalog override rejected")
		}
	}

	// Watch the directory: editors replace files instead of writing
	// in place, which drops a watch on the file itself.
	if err := cw.watcher.Add(filepath.Dir(cw.path)); err != nil {
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}

	go cw.loop()

	log.Info().Str("path", cw.path).Msg("Catalog override watcher started")
	return nil
}

// Stop shuts the watcher down
func (cw *CatalogWatcher) Stop() {
	cw.stopOnce.Do(func() {
		close(cw.done)
		cw.watcher.Close()
	})
}

func (cw *CatalogWatcher) loop() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(cw.path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			cw.scheduleReload()
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Catalog watcher error")
		case <-cw.done:
			return
		}
	}
}

func (cw *CatalogWatcher) scheduleReload() {
	cw.timerMu.Lock()
	defer cw.timerMu.Unlock()

	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, func() {
		if err := cw.reload(); err != nil {
			log.Warn().Str("path", cw.path).Err(err).Msg("Catalog override rejected, keeping current set")
		}
	})
}

func (cw *CatalogWatcher) reload() error {
	data, err := os.ReadFile(cw.path)
	if err != nil {
		return fmt.Errorf("failed to read override file: %w", err)
	}

	var strategies []Strategy
	if err := json.Unmarshal(data, &strategies); err != nil {
		return fmt.Errorf("failed to parse override file: %w", err)
	}

	if err := cw.catalog.Replace(strategies); err != nil {
		return err
	}

	log.Info().Str("path", cw.path).Int("strategies", len(strategies)).Msg("Catalog override applied")
	return nil
}
