package blocktype

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"resumekit/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Descriptor overrides — optional JSON file, hot-reloaded
// ─────────────────────────────────────────────────────────────

// Override adjusts display metadata for one built-in type. Validators and
// default factories are code, not configuration, and cannot be overridden.
type Override struct {
	DisplayName  string `json:"displayName,omitempty"`
	MaxInstances *int   `json:"maxInstances,omitempty"`
}

// ApplyOverrides reads the override file and re-registers the affected
// descriptors. Unknown types are rejected: an override cannot introduce a
// type the engine has no validator for.
func ApplyOverrides(reg *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read overrides: %w", err)
	}
	var overrides map[domain.BlockType]Override
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse overrides: %w", err)
	}
	for t, o := range overrides {
		d, ok := reg.Get(t)
		if !ok {
			return fmt.Errorf("override for unregistered type %q: %w", t, domain.ErrNotFound)
		}
		if o.DisplayName != "" {
			d.DisplayName = o.DisplayName
		}
		if o.MaxInstances != nil {
			if *o.MaxInstances <= 0 {
				return fmt.Errorf("override for %q: maxInstances must be positive", t)
			}
			d.MaxInstances = o.MaxInstances
		}
		reg.Register(d)
	}
	return nil
}

// OverrideWatcher re-applies the override file whenever it changes.
type OverrideWatcher struct {
	reg     *Registry
	path    string
	log     zerolog.Logger
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// NewOverrideWatcher watches path and re-registers descriptors on write.
func NewOverrideWatcher(reg *Registry, path string, log zerolog.Logger) (*OverrideWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("resolve override path: %w", err)
	}
	// Watch the directory: editors replace files rather than write in place.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch override dir: %w", err)
	}
	return &OverrideWatcher{reg: reg, path: abs, log: log, watcher: watcher}, nil
}

// Start begins the watch loop. Reload failures are logged, never fatal: the
// registry keeps serving the last good descriptors.
func (w *OverrideWatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go func() {
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				abs, _ := filepath.Abs(event.Name)
				if abs != w.path {
					continue
				}
				// Debounce editor write bursts
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(500*time.Millisecond, func() {
					if err := ApplyOverrides(w.reg, w.path); err != nil {
						w.log.Error().Err(err).Str("path", w.path).Msg("override reload failed")
						return
					}
					w.log.Info().Str("path", w.path).Msg("descriptor overrides reloaded")
				})
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Error().Err(err).Msg("override watcher error")
			}
		}
	}()
}

// Stop terminates the watch loop and releases the watcher.
func (w *OverrideWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.watcher.Close()
}
