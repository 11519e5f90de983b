// Package file provides filesystem adapters: a flow directory loader and a
// JSON file session store.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dylan-euc/client-side-quiz/internal/compiler"
	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/fsnotify/fsnotify"
)

const debounce = 200 * time.Millisecond

// Loader reads every *.yaml, *.yml and *.json flow under a directory tree.
type Loader struct {
	Dir    string
	logger *slog.Logger

	mu        sync.RWMutex
	checksums map[string]string
}

var (
	_ ports.FlowLoader = (*Loader)(nil)
	_ ports.Watchable  = (*Loader)(nil)
)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger used for watch diagnostics.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		Dir:       dir,
		logger:    logging.NewNop(),
		checksums: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func isFlowFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadFlows parses every flow file in lexical path order.
func (l *Loader) LoadFlows(ctx context.Context) ([]*domain.FlowDefinition, error) {
	parser := compiler.NewParser()
	var flows []*domain.FlowDefinition
	sums := make(map[string]string)

	err := filepath.WalkDir(l.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isFlowFile(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read flow file: %w", err)
		}
		flow, err := parser.ParseFormat(data, compiler.FormatFromPath(path))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		sum := sha256.Sum256(data)
		sums[flow.Key()] = hex.EncodeToString(sum[:])
		flows = append(flows, flow)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.checksums = sums
	l.mu.Unlock()
	return flows, nil
}

// Checksum returns the SHA-256 of the file a flow version was last loaded from.
func (l *Loader) Checksum(flowID, version string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sum, ok := l.checksums[flowID+"@"+version]
	return sum, ok
}

// Watch implements ports.Watchable. Bursts of file events are coalesced into
// one signal.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}

	err = filepath.WalkDir(l.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", l.Dir, err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer watcher.Close()

		var timer <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Has(fsnotify.Create) {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						_ = watcher.Add(evt.Name)
					}
				}
				if !isFlowFile(evt.Name) {
					continue
				}
				l.logger.Debug("flow file changed", "path", evt.Name, "op", evt.Op.String())
				timer = time.After(debounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("watcher error", logging.Err(err))
			case <-timer:
				timer = nil
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}
