// Package watch re-parses a study file when it changes on disk.
package watch

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/mbertin/studyrun/internal/study"
)

// Reloader watches one studymanager file and keeps the latest successfully
// parsed document available. A failed reload keeps the previous parser.
type Reloader struct {
	path     string
	debounce time.Duration
	logger   *log.Logger

	mu     sync.RWMutex
	parser *study.Parser

	group    singleflight.Group
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New loads path once and returns a reloader for it.
func New(path string, debounce time.Duration, logger *log.Logger) (*Reloader, error) {
	parser, err := study.Load(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Reloader{
		path:     path,
		debounce: debounce,
		logger:   logger,
		parser:   parser,
		done:     make(chan struct{}),
	}, nil
}

// Parser returns the latest successfully parsed document.
func (r *Reloader) Parser() *study.Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parser
}

// Reload re-parses the file now. Concurrent calls are collapsed into one
// parse.
func (r *Reloader) Reload() (*study.Parser, error) {
	v, err, _ := r.group.Do("reload", func() (any, error) {
		parser, err := study.Load(r.path)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.parser = parser
		r.mu.Unlock()
		return parser, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*study.Parser), nil
}

// Start begins watching the file's directory and reloading on changes.
func (r *Reloader) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	// Watch the directory: editors replace files by rename, which drops
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(r.path), err)
	}
	r.watcher = watcher

	r.wg.Add(1)
	go r.loop()
	return nil
}

// Stop ends the watch loop and releases the watcher. Safe to call more
// than once.
func (r *Reloader) Stop() {
	if r.watcher == nil {
		return
	}
	r.stopOnce.Do(func() {
		close(r.done)
		_ = r.watcher.Close()
	})
	r.wg.Wait()
}

func (r *Reloader) loop() {
	defer r.wg.Done()

	var pending <-chan time.Time
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(r.debounce)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Printf("watch error: %v", err)
		case <-pending:
			pending = nil
			if _, err := r.Reload(); err != nil {
				r.logger.Printf("reload %s: %v", r.path, err)
				continue
			}
			r.logger.Printf("reloaded %s", r.path)
		}
	}
}
