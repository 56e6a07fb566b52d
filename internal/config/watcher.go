// internal/config/watcher.go
package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/valpere/FeedHarvester/internal/utils"
)

// ConfigWatcher reloads the configuration file when it changes. Invalid
// edits are logged and ignored, so callbacks only ever see valid configs.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	logger     utils.Logger
	callbacks  []func(*Config)
	mu         sync.RWMutex
	stopped    bool
	done       chan struct{}
}

// NewConfigWatcher creates a new configuration file watcher
func NewConfigWatcher(configPath string, logger utils.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = utils.NewLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	cw := &ConfigWatcher{
		watcher:    watcher,
		configPath: filepath.Clean(configPath),
		logger:     logger,
		callbacks:  make([]func(*Config), 0),
		done:       make(chan struct{}),
	}

	// Watch the directory so editors that replace the file are caught
	dir := filepath.Dir(cw.configPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	go cw.watch()

	return cw, nil
}

// OnChange registers a callback to be called when the config changes
func (cw *ConfigWatcher) OnChange(callback func(*Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// watch handles file system events
func (cw *ConfigWatcher) watch() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) == cw.configPath && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				cw.handleConfigChange()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warnf("Config watcher error: %v", err)
		}
	}
}

// handleConfigChange processes configuration file changes
func (cw *ConfigWatcher) handleConfigChange() {
	cw.mu.RLock()
	if cw.stopped {
		cw.mu.RUnlock()
		return
	}
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	config, err := LoadFromFile(cw.configPath)
	if err != nil {
		cw.logger.Errorf("Failed to reload config: %v", err)
		return
	}
	cw.logger.Infof("Configuration reloaded from %s", cw.configPath)

	for _, callback := range callbacks {
		callback(config)
	}
}

// Close stops the watcher and releases resources
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.stopped {
		cw.mu.Unlock()
		return nil
	}
	cw.stopped = true
	cw.mu.Unlock()

	err := cw.watcher.Close()
	<-cw.done
	return err
}
