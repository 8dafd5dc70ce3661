package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	domainconfig "github.com/LoadingLlama/relation/domain/config"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDuration = 100 * time.Millisecond

// ConfigWatcher reloads the domain policy file on change and swaps the
// result into a Holder. An invalid file keeps the current policy.
type ConfigWatcher struct {
	cfg      *Config
	holder   *domainconfig.Holder
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu       sync.Mutex
	onChange []func(*domainconfig.DomainConfig)
}

// NewConfigWatcher watches cfg.DomainConfigFile
func NewConfigWatcher(cfg *Config, holder *domainconfig.Holder, logger *zap.Logger) (*ConfigWatcher, error) {
	if cfg.DomainConfigFile == "" {
		return nil, fmt.Errorf("no domain config file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic saves (rename over the file) are seen
	if err := watcher.Add(filepath.Dir(cfg.DomainConfigFile)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &ConfigWatcher{
		cfg:     cfg,
		holder:  holder,
		watcher: watcher,
		logger:  logger,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes
func (w *ConfigWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("Domain config watcher started", zap.String("path", w.cfg.DomainConfigFile))
}

// Stop stops watching and waits for the watch loop to exit
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		<-w.done
		w.logger.Info("Domain config watcher stopped")
	})
}

// OnChange registers a callback run after each successful reload
func (w *ConfigWatcher) OnChange(fn func(*domainconfig.DomainConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

func (w *ConfigWatcher) watchLoop() {
	defer close(w.done)

	var debounceTimer *time.Timer
	target := filepath.Base(w.cfg.DomainConfigFile)

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDuration, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *ConfigWatcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	domain, err := LoadDomainConfig(w.cfg)
	if err != nil {
		w.logger.Error("Invalid domain config, keeping current", zap.Error(err))
		return
	}

	old := w.holder.Get()
	w.holder.Set(domain)
	w.logChanges(old, domain)

	w.mu.Lock()
	handlers := append(make([]func(*domainconfig.DomainConfig), 0, len(w.onChange)), w.onChange...)
	w.mu.Unlock()
	for _, fn := range handlers {
		fn(domain)
	}
}

func (w *ConfigWatcher) logChanges(old, current *domainconfig.DomainConfig) {
	changes := []string{}

	if old.RequestKind != current.RequestKind {
		changes = append(changes, fmt.Sprintf("request_kind: %s -> %s", old.RequestKind, current.RequestKind))
	}
	if old.FadingThreshold != current.FadingThreshold {
		changes = append(changes, fmt.Sprintf("fading_threshold: %s -> %s", old.FadingThreshold, current.FadingThreshold))
	}
	if old.RevealPeriod != current.RevealPeriod {
		changes = append(changes, fmt.Sprintf("reveal_period: %s -> %s", old.RevealPeriod, current.RevealPeriod))
	}
	if old.MinIdentifierDigits != current.MinIdentifierDigits {
		changes = append(changes, fmt.Sprintf("min_identifier_digits: %d -> %d", old.MinIdentifierDigits, current.MinIdentifierDigits))
	}

	w.logger.Info("Domain config reloaded", zap.Strings("changes", changes))
}
