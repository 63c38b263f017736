// Package shutdown provides idle monitoring for scale-to-zero deployments.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BusyChecker reports whether background work is in progress. Used to keep
// the server alive while the run worker is processing.
type BusyChecker func() bool

// IdleMonitor tracks request activity and signals when the server has been
// idle long enough to shut down. A timeout of 0 disables it.
type IdleMonitor struct {
	timeout        time.Duration
	logger         *slog.Logger
	activeRequests int64
	lastActivity   time.Time
	mu             sync.RWMutex
	shutdownChan   chan struct{}
	stopChan       chan struct{}
	excludePaths   []string
	busyCheck      BusyChecker
}

// Config holds idle monitor configuration.
type Config struct {
	Timeout      time.Duration
	Logger       *slog.Logger
	ExcludePaths []string    // paths that don't count as activity (health probes)
	BusyCheck    BusyChecker // optional background-work check
}

// NewIdleMonitor creates a new idle monitor.
func NewIdleMonitor(cfg Config) *IdleMonitor {
	return &IdleMonitor{
		timeout:      cfg.Timeout,
		logger:       cfg.Logger,
		lastActivity: time.Now(),
		shutdownChan: make(chan struct{}),
		stopChan:     make(chan struct{}),
		excludePaths: cfg.ExcludePaths,
		busyCheck:    cfg.BusyCheck,
	}
}

// Start begins monitoring for idle periods.
func (m *IdleMonitor) Start() {
	if m.timeout <= 0 {
		m.logger.Debug("idle monitoring disabled")
		return
	}
	m.logger.Info("idle monitoring started", "timeout", m.timeout, "exclude_paths", m.excludePaths)
	go m.run()
}

// Stop stops the idle monitor.
func (m *IdleMonitor) Stop() {
	if m.timeout <= 0 {
		return
	}
	close(m.stopChan)
}

// ShutdownChan returns a channel closed when the idle timeout is reached.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.shutdownChan
}

// Middleware tracks request activity, skipping excluded paths.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if m.timeout <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		excluded := false
		for _, prefix := range m.excludePaths {
			if strings.HasPrefix(r.URL.Path, prefix) {
				excluded = true
				break
			}
		}

		if !excluded {
			atomic.AddInt64(&m.activeRequests, 1)
			m.touch()
			defer func() {
				atomic.AddInt64(&m.activeRequests, -1)
				m.touch()
			}()
		}

		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

func (m *IdleMonitor) run() {
	// Check well inside the timeout window so shutdown is responsive.
	checkInterval := m.timeout / 6
	if checkInterval < 5*time.Second {
		checkInterval = 5 * time.Second
	}
	if checkInterval > 30*time.Second {
		checkInterval = 30 * time.Second
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			active := atomic.LoadInt64(&m.activeRequests)

			busy := false
			if m.busyCheck != nil {
				busy = m.busyCheck()
			}

			// In-flight requests or background work reset the timer, so the
			// grace period starts fresh once everything finishes.
			if active > 0 || busy {
				m.touch()
				continue
			}

			m.mu.RLock()
			idleTime := time.Since(m.lastActivity)
			m.mu.RUnlock()

			if idleTime >= m.timeout {
				m.logger.Info("idle timeout reached, signaling graceful shutdown",
					"idle_time", idleTime,
					"timeout", m.timeout,
				)
				close(m.shutdownChan)
				return
			}
		}
	}
}
