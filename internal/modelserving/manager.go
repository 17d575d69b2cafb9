/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package modelserving

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/asgardeo/orkestra/internal/orchestrator/model"
	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/log"
	"github.com/asgardeo/orkestra/internal/system/metrics"
)

const (
	loggerComponentName = "ModelManager"
	defaultLoadTimeout  = 5 * time.Minute
	defaultWaitTimeout  = 30 * time.Second
)

// ErrManagerClosed is returned by Acquire after Shutdown.
var ErrManagerClosed = errors.New("model manager is shut down")

type entry struct {
	handle     Handle
	instance   Instance
	static     string
	healthPath string
}

// Manager owns the model handles. At most one load per key is in flight; concurrent callers
// share its outcome.
type Manager struct {
	loadTimeout time.Duration
	waitTimeout time.Duration
	launchers   map[string]Launcher
	collector   *metrics.Collector
	logger      *log.Logger

	mu      sync.Mutex
	entries map[Key]*entry
	closed  bool
	group   singleflight.Group
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewManager creates a manager with the given launchers, one per load strategy.
func NewManager(cfg config.ModelServingConfig, collector *metrics.Collector, launchers ...Launcher) *Manager {
	loadTimeout := cfg.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	waitTimeout := cfg.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		loadTimeout: loadTimeout,
		waitTimeout: waitTimeout,
		launchers:   make(map[string]Launcher, len(launchers)),
		collector:   collector,
		logger:      log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName)),
		entries:     make(map[Key]*entry),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, l := range launchers {
		m.launchers[l.Strategy()] = l
	}
	return m
}

// Acquire returns a handle for the model, starting it if needed. Callers wait until the load
// finishes, their context ends or the wait bound elapses; on the bound they receive a degraded
// handle at the static base URL while the load continues. A model that failed to load keeps
// pointing at its static base URL. Without a static base URL such models yield a
// *model.LoadError.
func (m *Manager) Acquire(ctx context.Context, key Key, spec config.ModelConfig) (Handle, error) {
	strategy := strategyOf(spec)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Handle{}, ErrManagerClosed
	}
	e, ok := m.entries[key]
	if !ok {
		e = &entry{
			handle:     Handle{Key: key, State: StateUnloaded, Strategy: strategy},
			static:     spec.BaseURL,
			healthPath: spec.HealthPath,
		}
		m.entries[key] = e
	}

	switch e.handle.State {
	case StateRunning:
		h := e.handle
		m.mu.Unlock()
		return h, nil
	case StateFailed:
		h, err := degraded(e)
		m.mu.Unlock()
		return h, err
	}

	if strategy == StrategyHTTP {
		e.handle.State = StateRunning
		e.handle.BaseURL = spec.BaseURL
		e.handle.StartedAt = time.Now()
		h := e.handle
		m.mu.Unlock()
		m.recordState(h)
		if spec.BaseURL == "" {
			return h, &model.LoadError{SourceID: key.SourceID, ModelID: key.ModelID, Strategy: strategy,
				Err: errors.New("no base_url configured")}
		}
		return h, nil
	}

	if e.handle.State != StateLoading {
		e.handle.State = StateLoading
		e.handle.Deadline = time.Now().Add(m.loadTimeout)
		e.handle.LastError = ""
	}
	m.recordState(e.handle)
	m.mu.Unlock()

	results := m.group.DoChan(key.String(), func() (interface{}, error) {
		return m.load(key, spec), nil
	})

	timer := time.NewTimer(m.waitTimeout)
	defer timer.Stop()

	select {
	case res := <-results:
		h := res.Val.(Handle)
		if h.State == StateFailed {
			m.mu.Lock()
			defer m.mu.Unlock()
			return degraded(m.entries[key])
		}
		if h.State != StateRunning {
			return h, &model.LoadError{SourceID: key.SourceID, ModelID: key.ModelID, Strategy: strategy,
				Err: fmt.Errorf("model is %s", h.State)}
		}
		return h, nil
	case <-ctx.Done():
		return Handle{}, ctx.Err()
	case <-timer.C:
		m.mu.Lock()
		defer m.mu.Unlock()
		m.logger.Warn("Model load is taking longer than the wait bound, using the static base URL",
			log.String(log.LoggerKeyModelKey, key.String()), log.Duration("waitTimeout", m.waitTimeout))
		h := e.handle
		h.BaseURL = e.static
		h.Degraded = true
		if e.static == "" {
			return h, &model.LoadError{SourceID: key.SourceID, ModelID: key.ModelID, Strategy: strategy,
				Err: errors.New("model is still loading")}
		}
		return h, nil
	}
}

// load runs the launcher of a model. It is executed once per in flight load.
func (m *Manager) load(key Key, spec config.ModelConfig) Handle {
	m.mu.Lock()
	e := m.entries[key]
	if e.handle.State != StateLoading {
		// A previous load completed between the state check and joining the flight.
		h := e.handle
		m.mu.Unlock()
		return h
	}
	strategy := e.handle.Strategy
	m.mu.Unlock()

	logger := m.logger.With(log.String(log.LoggerKeyModelKey, key.String()), log.String("strategy", strategy))
	logger.Info("Loading model")
	start := time.Now()

	var instance Instance
	launcher, ok := m.launchers[strategy]
	err := fmt.Errorf("no launcher for strategy %s", strategy)
	if ok {
		ctx, cancel := context.WithTimeout(m.ctx, m.loadTimeout)
		instance, err = launcher.Launch(ctx, key, spec)
		cancel()
	}
	m.collector.RecordModelLoad(strategy, time.Since(start), err)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil && m.closed {
		err = ErrManagerClosed
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if stopErr := instance.Stop(stopCtx); stopErr != nil {
			logger.Error("Failed to stop model started during shutdown", log.Error(stopErr))
		}
		cancel()
		instance = nil
	}

	if err != nil {
		logger.Error("Failed to load model", log.Error(err))
		e.handle.State = StateFailed
		e.handle.LastError = err.Error()
		e.handle.BaseURL = e.static
	} else {
		logger.Info("Model is running", log.String("baseUrl", instance.BaseURL()),
			log.Duration("elapsed", time.Since(start)))
		e.instance = instance
		e.handle.State = StateRunning
		e.handle.BaseURL = instance.BaseURL()
		e.handle.StartedAt = time.Now()
	}
	m.recordState(e.handle)
	return e.handle
}

func degraded(e *entry) (Handle, error) {
	h := e.handle
	h.BaseURL = e.static
	h.Degraded = true
	if e.static == "" {
		return h, &model.LoadError{SourceID: h.Key.SourceID, ModelID: h.Key.ModelID, Strategy: h.Strategy,
			Err: errors.New(h.LastError)}
	}
	return h, nil
}

// Unload stops a running model. A later Acquire starts it again.
func (m *Manager) Unload(ctx context.Context, key Key) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok || e.handle.State != StateRunning {
		m.mu.Unlock()
		return nil
	}
	instance := e.instance
	e.instance = nil
	e.handle.State = StateStopped
	h := e.handle
	m.mu.Unlock()

	m.recordState(h)
	if instance == nil {
		return nil
	}
	return instance.Stop(ctx)
}

// Status returns the handle of a model, or an unloaded handle when it is unknown.
func (m *Manager) Status(key Key) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e.handle
	}
	return Handle{Key: key, State: StateUnloaded}
}

// Handles returns every known handle ordered by key.
func (m *Manager) Handles() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	handles := make([]Handle, 0, len(m.entries))
	for _, e := range m.entries {
		handles = append(handles, e.handle)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].Key.String() < handles[j].Key.String() })
	return handles
}

// Shutdown cancels in flight loads and stops every started model.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancel()

	type stop struct {
		key      Key
		instance Instance
	}
	var stops []stop
	for key, e := range m.entries {
		if e.handle.State == StateRunning && e.instance != nil {
			stops = append(stops, stop{key: key, instance: e.instance})
		}
		if e.handle.State == StateRunning {
			e.handle.State = StateStopped
		}
		e.instance = nil
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range stops {
		m.logger.Info("Stopping model", log.String(log.LoggerKeyModelKey, s.key.String()))
		if err := s.instance.Stop(ctx); err != nil {
			m.logger.Error("Failed to stop model", log.String(log.LoggerKeyModelKey, s.key.String()), log.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.key, err))
		}
	}
	return errors.Join(errs...)
}

type probeTarget struct {
	key Key
	url string
}

// probeTargets returns the health URLs of running models that declare a health path.
func (m *Manager) probeTargets() []probeTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	var targets []probeTarget
	for key, e := range m.entries {
		if e.handle.State != StateRunning || e.healthPath == "" || e.handle.BaseURL == "" {
			continue
		}
		targets = append(targets, probeTarget{key: key, url: e.handle.BaseURL + e.healthPath})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].key.String() < targets[j].key.String() })
	return targets
}

func (m *Manager) recordState(h Handle) {
	m.collector.RecordModelState(h.Key.SourceID, h.Key.ModelID, int(h.State))
}
