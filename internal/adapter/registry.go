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

package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/asgardeo/orkestra/internal/system/log"
)

// Registry maps source types to their adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[SourceType]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[SourceType]Adapter)}
}

// Register binds an adapter to a source type, replacing any previous binding.
func (r *Registry) Register(sourceType SourceType, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[sourceType.Normalize()] = a
}

// Get returns the adapter bound to a source type.
func (r *Registry) Get(sourceType SourceType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[sourceType.Normalize()]
	return a, ok
}

// SourceTypes returns the registered source types in sorted order.
func (r *Registry) SourceTypes() []SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]SourceType, 0, len(r.adapters))
	for sourceType := range r.adapters {
		types = append(types, sourceType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// CheckHealth collects the health of every adapter that can report it, keyed by
// "<source type>/<source id>".
func (r *Registry) CheckHealth(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, sourceType := range r.SourceTypes() {
		a, _ := r.Get(sourceType)
		checker, ok := a.(HealthChecker)
		if !ok {
			continue
		}
		for sourceID, err := range checker.CheckHealth(ctx) {
			results[fmt.Sprintf("%s/%s", sourceType, sourceID)] = err
		}
	}
	return results
}

// Close closes every adapter that owns connections.
func (r *Registry) Close() error {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "AdapterRegistry"))

	var errs []error
	for _, sourceType := range r.SourceTypes() {
		a, _ := r.Get(sourceType)
		closer, ok := a.(Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close adapter", log.String(log.LoggerKeySourceType, string(sourceType)),
				log.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
