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

// Package modelservingmock provides mock implementations of the model manager for testing.
package modelservingmock

import (
	"context"
	"sync"

	"github.com/asgardeo/orkestra/internal/modelserving"
	"github.com/asgardeo/orkestra/internal/system/config"
)

// MockManager is a mock implementation of the model manager used by the model scoring adapter.
type MockManager struct {
	// MockAcquire defines the behavior for the Acquire method.
	MockAcquire func(ctx context.Context, key modelserving.Key, spec config.ModelConfig) (modelserving.Handle, error)

	// MockStatus defines the behavior for the Status method.
	MockStatus func(key modelserving.Key) modelserving.Handle

	mu sync.Mutex

	// AcquireCalls tracks the keys passed to Acquire.
	AcquireCalls []modelserving.Key
}

// Acquire mocks the Acquire method.
func (m *MockManager) Acquire(ctx context.Context, key modelserving.Key,
	spec config.ModelConfig) (modelserving.Handle, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, key)
	m.mu.Unlock()

	if m.MockAcquire != nil {
		return m.MockAcquire(ctx, key, spec)
	}
	return modelserving.Handle{Key: key, State: modelserving.StateRunning, BaseURL: spec.BaseURL}, nil
}

// Status mocks the Status method.
func (m *MockManager) Status(key modelserving.Key) modelserving.Handle {
	if m.MockStatus != nil {
		return m.MockStatus(key)
	}
	return modelserving.Handle{Key: key, State: modelserving.StateUnloaded}
}
