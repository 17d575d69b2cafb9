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

// Package adaptermock provides mock implementations of the adapter interfaces for testing.
package adaptermock

import (
	"context"
	"sync"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// MockAdapter is a mock implementation of the adapter.Adapter interface.
type MockAdapter struct {
	// MockExecute defines the behavior for the Execute method.
	MockExecute func(ctx context.Context, req adapter.Request) (value.Value, error)

	// MockCheckHealth defines the behavior for the CheckHealth method.
	MockCheckHealth func(ctx context.Context) map[string]error

	// MockClose defines the behavior for the Close method.
	MockClose func() error

	mu sync.Mutex

	// ExecuteCalls tracks the requests passed to Execute.
	ExecuteCalls []adapter.Request

	// CloseCalls tracks the calls to Close.
	CloseCalls int
}

// Execute mocks the Execute method of the adapter.Adapter interface.
func (m *MockAdapter) Execute(ctx context.Context, req adapter.Request) (value.Value, error) {
	m.mu.Lock()
	m.ExecuteCalls = append(m.ExecuteCalls, req)
	m.mu.Unlock()

	if m.MockExecute != nil {
		return m.MockExecute(ctx, req)
	}
	return value.Null, nil
}

// CheckHealth mocks the CheckHealth method of the adapter.HealthChecker interface.
func (m *MockAdapter) CheckHealth(ctx context.Context) map[string]error {
	if m.MockCheckHealth != nil {
		return m.MockCheckHealth(ctx)
	}
	return map[string]error{}
}

// Close mocks the Close method of the adapter.Closer interface.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	m.mu.Unlock()

	if m.MockClose != nil {
		return m.MockClose()
	}
	return nil
}

// Calls returns a snapshot of the requests passed to Execute.
func (m *MockAdapter) Calls() []adapter.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]adapter.Request, len(m.ExecuteCalls))
	copy(calls, m.ExecuteCalls)
	return calls
}
