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

// Package databasemock provides mock implementations of the database interfaces for testing.
package databasemock

import (
	"context"

	"github.com/asgardeo/orkestra/internal/system/database/client"
)

// MockDBProvider is a mock implementation of the DBProviderInterface.
type MockDBProvider struct {
	// Clients maps source ids to the clients returned by GetDBClient.
	Clients map[string]client.DBClientInterface

	// Types maps source ids to the driver types returned by GetDBType.
	Types map[string]string

	// MockGetDBClient overrides the lookup in Clients when set.
	MockGetDBClient func(sourceID string) (client.DBClientInterface, error)

	// GetDBClientCalls tracks the arguments passed to GetDBClient.
	GetDBClientCalls []string

	// CloseCalls tracks the calls to Close.
	CloseCalls int
}

// GetDBClient mocks the GetDBClient method of the DBProviderInterface.
func (m *MockDBProvider) GetDBClient(sourceID string) (client.DBClientInterface, error) {
	m.GetDBClientCalls = append(m.GetDBClientCalls, sourceID)

	if m.MockGetDBClient != nil {
		return m.MockGetDBClient(sourceID)
	}
	if c, ok := m.Clients[sourceID]; ok {
		return c, nil
	}
	return nil, errUnknownSource(sourceID)
}

// GetDBType mocks the GetDBType method of the DBProviderInterface.
func (m *MockDBProvider) GetDBType(sourceID string) (string, error) {
	if t, ok := m.Types[sourceID]; ok {
		return t, nil
	}
	if _, ok := m.Clients[sourceID]; ok {
		return "sqlite", nil
	}
	return "", errUnknownSource(sourceID)
}

// CheckHealth mocks the CheckHealth method of the DBProviderInterface.
func (m *MockDBProvider) CheckHealth(ctx context.Context) map[string]error {
	results := make(map[string]error, len(m.Clients))
	for id, c := range m.Clients {
		results[id] = c.Ping(ctx)
	}
	return results
}

// Close mocks the Close method of the DBProviderInterface.
func (m *MockDBProvider) Close() error {
	m.CloseCalls++
	return nil
}

type errUnknownSource string

func (e errUnknownSource) Error() string {
	return "unknown relational source: " + string(e)
}
