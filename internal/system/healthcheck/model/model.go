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

// Package model defines the data structures reported by the health check APIs.
package model

// Status represents the health of the server or a backend.
type Status string

const (
	// StatusUp indicates the server or backend is healthy.
	StatusUp Status = "UP"
	// StatusDown indicates the server or backend is unhealthy.
	StatusDown Status = "DOWN"
)

// ServiceStatus reports the health of a single backend.
type ServiceStatus struct {
	ServiceName string `json:"service_name"`
	Status      Status `json:"status"`
}

// ServerStatus reports the overall readiness of the server.
type ServerStatus struct {
	Status        Status          `json:"status"`
	ServiceStatus []ServiceStatus `json:"service_status"`
}
