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

// Package modelserving manages the lifecycle of model scoring services: starting local
// processes and containers on demand, sharing them across requests and stopping them on
// shutdown.
package modelserving

import (
	"context"
	"fmt"
	"time"

	"github.com/asgardeo/orkestra/internal/system/config"
)

// State is the lifecycle state of a model handle.
type State int

const (
	// StateUnloaded means no load was attempted.
	StateUnloaded State = iota
	// StateLoading means a load is in flight.
	StateLoading
	// StateRunning means the model is reachable at the handle URL.
	StateRunning
	// StateFailed means the load failed. The handle points at the static base URL.
	StateFailed
	// StateStopped means the model was stopped.
	StateStopped
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	// StrategyHTTP uses an already running service at the static base URL.
	StrategyHTTP = "http"
	// StrategyLocalArtifact starts a local process from a model directory.
	StrategyLocalArtifact = "local_artifact"
	// StrategyContainerImage runs a container from a local or public image.
	StrategyContainerImage = "container_image"
	// StrategyRegistryImage runs a container from an image in a private ECR registry.
	StrategyRegistryImage = "registry_image"
)

// Key identifies a model within a model source.
type Key struct {
	SourceID string
	ModelID  string
}

// String returns "<source>/<model>".
func (k Key) String() string {
	return k.SourceID + "/" + k.ModelID
}

// Handle is a snapshot of the state of a model.
type Handle struct {
	Key       Key
	State     State
	Strategy  string
	BaseURL   string
	Deadline  time.Time
	StartedAt time.Time
	LastError string
	// Degraded is set when the handle points at the static base URL instead of a started instance.
	Degraded bool
}

// Instance is a started model service.
type Instance interface {
	// BaseURL returns the URL the service listens on.
	BaseURL() string
	// Stop terminates the service and releases its resources.
	Stop(ctx context.Context) error
}

// Launcher starts model services for one load strategy.
type Launcher interface {
	// Strategy returns the source type handled by the launcher.
	Strategy() string
	// Launch starts the service and returns once it is considered reachable.
	Launch(ctx context.Context, key Key, model config.ModelConfig) (Instance, error)
}

func strategyOf(model config.ModelConfig) string {
	if model.Source.Type == "" {
		return StrategyHTTP
	}
	return model.Source.Type
}

func hostOf(source config.ModelSourceConfig) string {
	if source.Host == "" {
		return "localhost"
	}
	return source.Host
}
