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

// Package modelscoring provides the adapter for model scoring services with a remote, local and
// rule based fallback chain.
package modelscoring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/adapter/httpapi"
	"github.com/asgardeo/orkestra/internal/modelserving"
	"github.com/asgardeo/orkestra/internal/orchestrator/fallback"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/constants"
	httpclient "github.com/asgardeo/orkestra/internal/system/http"
	"github.com/asgardeo/orkestra/internal/system/log"
)

const (
	// OperationPredict scores a feature vector.
	OperationPredict = "predict"
	// OperationStatus returns the lifecycle state of a model.
	OperationStatus = "status"
)

const (
	// StrategyRemote posts to the static base URL of the model.
	StrategyRemote = "remote"
	// StrategyLocal posts to the instance started by the model manager.
	StrategyLocal = "local"
	// StrategyRules evaluates the configured threshold heuristic.
	StrategyRules = "rules"
)

const (
	loggerComponentName = "ModelScoringAdapter"
	defaultEndpoint     = "/predict"
	defaultTimeout      = 30 * time.Second
	maxResponseBytes    = 10 << 20
)

// ModelManager provides handles to locally started models.
type ModelManager interface {
	Acquire(ctx context.Context, key modelserving.Key, spec config.ModelConfig) (modelserving.Handle, error)
	Status(key modelserving.Key) modelserving.Handle
}

type service struct {
	cfg    config.ModelServiceSource
	client httpclient.HTTPClientInterface
}

// Adapter scores features against configured model services.
type Adapter struct {
	services map[string]*service
	manager  ModelManager
	observer fallback.Observer
}

// New creates the adapter. The manager may be nil, in which case the local strategy is
// unavailable.
func New(sources map[string]config.ModelServiceSource, manager ModelManager, observer fallback.Observer) *Adapter {
	a := &Adapter{services: make(map[string]*service, len(sources)), manager: manager, observer: observer}
	for id, cfg := range sources {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		a.services[id] = &service{cfg: cfg, client: httpclient.NewHTTPClientWithTimeout(timeout)}
	}
	return a
}

// Models returns the resolved configuration of every model of a source.
func (a *Adapter) Models(sourceID string) map[string]config.ModelConfig {
	svc, ok := a.services[sourceID]
	if !ok {
		return nil
	}
	out := make(map[string]config.ModelConfig, len(svc.cfg.Models))
	for id := range svc.cfg.Models {
		out[id] = svc.model(id)
	}
	return out
}

// model returns the model configuration with the source defaults applied.
func (s *service) model(id string) config.ModelConfig {
	m := s.cfg.Models[id]
	if m.BaseURL == "" {
		m.BaseURL = s.cfg.BaseURL
	}
	if m.Endpoint == "" {
		m.Endpoint = defaultEndpoint
	}
	m.BaseURL = strings.TrimRight(m.BaseURL, "/")
	return m
}

// Execute runs a predict or status operation.
func (a *Adapter) Execute(ctx context.Context, req adapter.Request) (value.Value, error) {
	svc, ok := a.services[req.SourceID]
	if !ok {
		return value.Null, adapter.Errorf(adapter.ClassInvalidInput, req.SourceID, req.Operation,
			"unknown model source: %s", req.SourceID)
	}
	params := adapter.ParamsOf(req)
	modelID, err := params.String("model")
	if err != nil {
		return value.Null, err
	}
	if _, ok := svc.cfg.Models[modelID]; !ok {
		return value.Null, adapter.Errorf(adapter.ClassInvalidInput, req.SourceID, req.Operation,
			"unknown model %s", modelID)
	}
	spec := svc.model(modelID)
	key := modelserving.Key{SourceID: req.SourceID, ModelID: modelID}

	switch req.Operation {
	case OperationStatus:
		return a.status(key, spec), nil
	case OperationPredict:
	default:
		return value.Null, adapter.UnsupportedOperation(req)
	}

	features, ok := params.Get("features")
	if !ok {
		return value.Null, adapter.Errorf(adapter.ClassInvalidInput, req.SourceID, req.Operation,
			"missing parameter: features")
	}

	call := func(ctx context.Context, strategy string) (value.Value, error) {
		switch strategy {
		case StrategyRemote:
			if spec.BaseURL == "" {
				return value.Null, adapter.Errorf(adapter.ClassUnavailable, req.SourceID, req.Operation,
					"model %s has no base_url", modelID)
			}
			return a.post(ctx, req, svc, spec.BaseURL+spec.Endpoint, features)
		case StrategyLocal:
			return a.local(ctx, req, svc, key, spec, features)
		case StrategyRules:
			return rules(req, spec, features)
		default:
			return value.Null, adapter.Errorf(adapter.ClassInvalidInput, req.SourceID, req.Operation,
				"unknown model strategy %q", strategy)
		}
	}

	if req.Strategy != "" {
		return call(ctx, req.Strategy)
	}

	observers := []fallback.Observer{func(strategy string, err error) {
		log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName)).
			Debug("Model strategy failed", log.String(log.LoggerKeyModelKey, key.String()),
				log.String("strategy", strategy), log.Error(err))
	}}
	if a.observer != nil {
		observers = append(observers, a.observer)
	}
	return fallback.Invoke(ctx, chainOf(spec), call, observers...)
}

// chainOf returns the configured fallback chain, or every strategy the model supports.
func chainOf(spec config.ModelConfig) []string {
	if len(spec.FallbackChain) > 0 {
		return spec.FallbackChain
	}
	var chain []string
	if spec.BaseURL != "" {
		chain = append(chain, StrategyRemote)
	}
	if hasLocal(spec) {
		chain = append(chain, StrategyLocal)
	}
	if spec.Heuristic != nil {
		chain = append(chain, StrategyRules)
	}
	return chain
}

func hasLocal(spec config.ModelConfig) bool {
	return spec.Source.Type != "" && spec.Source.Type != modelserving.StrategyHTTP
}

func (a *Adapter) local(ctx context.Context, req adapter.Request, svc *service, key modelserving.Key,
	spec config.ModelConfig, features value.Value) (value.Value, error) {
	if a.manager == nil || !hasLocal(spec) {
		return value.Null, adapter.Errorf(adapter.ClassUnavailable, req.SourceID, req.Operation,
			"model %s has no local source", key.ModelID)
	}
	handle, err := a.manager.Acquire(ctx, key, spec)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return value.Null, adapter.NewError(adapter.ClassOf(ctxErr), req.SourceID, req.Operation, err)
		}
		return value.Null, adapter.NewError(adapter.ClassUnavailable, req.SourceID, req.Operation, err)
	}
	if handle.BaseURL == "" {
		return value.Null, adapter.Errorf(adapter.ClassUnavailable, req.SourceID, req.Operation,
			"model %s is %s", key, handle.State)
	}
	return a.post(ctx, req, svc, handle.BaseURL+spec.Endpoint, features)
}

func (a *Adapter) post(ctx context.Context, req adapter.Request, svc *service, url string,
	features value.Value) (value.Value, error) {
	payload, err := value.MappingOf(value.Entry{Key: "features", Value: features}).MarshalJSON()
	if err != nil {
		return value.Null, adapter.NewError(adapter.ClassInvalidInput, req.SourceID, req.Operation, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return value.Null, adapter.NewError(adapter.ClassInvalidInput, req.SourceID, req.Operation, err)
	}
	httpReq.Header.Set(constants.ContentTypeHeaderName, constants.ContentTypeJSON)
	httpReq.Header.Set(constants.AcceptHeaderName, constants.ContentTypeJSON)

	resp, err := svc.client.Do(httpReq)
	if err != nil {
		class := adapter.ClassOf(err)
		if class != adapter.ClassTimeout {
			class = adapter.ClassUnavailable
		}
		return value.Null, adapter.NewError(class, req.SourceID, req.Operation, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return value.Null, adapter.NewError(adapter.ClassUnavailable, req.SourceID, req.Operation, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return value.Null, adapter.Errorf(httpapi.StatusClass(resp.StatusCode), req.SourceID, req.Operation,
			"model service returned http status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return value.Null, adapter.Errorf(adapter.ClassUnavailable, req.SourceID, req.Operation,
			"model service returned a non JSON response")
	}
	return value.FromGJSON(gjson.ParseBytes(body)), nil
}

// rules evaluates the heuristic bands in order; the first band whose bound exceeds the feature
// value wins.
func rules(req adapter.Request, spec config.ModelConfig, features value.Value) (value.Value, error) {
	h := spec.Heuristic
	if h == nil {
		return value.Null, adapter.Errorf(adapter.ClassUnavailable, req.SourceID, req.Operation,
			"no heuristic configured")
	}

	result, err := matchBand(h, features)
	if err != nil {
		return value.Null, adapter.NewError(adapter.ClassInvalidInput, req.SourceID, req.Operation, err)
	}
	if result == nil {
		return value.Null, adapter.Errorf(adapter.ClassNotFound, req.SourceID, req.Operation,
			"no heuristic band matched")
	}
	v, err := value.FromYAMLNode(result)
	if err != nil {
		return value.Null, adapter.NewError(adapter.ClassFatal, req.SourceID, req.Operation, err)
	}
	return v, nil
}

func matchBand(h *config.HeuristicConfig, features value.Value) (*yaml.Node, error) {
	hasDefault := h.Default.Kind != 0
	raw, ok := features.Get(h.Feature)
	if !ok || raw.IsNull() {
		if hasDefault {
			return &h.Default, nil
		}
		return nil, fmt.Errorf("feature %s is missing", h.Feature)
	}
	n, ok := raw.AsNumber()
	if !ok {
		return nil, fmt.Errorf("feature %s is not a number", h.Feature)
	}
	for i := range h.Bands {
		if n < h.Bands[i].Below {
			return &h.Bands[i].Result, nil
		}
	}
	if hasDefault {
		return &h.Default, nil
	}
	return nil, nil
}

func (a *Adapter) status(key modelserving.Key, spec config.ModelConfig) value.Value {
	var handle modelserving.Handle
	if a.manager != nil {
		handle = a.manager.Status(key)
	} else {
		handle = modelserving.Handle{Key: key, State: modelserving.StateUnloaded}
	}
	strategy := spec.Source.Type
	if strategy == "" {
		strategy = modelserving.StrategyHTTP
	}

	b := value.NewMappingBuilder(8).
		Set("source", value.String(key.SourceID)).
		Set("model", value.String(key.ModelID)).
		Set("state", value.String(handle.State.String())).
		Set("strategy", value.String(strategy)).
		Set("base_url", value.String(spec.BaseURL)).
		Set("degraded", value.Bool(handle.Degraded))
	if handle.BaseURL != "" {
		b.Set("base_url", value.String(handle.BaseURL))
	}
	if !handle.StartedAt.IsZero() {
		b.Set("started_at", value.String(handle.StartedAt.UTC().Format(time.RFC3339)))
	}
	if handle.LastError != "" {
		b.Set("last_error", value.String(handle.LastError))
	}
	return b.Build()
}

// CheckHealth reports models that failed to load.
func (a *Adapter) CheckHealth(ctx context.Context) map[string]error {
	results := make(map[string]error, len(a.services))
	for id, svc := range a.services {
		var errs []error
		if a.manager != nil {
			for modelID := range svc.cfg.Models {
				h := a.manager.Status(modelserving.Key{SourceID: id, ModelID: modelID})
				if h.State == modelserving.StateFailed && h.BaseURL == "" {
					errs = append(errs, fmt.Errorf("model %s: %s", modelID, h.LastError))
				}
			}
		}
		results[id] = errors.Join(errs...)
	}
	return results
}
