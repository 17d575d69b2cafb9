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

// Package httpapi provides the adapter for external HTTP APIs.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/constants"
	httpclient "github.com/asgardeo/orkestra/internal/system/http"
	"github.com/asgardeo/orkestra/internal/system/log"
)

const (
	// OperationRequest sends a request with the method given in the parameters.
	OperationRequest = "request"
	// OperationGet sends a GET request.
	OperationGet = "get"
	// OperationPost sends a POST request.
	OperationPost = "post"
	// OperationPut sends a PUT request.
	OperationPut = "put"
	// OperationDelete sends a DELETE request.
	OperationDelete = "delete"
)

const (
	loggerComponentName = "HTTPAPIAdapter"
	maxResponseBytes    = 10 << 20
)

type source struct {
	cfg    config.HTTPAPISource
	client httpclient.HTTPClientInterface
}

// Adapter executes requests against configured HTTP APIs.
type Adapter struct {
	sources map[string]source
}

// New creates an adapter for the configured APIs. Each source gets its own client with the
// configured timeout and rate limit.
func New(sources map[string]config.HTTPAPISource) *Adapter {
	a := &Adapter{sources: make(map[string]source, len(sources))}
	for id, cfg := range sources {
		client := httpclient.NewRateLimitedClient(httpclient.NewHTTPClientWithTimeout(cfg.Timeout),
			cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		a.sources[id] = source{cfg: cfg, client: client}
	}
	return a
}

// Execute sends one request and converts the response to a value.
func (a *Adapter) Execute(ctx context.Context, req adapter.Request) (value.Value, error) {
	src, ok := a.sources[req.SourceID]
	if !ok {
		return value.Null, adapter.Errorf(adapter.ClassInvalidInput, req.SourceID, req.Operation,
			"unknown http_api source: %s", req.SourceID)
	}

	params := adapter.ParamsOf(req)
	method, err := methodOf(req, params)
	if err != nil {
		return value.Null, err
	}

	httpReq, cancel, err := buildRequest(ctx, req, params, src.cfg, method)
	if err != nil {
		return value.Null, err
	}
	defer cancel()

	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName))
	logger.Debug("Sending request", log.String("sourceId", req.SourceID), log.String("method", method),
		log.String("url", httpReq.URL.Redacted()))

	resp, err := src.client.Do(httpReq)
	if err != nil {
		class := adapter.ClassOf(err)
		if class != adapter.ClassTimeout {
			class = adapter.ClassUnavailable
		}
		return value.Null, adapter.NewError(class, req.SourceID, req.Operation, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("Error closing response body", log.Error(closeErr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return value.Null, adapter.NewError(adapter.ClassUnavailable, req.SourceID, req.Operation, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Debug("Request failed", log.String("sourceId", req.SourceID), log.Int("status", resp.StatusCode),
			log.String("body", truncate(string(body), 512)))
		return value.Null, adapter.Errorf(StatusClass(resp.StatusCode), req.SourceID, req.Operation,
			"http status %d", resp.StatusCode)
	}

	resultPath, err := params.OptionalString("result_path", src.cfg.ResultPath)
	if err != nil {
		return value.Null, err
	}
	return decodeBody(resp, body, resultPath), nil
}

func methodOf(req adapter.Request, params adapter.Params) (string, error) {
	switch req.Operation {
	case OperationGet:
		return http.MethodGet, nil
	case OperationPost:
		return http.MethodPost, nil
	case OperationPut:
		return http.MethodPut, nil
	case OperationDelete:
		return http.MethodDelete, nil
	case OperationRequest:
		method, err := params.OptionalString("method", http.MethodGet)
		if err != nil {
			return "", err
		}
		return strings.ToUpper(method), nil
	default:
		return "", adapter.UnsupportedOperation(req)
	}
}

func buildRequest(ctx context.Context, req adapter.Request, params adapter.Params, cfg config.HTTPAPISource,
	method string) (*http.Request, context.CancelFunc, error) {
	path, err := params.OptionalString("path", "")
	if err != nil {
		return nil, nil, err
	}
	target, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, nil, adapter.NewError(adapter.ClassInvalidInput, req.SourceID, req.Operation, err)
	}

	queryParams, err := params.Mapping("query_params")
	if err != nil {
		return nil, nil, err
	}
	query := target.Query()
	for _, entry := range queryParams.Entries() {
		for _, item := range queryValues(entry.Value) {
			query.Add(entry.Key, item)
		}
	}
	target.RawQuery = query.Encode()

	var body io.Reader
	if bodyValue, ok := params.Get("body"); ok {
		encoded, err := bodyValue.MarshalJSON()
		if err != nil {
			return nil, nil, adapter.NewError(adapter.ClassInvalidInput, req.SourceID, req.Operation, err)
		}
		body = bytes.NewReader(encoded)
	}

	timeout, err := timeoutOf(params)
	if err != nil {
		return nil, nil, adapter.NewError(adapter.ClassInvalidInput, req.SourceID, req.Operation, err)
	}
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		cancel()
		return nil, nil, adapter.NewError(adapter.ClassInvalidInput, req.SourceID, req.Operation, err)
	}
	httpReq.Header.Set(constants.AcceptHeaderName, constants.ContentTypeJSON)
	if body != nil {
		httpReq.Header.Set(constants.ContentTypeHeaderName, constants.ContentTypeJSON)
	}
	for key, val := range cfg.Headers {
		httpReq.Header.Set(key, val)
	}
	headers, err := params.Mapping("headers")
	if err != nil {
		cancel()
		return nil, nil, err
	}
	for _, entry := range headers.Entries() {
		if s, ok := entry.Value.AsString(); ok {
			httpReq.Header.Set(entry.Key, s)
		} else {
			httpReq.Header.Set(entry.Key, entry.Value.String())
		}
	}
	return httpReq, cancel, nil
}

func queryValues(v value.Value) []string {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindString:
		s, _ := v.AsString()
		return []string{s}
	case value.KindSequence:
		var out []string
		for _, item := range v.Items() {
			out = append(out, queryValues(item)...)
		}
		return out
	default:
		return []string{v.String()}
	}
}

// timeoutOf reads the optional per request timeout, given as a duration string or seconds.
func timeoutOf(params adapter.Params) (time.Duration, error) {
	v, ok := params.Get("timeout")
	if !ok {
		return 0, nil
	}
	if n, ok := v.AsNumber(); ok {
		return time.Duration(n * float64(time.Second)), nil
	}
	if s, ok := v.AsString(); ok {
		return time.ParseDuration(s)
	}
	return 0, fmt.Errorf("timeout must be a duration or a number of seconds")
}

// StatusClass maps an HTTP error status to an adapter error class.
func StatusClass(status int) adapter.ErrorClass {
	switch {
	case status == http.StatusNotFound:
		return adapter.ClassNotFound
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return adapter.ClassUnavailable
	case status == http.StatusRequestTimeout:
		return adapter.ClassTimeout
	default:
		return adapter.ClassInvalidInput
	}
}

func decodeBody(resp *http.Response, body []byte, resultPath string) value.Value {
	contentType := resp.Header.Get(constants.ContentTypeHeaderName)
	isJSON := strings.HasPrefix(contentType, constants.ContentTypeJSON) || strings.Contains(contentType, "+json")
	if !isJSON || !gjson.ValidBytes(body) {
		return value.MappingOf(
			value.Entry{Key: "content", Value: value.String(string(body))},
			value.Entry{Key: "status_code", Value: value.Int(int64(resp.StatusCode))},
		)
	}
	if resultPath != "" {
		result := gjson.GetBytes(body, resultPath)
		if !result.Exists() {
			return value.Null
		}
		return value.FromGJSON(result)
	}
	return value.FromGJSON(gjson.ParseBytes(body))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
