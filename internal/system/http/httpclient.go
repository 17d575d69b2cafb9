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

// Package http provides the HTTP client used for outbound calls to data sources.
package http

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// HTTPClientInterface defines the interface for HTTP client operations.
type HTTPClientInterface interface {
	// Do executes an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient implements HTTPClientInterface on top of net/http.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a new HTTPClient with the default timeout.
func NewHTTPClient() HTTPClientInterface {
	return NewHTTPClientWithTimeout(defaultTimeout)
}

// NewHTTPClientWithTimeout creates a new HTTPClient with a custom timeout. A zero timeout
// uses the default.
func NewHTTPClientWithTimeout(timeout time.Duration) HTTPClientInterface {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewHTTPClientWithConfig wraps an existing net/http client.
func NewHTTPClientWithConfig(client *http.Client) HTTPClientInterface {
	return &HTTPClient{
		client: client,
	}
}

// Do executes an HTTP request and returns an HTTP response.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}

// RateLimitedClient delays requests so that they do not exceed a configured rate.
type RateLimitedClient struct {
	next    HTTPClientInterface
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps a client with a token bucket limiter. A non positive rate
// returns the client unchanged.
func NewRateLimitedClient(next HTTPClientInterface, requestsPerSecond float64, burst int) HTTPClientInterface {
	if requestsPerSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Do waits for a token, bounded by the request context, and then executes the request.
func (c *RateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.next.Do(req)
}
