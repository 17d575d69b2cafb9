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

// Package adapter defines the uniform contract implemented by every data source type
// and the error classes that drive fallback decisions.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// SourceType identifies a family of data sources.
type SourceType string

const (
	// SourceTypeRelational is a SQL database.
	SourceTypeRelational SourceType = "relational"
	// SourceTypeHTTPAPI is an external HTTP API.
	SourceTypeHTTPAPI SourceType = "http_api"
	// SourceTypeFeatureStore is an online feature store.
	SourceTypeFeatureStore SourceType = "feature_store"
	// SourceTypeModel is a model scoring service.
	SourceTypeModel SourceType = "model"
	// SourceTypeLiteral returns its parameters unchanged.
	SourceTypeLiteral SourceType = "literal"
	// SourceTypeDirect is the legacy name of SourceTypeLiteral.
	SourceTypeDirect SourceType = "direct"
)

// Normalize maps legacy aliases onto their canonical source type.
func (s SourceType) Normalize() SourceType {
	if s == SourceTypeDirect {
		return SourceTypeLiteral
	}
	return s
}

// Request is a single call to an adapter.
type Request struct {
	SourceID  string
	Operation string
	// Strategy pins one retrieval strategy. Empty lets the adapter apply its own chain.
	Strategy string
	Params   value.Value
}

// Adapter executes operations against one family of data sources.
type Adapter interface {
	Execute(ctx context.Context, req Request) (value.Value, error)
}

// HealthChecker is implemented by adapters that can report the reachability of their sources.
type HealthChecker interface {
	CheckHealth(ctx context.Context) map[string]error
}

// Closer is implemented by adapters that own connections.
type Closer interface {
	Close() error
}

// ErrorClass categorizes adapter failures.
type ErrorClass string

const (
	// ClassUnavailable means the backend could not be reached.
	ClassUnavailable ErrorClass = "Unavailable"
	// ClassTimeout means the call did not finish in time.
	ClassTimeout ErrorClass = "Timeout"
	// ClassNotFound means the backend answered but had no data for the request.
	ClassNotFound ErrorClass = "NotFound"
	// ClassInvalidInput means the request parameters were rejected.
	ClassInvalidInput ErrorClass = "InvalidInput"
	// ClassFatal is any other failure.
	ClassFatal ErrorClass = "Fatal"
)

// Retryable reports whether a fallback chain may advance past an error of this class.
func (c ErrorClass) Retryable() bool {
	return c == ClassUnavailable || c == ClassTimeout || c == ClassNotFound
}

// Error is a classified adapter failure.
type Error struct {
	Class     ErrorClass
	Source    string
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.Class, e.Source, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified adapter error.
func NewError(class ErrorClass, source, operation string, err error) *Error {
	return &Error{Class: class, Source: source, Operation: operation, Err: err}
}

// Errorf creates a classified adapter error with a formatted message.
func Errorf(class ErrorClass, source, operation, format string, args ...interface{}) *Error {
	return NewError(class, source, operation, fmt.Errorf(format, args...))
}

// ClassOf returns the class of err. Errors with a Class method report their own class. Deadline
// errors are Timeout, network errors are Unavailable and unclassified errors are Fatal.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var classified interface{ Class() ErrorClass }
	if errors.As(err, &classified) {
		return classified.Class()
	}
	var adapterErr *Error
	if errors.As(err, &adapterErr) {
		return adapterErr.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassUnavailable
	}
	return ClassFatal
}
