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

// Package fallback implements the ordered strategy chain shared by the planner and the
// adapters that degrade across backends.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asgardeo/orkestra/internal/adapter"
)

// AttemptError is the failure of one strategy in a chain.
type AttemptError struct {
	Strategy string
	Err      error
}

// ExhaustedError is returned when every strategy of a chain failed with a retryable error.
type ExhaustedError struct {
	Attempts []AttemptError
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "fallback chain has no strategies"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", attempt.Strategy, attempt.Err))
	}
	return "all fallback strategies failed: " + strings.Join(parts, "; ")
}

// Unwrap returns the errors of every attempt.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		errs = append(errs, attempt.Err)
	}
	return errs
}

// Class returns the class of the last attempt, which decides how the exhaustion is reported.
func (e *ExhaustedError) Class() adapter.ErrorClass {
	if len(e.Attempts) == 0 {
		return adapter.ClassUnavailable
	}
	return adapter.ClassOf(e.Attempts[len(e.Attempts)-1].Err)
}

// Observer is notified whenever a chain moves past a failed strategy.
type Observer func(strategy string, err error)

// Invoke calls strategies in order and returns the first success. A retryable failure
// advances the chain; any other failure is returned as is. When every strategy fails the
// result is an *ExhaustedError.
func Invoke[S, T any](ctx context.Context, strategies []S, call func(context.Context, S) (T, error),
	observers ...Observer) (T, error) {
	var zero T
	exhausted := &ExhaustedError{}

	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			exhausted.Attempts = append(exhausted.Attempts, AttemptError{Strategy: name(strategy), Err: err})
			return zero, exhausted
		}

		result, err := call(ctx, strategy)
		if err == nil {
			return result, nil
		}
		if !adapter.ClassOf(err).Retryable() {
			return zero, err
		}

		exhausted.Attempts = append(exhausted.Attempts, AttemptError{Strategy: name(strategy), Err: err})
		for _, observe := range observers {
			observe(name(strategy), err)
		}
	}

	return zero, exhausted
}

// IsExhausted reports whether err is the result of an exhausted chain.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}

// Named is implemented by strategy types that carry a display name.
type Named interface {
	StrategyName() string
}

func name(strategy any) string {
	switch s := strategy.(type) {
	case Named:
		return s.StrategyName()
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", strategy)
	}
}
