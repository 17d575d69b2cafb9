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

// Package planner executes the steps of an endpoint against the registered adapters.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/expression"
	"github.com/asgardeo/orkestra/internal/orchestrator/fallback"
	"github.com/asgardeo/orkestra/internal/orchestrator/model"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/cache"
	"github.com/asgardeo/orkestra/internal/system/log"
	"github.com/asgardeo/orkestra/internal/system/metrics"
)

const (
	loggerComponentName = "ExecutionPlanner"
	defaultStepTimeout  = 30 * time.Second
)

// Step outcomes reported to the metrics collector.
const (
	outcomeSuccess = "success"
	outcomePartial = "partial"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// PlannerInterface defines the operations of the execution planner.
type PlannerInterface interface {
	Validate(endpoint *model.EndpointSpec) error
	Execute(ctx context.Context, endpoint *model.EndpointSpec, request *model.RequestContext) (
		*model.ExecutionContext, error)
}

// Planner runs endpoint steps sequentially in declaration order.
type Planner struct {
	registry       *adapter.Registry
	stepCache      *cache.Cache[value.Value]
	collector      *metrics.Collector
	defaultTimeout time.Duration
	logger         *log.Logger
}

// NewPlanner creates a planner. stepCache and collector may be nil.
func NewPlanner(registry *adapter.Registry, stepCache *cache.Cache[value.Value], collector *metrics.Collector,
	defaultTimeout time.Duration) *Planner {
	if defaultTimeout <= 0 {
		defaultTimeout = defaultStepTimeout
	}
	return &Planner{
		registry:       registry,
		stepCache:      stepCache,
		collector:      collector,
		defaultTimeout: defaultTimeout,
		logger:         log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName)),
	}
}

// attempt is one resolved entry of a step fallback chain.
type attempt struct {
	strategy   string
	sourceType adapter.SourceType
	sourceID   string
	operation  string
	params     *expression.Template
}

func (a attempt) StrategyName() string {
	if a.strategy != "" {
		return a.strategy
	}
	return string(a.sourceType) + "/" + a.sourceID
}

func attemptsOf(step *model.StepSpec) []attempt {
	base := attempt{
		sourceType: step.SourceType.Normalize(),
		sourceID:   step.SourceID,
		operation:  step.Operation,
		params:     step.Params,
	}
	if len(step.FallbackStrategies) == 0 {
		return []attempt{base}
	}
	attempts := make([]attempt, 0, len(step.FallbackStrategies))
	for _, fs := range step.FallbackStrategies {
		a := base
		a.strategy = fs.Strategy
		if fs.SourceType != "" {
			a.sourceType = fs.SourceType.Normalize()
		}
		if fs.SourceID != "" {
			a.sourceID = fs.SourceID
		}
		if fs.Operation != "" {
			a.operation = fs.Operation
		}
		if fs.Params != nil {
			a.params = fs.Params
		}
		attempts = append(attempts, a)
	}
	return attempts
}

// Execute runs the endpoint steps and returns the populated execution context. A failed
// required step stops execution with a *model.DataSourceError; other failures store a null
// result and are recorded on the context.
func (p *Planner) Execute(ctx context.Context, endpoint *model.EndpointSpec, request *model.RequestContext) (
	*model.ExecutionContext, error) {
	logger := p.logger.With(log.String(log.LoggerKeyEndpoint, endpoint.Key()),
		log.String(log.LoggerKeyExecutionID, executionID(request)))
	execCtx := model.NewExecutionContext(request)

	for _, step := range p.stepsFor(endpoint, logger) {
		if err := ctx.Err(); err != nil {
			return execCtx, err
		}
		stepLogger := logger.With(log.String(log.LoggerKeyStep, step.Name),
			log.String(log.LoggerKeySourceType, string(step.SourceType)))

		if step.Condition != nil && !step.Condition.Evaluate(execCtx) {
			stepLogger.Debug("Skipping step, condition is false", log.String("condition", step.Condition.String()))
			execCtx.MarkSkipped(step.Name)
			p.collector.RecordStep(string(step.SourceType), outcomeSkipped, 0)
			continue
		}

		start := time.Now()
		result, err := p.runStep(ctx, step, execCtx, stepLogger)
		elapsed := time.Since(start)

		if err != nil {
			class := adapter.ClassOf(err)
			if step.Required {
				stepLogger.Error("Required step failed", log.String("errorClass", string(class)), log.Error(err))
				p.collector.RecordStep(string(step.SourceType), outcomeFailed, elapsed)
				return execCtx, &model.DataSourceError{Step: step.Name, SourceType: step.SourceType,
					Class: class, Err: err}
			}
			stepLogger.Warn("Step failed, continuing with a null result",
				log.String("errorClass", string(class)), log.Error(err))
			execCtx.RecordFailure(&model.PartialDataError{Step: step.Name, SourceType: step.SourceType,
				Class: class, Err: err})
			p.collector.RecordStep(string(step.SourceType), outcomePartial, elapsed)
			result = value.Null
		} else {
			stepLogger.Debug("Step completed", log.Duration("elapsed", elapsed))
			p.collector.RecordStep(string(step.SourceType), outcomeSuccess, elapsed)
		}

		if err := execCtx.Set(step.Name, result); err != nil {
			return execCtx, err
		}
	}
	return execCtx, nil
}

// stepsFor applies the endpoint type filter.
func (p *Planner) stepsFor(endpoint *model.EndpointSpec, logger *log.Logger) []*model.StepSpec {
	if endpoint.EndpointType == "" || endpoint.EndpointType == model.EndpointTypeComposite {
		return endpoint.Steps
	}
	want := adapter.SourceType(endpoint.EndpointType).Normalize()
	var steps []*model.StepSpec
	for _, step := range endpoint.Steps {
		if step.SourceType.Normalize() == want {
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		logger.Warn("No steps match the endpoint type", log.String("endpointType", endpoint.EndpointType))
	}
	return steps
}

func (p *Planner) runStep(ctx context.Context, step *model.StepSpec, execCtx *model.ExecutionContext,
	logger *log.Logger) (value.Value, error) {
	attempts := attemptsOf(step)
	call := func(ctx context.Context, a attempt) (value.Value, error) {
		return p.call(ctx, step, a, execCtx, logger)
	}

	var (
		result value.Value
		err    error
	)
	if len(step.FallbackStrategies) == 0 {
		result, err = call(ctx, attempts[0])
	} else {
		result, err = fallback.Invoke(ctx, attempts, call, func(strategy string, err error) {
			logger.Debug("Fallback strategy failed", log.String("strategy", strategy), log.Error(err))
			p.collector.RecordFallbackAdvance(string(step.SourceType), strategy)
		})
	}
	if err != nil {
		return value.Null, err
	}

	if step.Transform != nil {
		result, err = applyTransform(step.Transform, result)
		if err != nil {
			return value.Null, adapter.NewError(adapter.ClassInvalidInput, step.SourceID, step.Operation, err)
		}
	}
	return result, nil
}

// call performs one adapter invocation, consulting the step cache when the step has a TTL.
func (p *Planner) call(ctx context.Context, step *model.StepSpec, a attempt, execCtx *model.ExecutionContext,
	logger *log.Logger) (value.Value, error) {
	adp, ok := p.registry.Get(a.sourceType)
	if !ok {
		return value.Null, adapter.Errorf(adapter.ClassFatal, a.sourceID, a.operation,
			"no adapter registered for source type %s", a.sourceType)
	}

	params := value.MappingOf()
	if a.params != nil {
		params = a.params.Render(execCtx).Value()
	}
	req := adapter.Request{SourceID: a.sourceID, Operation: a.operation, Strategy: a.strategy, Params: params}

	useCache := step.CacheTTL > 0 && p.stepCache != nil && p.stepCache.IsEnabled()
	var key string
	if useCache {
		key = fmt.Sprintf("%s|%s|%s|%s|%s", a.sourceType, a.sourceID, a.operation, a.strategy, params.String())
		if cached, ok := p.stepCache.Get(key); ok {
			logger.Debug("Step result served from cache")
			p.collector.RecordStepCache(true)
			return cached, nil
		}
		p.collector.RecordStepCache(false)
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}
	result, err := invokeWithTimeout(ctx, timeout, adp, req)
	if err != nil {
		return value.Null, err
	}
	if useCache {
		p.stepCache.SetWithTTL(key, result, step.CacheTTL)
	}
	return result, nil
}

// invokeWithTimeout bounds an adapter call by timeout. Adapters that ignore cancellation are
// abandoned when the deadline passes and the call is reported as a timeout.
func invokeWithTimeout(ctx context.Context, timeout time.Duration, adp adapter.Adapter,
	req adapter.Request) (value.Value, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result value.Value
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := adp.Execute(callCtx, req)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-callCtx.Done():
		select {
		case o := <-done:
			return o.result, o.err
		default:
		}
		err := callCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return value.Null, adapter.NewError(adapter.ClassTimeout, req.SourceID, req.Operation,
				fmt.Errorf("no response within %s: %w", timeout, err))
		}
		return value.Null, adapter.NewError(adapter.ClassFatal, req.SourceID, req.Operation, err)
	}
}

func executionID(request *model.RequestContext) string {
	if request == nil {
		return ""
	}
	return request.System().ExecutionID
}
