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

// Package tracker keeps a bounded, expiring record of recent endpoint executions.
package tracker

import (
	"time"

	"github.com/google/uuid"

	"github.com/asgardeo/orkestra/internal/system/cache"
	"github.com/asgardeo/orkestra/internal/system/config"
)

// Status is the state of an execution.
type Status string

const (
	// StatusInProgress marks a running execution.
	StatusInProgress Status = "in_progress"
	// StatusSuccess marks an execution that produced a response.
	StatusSuccess Status = "success"
	// StatusFailed marks an execution that ended with an error.
	StatusFailed Status = "failed"
)

// Record describes one execution.
type Record struct {
	ExecutionID  string     `json:"execution_id"`
	Domain       string     `json:"domain"`
	Operation    string     `json:"operation"`
	Status       Status     `json:"status"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	DurationMS   int64      `json:"duration_ms,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	PartialSteps []string   `json:"partial_steps,omitempty"`
}

// TrackerInterface defines the operations of the execution tracker.
type TrackerInterface interface {
	Start(domain, operation string) Record
	Complete(executionID string, partialSteps []string)
	Fail(executionID, errorCode string)
	Get(executionID string) (Record, bool)
}

// Tracker stores execution records in an LRU cache with a TTL.
type Tracker struct {
	records *cache.Cache[Record]
	newID   func() string
	now     func() time.Time
}

// NewTracker creates a tracker bounded by the tracker size and TTL of the configuration.
func NewTracker(cfg config.OrchestratorConfig) *Tracker {
	return &Tracker{
		records: cache.NewCache[Record]("executions", config.CacheConfig{
			Size: cfg.TrackerSize,
			TTL:  cfg.TrackerTTL,
		}),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Cache returns the backing cache so it can be registered for expiry cleanup.
func (t *Tracker) Cache() cache.CleanableInterface {
	return t.records
}

// Start registers a new in progress execution.
func (t *Tracker) Start(domain, operation string) Record {
	record := Record{
		ExecutionID: t.newID(),
		Domain:      domain,
		Operation:   operation,
		Status:      StatusInProgress,
		StartTime:   t.now().UTC(),
	}
	t.records.Set(record.ExecutionID, record)
	return record
}

// Complete marks an execution as successful.
func (t *Tracker) Complete(executionID string, partialSteps []string) {
	t.finish(executionID, func(r *Record) {
		r.Status = StatusSuccess
		r.PartialSteps = partialSteps
	})
}

// Fail marks an execution as failed with the error code returned to the client.
func (t *Tracker) Fail(executionID, errorCode string) {
	t.finish(executionID, func(r *Record) {
		r.Status = StatusFailed
		r.ErrorCode = errorCode
	})
}

func (t *Tracker) finish(executionID string, apply func(r *Record)) {
	end := t.now().UTC()
	t.records.Update(executionID, func(r Record) Record {
		apply(&r)
		r.EndTime = &end
		r.DurationMS = end.Sub(r.StartTime).Milliseconds()
		return r
	})
}

// Get returns the record of an execution if it has not expired.
func (t *Tracker) Get(executionID string) (Record, bool) {
	return t.records.Get(executionID)
}
