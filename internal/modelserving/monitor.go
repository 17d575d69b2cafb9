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

package modelserving

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	httpservice "github.com/asgardeo/orkestra/internal/system/http"
	"github.com/asgardeo/orkestra/internal/system/log"
	"github.com/asgardeo/orkestra/internal/system/metrics"
)

const (
	defaultHealthSchedule = "@every 30s"
	healthProbeTimeout    = 5 * time.Second
)

// HealthMonitor periodically probes the health path of running models.
type HealthMonitor struct {
	manager   *Manager
	client    httpservice.HTTPClientInterface
	collector *metrics.Collector
	schedule  string
	cron      *cron.Cron
	logger    *log.Logger
}

// NewHealthMonitor creates a monitor running on the given cron schedule.
func NewHealthMonitor(manager *Manager, schedule string, client httpservice.HTTPClientInterface,
	collector *metrics.Collector) *HealthMonitor {
	if schedule == "" {
		schedule = defaultHealthSchedule
	}
	if client == nil {
		client = httpservice.NewHTTPClientWithTimeout(healthProbeTimeout)
	}
	return &HealthMonitor{
		manager:   manager,
		client:    client,
		collector: collector,
		schedule:  schedule,
		logger:    log.GetLogger().With(log.String(log.LoggerKeyComponentName, "ModelHealthMonitor")),
	}
}

// Start schedules the probes.
func (h *HealthMonitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(h.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), healthProbeTimeout)
		defer cancel()
		h.Probe(ctx)
	}); err != nil {
		return err
	}
	h.cron = c
	c.Start()
	return nil
}

// Stop stops the schedule and waits for a running probe to finish.
func (h *HealthMonitor) Stop() {
	if h.cron == nil {
		return
	}
	<-h.cron.Stop().Done()
}

// Probe checks every running model once and returns the outcome per model.
func (h *HealthMonitor) Probe(ctx context.Context) map[Key]bool {
	results := make(map[Key]bool)
	for _, target := range h.manager.probeTargets() {
		up := h.probe(ctx, target.url)
		if !up {
			h.logger.Warn("Model health check failed", log.String(log.LoggerKeyModelKey, target.key.String()),
				log.String("url", target.url))
		}
		h.collector.RecordModelHealth(target.key.SourceID, target.key.ModelID, up)
		results[target.key] = up
	}
	return results
}

func (h *HealthMonitor) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
