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

package cache

import (
	"github.com/robfig/cron/v3"

	"github.com/asgardeo/orkestra/internal/system/log"
)

// defaultCleanupSchedule runs the expired entry cleanup every five minutes.
const defaultCleanupSchedule = "@every 5m"

// CleanupScheduler periodically removes expired entries from a set of caches.
type CleanupScheduler struct {
	cron *cron.Cron
}

// NewCleanupScheduler registers the caches with a cron schedule. An empty schedule uses
// the default interval.
func NewCleanupScheduler(schedule string, caches ...CleanableInterface) (*CleanupScheduler, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "CacheCleanupScheduler"))
	if schedule == "" {
		schedule = defaultCleanupSchedule
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(schedule, func() {
		for _, c := range caches {
			if cleaned := c.CleanupExpired(); cleaned > 0 {
				logger.Debug("Cleaned expired cache entries", log.String("cache", c.GetName()),
					log.Int("count", cleaned))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return &CleanupScheduler{cron: scheduler}, nil
}

// Start begins running the cleanup in the background.
func (s *CleanupScheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running cleanup to finish.
func (s *CleanupScheduler) Stop() {
	<-s.cron.Stop().Done()
}
