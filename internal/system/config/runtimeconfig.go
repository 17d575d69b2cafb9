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

package config

import "sync"

// OrkestraRuntime holds the runtime configuration for the Orkestra server.
type OrkestraRuntime struct {
	OrkestraHome string `yaml:"orkestra_home"`
	Config       Config `yaml:"config"`
}

var (
	runtimeConfig *OrkestraRuntime
	once          sync.Once
)

// InitializeOrkestraRuntime initializes the OrkestraRuntime configuration.
func InitializeOrkestraRuntime(orkestraHome string, config *Config) error {
	once.Do(func() {
		runtimeConfig = &OrkestraRuntime{
			OrkestraHome: orkestraHome,
			Config:       *config,
		}
	})

	return nil
}

// GetOrkestraRuntime returns the OrkestraRuntime configuration.
func GetOrkestraRuntime() *OrkestraRuntime {
	if runtimeConfig == nil {
		panic("OrkestraRuntime is not initialized")
	}
	return runtimeConfig
}

// ResetOrkestraRuntime resets the OrkestraRuntime.
// This should only be used in tests to reset the singleton state.
func ResetOrkestraRuntime() {
	runtimeConfig = nil
	once = sync.Once{}
}
