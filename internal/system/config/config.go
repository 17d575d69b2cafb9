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

// Package config provides structures and functions for loading and managing server configurations.
package config

import (
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// ServerConfig holds the server configuration details.
type ServerConfig struct {
	Hostname string `yaml:"hostname"`
	Port     int    `yaml:"port"`
}

// OrchestratorConfig holds the settings of the orchestration engine.
type OrchestratorConfig struct {
	EndpointsDirectory  string        `yaml:"endpoints_directory"`
	DefaultStepTimeout  time.Duration `yaml:"default_step_timeout"`
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"`
	TrackerSize         int           `yaml:"tracker_size"`
	TrackerTTL          time.Duration `yaml:"tracker_ttl"`
}

// CacheConfig holds the step result cache configuration.
type CacheConfig struct {
	Disabled        bool          `yaml:"disabled"`
	Size            int           `yaml:"size"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
}

// DataSource holds the individual relational database connection details.
type DataSource struct {
	Type            string `yaml:"type"`
	Hostname        string `yaml:"hostname"`
	Port            int    `yaml:"port"`
	Name            string `yaml:"name"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"sslmode"`
	Path            string `yaml:"path"`
	Options         string `yaml:"options"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
}

// RateLimitConfig bounds the outbound request rate of an HTTP source.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// HTTPAPISource holds the configuration of an external HTTP API.
type HTTPAPISource struct {
	BaseURL    string            `yaml:"base_url"`
	Headers    map[string]string `yaml:"headers"`
	Timeout    time.Duration     `yaml:"timeout"`
	ResultPath string            `yaml:"result_path"`
	RateLimit  RateLimitConfig   `yaml:"rate_limit"`
}

// DatabaseFallback maps feature names to relational columns for feature store fallback.
type DatabaseFallback struct {
	SourceID     string            `yaml:"source_id"`
	Table        string            `yaml:"table"`
	EntityColumn string            `yaml:"entity_column"`
	Columns      map[string]string `yaml:"columns"`
}

// FeatureStoreSource holds the configuration of a Redis backed online feature store.
type FeatureStoreSource struct {
	URL              string            `yaml:"url"`
	Address          string            `yaml:"address"`
	Password         string            `yaml:"password"`
	DB               int               `yaml:"db"`
	Project          string            `yaml:"project"`
	DialTimeout      time.Duration     `yaml:"dial_timeout"`
	DatabaseFallback *DatabaseFallback `yaml:"database_fallback"`
}

// ModelSourceConfig selects and parameterizes the load strategy of a model.
type ModelSourceConfig struct {
	Type           string            `yaml:"type"`
	Path           string            `yaml:"path"`
	StartupCommand string            `yaml:"startup_command"`
	Host           string            `yaml:"host"`
	Port           int               `yaml:"port"`
	StartupDelay   time.Duration     `yaml:"startup_delay"`
	Image          string            `yaml:"image"`
	Pull           bool              `yaml:"pull"`
	HostPort       int               `yaml:"host_port"`
	ContainerPort  int               `yaml:"container_port"`
	Environment    map[string]string `yaml:"environment"`
	Volumes        map[string]string `yaml:"volumes"`
	AutoRemove     bool              `yaml:"auto_remove"`
	Repository     string            `yaml:"repository"`
	Tag            string            `yaml:"tag"`
	Region         string            `yaml:"region"`
}

// HeuristicBand is one threshold band of a rule based heuristic.
type HeuristicBand struct {
	Below  float64   `yaml:"below"`
	Result yaml.Node `yaml:"result"`
}

// HeuristicConfig declares a deterministic threshold heuristic over a single feature.
type HeuristicConfig struct {
	Feature string          `yaml:"feature"`
	Bands   []HeuristicBand `yaml:"bands"`
	Default yaml.Node       `yaml:"default"`
}

// ModelConfig holds the configuration of a single model.
type ModelConfig struct {
	Endpoint      string            `yaml:"endpoint"`
	BaseURL       string            `yaml:"base_url"`
	HealthPath    string            `yaml:"health_path"`
	FallbackChain []string          `yaml:"fallback_chain"`
	Source        ModelSourceConfig `yaml:"source"`
	Heuristic     *HeuristicConfig  `yaml:"heuristic"`
}

// ModelServiceSource holds the configuration of a model scoring service and its models.
type ModelServiceSource struct {
	BaseURL string                 `yaml:"base_url"`
	Timeout time.Duration          `yaml:"timeout"`
	Models  map[string]ModelConfig `yaml:"models"`
}

// DataSourcesConfig groups the configured backends by source type.
type DataSourcesConfig struct {
	Relational   map[string]DataSource         `yaml:"relational"`
	HTTPAPI      map[string]HTTPAPISource      `yaml:"http_api"`
	FeatureStore map[string]FeatureStoreSource `yaml:"feature_store"`
	Model        map[string]ModelServiceSource `yaml:"model"`
}

// ModelServingConfig holds the settings of the model lifecycle manager.
type ModelServingConfig struct {
	DockerHost     string        `yaml:"docker_host"`
	LoadTimeout    time.Duration `yaml:"load_timeout"`
	WaitTimeout    time.Duration `yaml:"wait_timeout"`
	HealthSchedule string        `yaml:"health_schedule"`
	LogDirectory   string        `yaml:"log_directory"`
}

// Config holds the complete configuration details of the server.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Cache        CacheConfig        `yaml:"cache"`
	DataSources  DataSourcesConfig  `yaml:"data_sources"`
	ModelServing ModelServingConfig `yaml:"model_serving"`
}

// LoadConfig loads the configurations from the specified YAML file. References of the form
// ${NAME} are replaced with the value of the corresponding environment variable.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
