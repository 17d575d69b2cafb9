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

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const testResourceDir = "../../../tests/resources"

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) getFilePath(filename string) string {
	return filepath.Join(testResourceDir, filename)
}

func (suite *ConfigTestSuite) TestLoadConfigValid() {
	config, err := LoadConfig(suite.getFilePath("deployment.yaml"))

	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), config)

	assert.Equal(suite.T(), "localhost", config.Server.Hostname)
	assert.Equal(suite.T(), 8080, config.Server.Port)

	assert.Equal(suite.T(), "repository/conf/domains", config.Orchestrator.EndpointsDirectory)
	assert.Equal(suite.T(), 5*time.Second, config.Orchestrator.DefaultStepTimeout)
	assert.Equal(suite.T(), 15*time.Second, config.Orchestrator.ShutdownGracePeriod)
	assert.Equal(suite.T(), 500, config.Orchestrator.TrackerSize)

	assert.Equal(suite.T(), 200, config.Cache.Size)
	assert.Equal(suite.T(), 30*time.Second, config.Cache.TTL)

	assert.Equal(suite.T(), "sqlite", config.DataSources.Relational["default"].Type)
	assert.Equal(suite.T(), 10, config.DataSources.Relational["default"].MaxOpenConns)
	assert.Equal(suite.T(), "postgres", config.DataSources.Relational["warehouse"].Type)
	assert.Equal(suite.T(), 5432, config.DataSources.Relational["warehouse"].Port)

	creditBureau := config.DataSources.HTTPAPI["credit_bureau"]
	assert.Equal(suite.T(), "http://localhost:9001", creditBureau.BaseURL)
	assert.Equal(suite.T(), 3*time.Second, creditBureau.Timeout)
	assert.Equal(suite.T(), "test-key", creditBureau.Headers["X-Api-Key"])
	assert.Equal(suite.T(), float64(20), creditBureau.RateLimit.RequestsPerSecond)

	featureStore := config.DataSources.FeatureStore["default"]
	assert.Equal(suite.T(), "customer_360", featureStore.Project)
	assert.NotNil(suite.T(), featureStore.DatabaseFallback)
	assert.Equal(suite.T(), "ltv", featureStore.DatabaseFallback.Columns["lifetime_value"])

	iris := config.DataSources.Model["default"].Models["iris"]
	assert.Equal(suite.T(), "local_artifact", iris.Source.Type)
	assert.Equal(suite.T(), 2*time.Second, iris.Source.StartupDelay)
	assert.Equal(suite.T(), []string{"remote", "local", "rules"}, iris.FallbackChain)
	assert.NotNil(suite.T(), iris.Heuristic)
	assert.Len(suite.T(), iris.Heuristic.Bands, 1)
	assert.Equal(suite.T(), 2.5, iris.Heuristic.Bands[0].Below)

	assert.Equal(suite.T(), 5*time.Minute, config.ModelServing.LoadTimeout)
	assert.Equal(suite.T(), "@every 30s", config.ModelServing.HealthSchedule)
}

func (suite *ConfigTestSuite) TestLoadConfigFileNotFound() {
	config, err := LoadConfig(suite.getFilePath("non_existent_config.yaml"))

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), config)
	assert.Contains(suite.T(), err.Error(), "no such file or directory")
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidYAML() {
	config, err := LoadConfig(suite.getFilePath("invalid_deployment.yaml"))

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), config)
}

func (suite *ConfigTestSuite) TestLoadConfigExpandsEnvironment() {
	suite.T().Setenv("ORKESTRA_TEST_WAREHOUSE_PASSWORD", "s3cret")

	path := filepath.Join(suite.T().TempDir(), "deployment.yaml")
	content := "server:\n  port: 9090\ndata_sources:\n  relational:\n    warehouse:\n" +
		"      type: postgres\n      password: \"${ORKESTRA_TEST_WAREHOUSE_PASSWORD}\"\n"
	assert.NoError(suite.T(), os.WriteFile(path, []byte(content), 0600))

	config, err := LoadConfig(path)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 9090, config.Server.Port)
	assert.Equal(suite.T(), "s3cret", config.DataSources.Relational["warehouse"].Password)
}
