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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/orkestra/internal/system/config"
)

type ProcessLauncherTestSuite struct {
	suite.Suite
	dir      string
	launcher *ProcessLauncher
	key      Key
}

func TestProcessLauncherSuite(t *testing.T) {
	suite.Run(t, new(ProcessLauncherTestSuite))
}

func (suite *ProcessLauncherTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.launcher = NewProcessLauncher(filepath.Join(suite.dir, "logs"))
	suite.key = Key{SourceID: "models", ModelID: "iris"}
}

func (suite *ProcessLauncherTestSuite) model(command string) config.ModelConfig {
	return config.ModelConfig{Source: config.ModelSourceConfig{
		Type:           StrategyLocalArtifact,
		Path:           suite.dir,
		StartupCommand: command,
		Port:           18091,
		StartupDelay:   100 * time.Millisecond,
	}}
}

func (suite *ProcessLauncherTestSuite) TestLaunchAndStop() {
	inst, err := suite.launcher.Launch(context.Background(), suite.key, suite.model("sleep 30"))
	suite.Require().NoError(err)
	suite.Equal("http://localhost:18091", inst.BaseURL())

	proc := inst.(*processInstance)
	suite.True(proc.alive(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	suite.NoError(inst.Stop(ctx))
	suite.Eventually(func() bool { return !proc.alive(context.Background()) }, 5*time.Second, 20*time.Millisecond)
}

func (suite *ProcessLauncherTestSuite) TestEarlyExitReportsLogTail() {
	_, err := suite.launcher.Launch(context.Background(), suite.key, suite.model("echo model file is corrupt; exit 3"))

	suite.Error(err)
	suite.Contains(err.Error(), "process exited during startup")
	suite.Contains(err.Error(), "model file is corrupt")
}

func (suite *ProcessLauncherTestSuite) TestLogFileIsWritten() {
	inst, err := suite.launcher.Launch(context.Background(), suite.key, suite.model("echo serving on $PORT; sleep 30"))
	suite.Require().NoError(err)
	defer func() {
		_ = inst.Stop(context.Background())
	}()

	data, err := os.ReadFile(inst.(*processInstance).logPath)
	suite.NoError(err)
	suite.Contains(string(data), "serving on 18091")
}

func (suite *ProcessLauncherTestSuite) TestCancelledLaunch() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	model := suite.model("sleep 30")
	model.Source.StartupDelay = 5 * time.Second

	_, err := suite.launcher.Launch(ctx, suite.key, model)

	suite.ErrorIs(err, context.DeadlineExceeded)
}

func (suite *ProcessLauncherTestSuite) TestInvalidConfiguration() {
	testCases := []struct {
		name   string
		mutate func(*config.ModelSourceConfig)
		errMsg string
	}{
		{"NoCommand", func(s *config.ModelSourceConfig) { s.StartupCommand = "" }, "startup_command is required"},
		{"NoPort", func(s *config.ModelSourceConfig) { s.Port = 0 }, "port is required"},
		{"MissingPath", func(s *config.ModelSourceConfig) { s.Path = filepath.Join(suite.dir, "absent") },
			"model path"},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			model := suite.model("sleep 1")
			tc.mutate(&model.Source)
			_, err := suite.launcher.Launch(context.Background(), suite.key, model)
			suite.Error(err)
			suite.Contains(err.Error(), tc.errMsg)
		})
	}
}

func (suite *ProcessLauncherTestSuite) TestPathMustBeDirectory() {
	file := filepath.Join(suite.dir, "model.bin")
	suite.Require().NoError(os.WriteFile(file, []byte("weights"), 0o600))
	model := suite.model("sleep 1")
	model.Source.Path = file

	_, err := suite.launcher.Launch(context.Background(), suite.key, model)

	suite.Error(err)
	suite.Contains(err.Error(), "is not a directory")
}
