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
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/log"
)

const (
	defaultStartupDelay = 5 * time.Second
	stopGracePeriod     = 10 * time.Second
	logTailSize         = 2048
)

// ProcessLauncher starts a model as a local process from its artifact directory.
type ProcessLauncher struct {
	logDirectory string
	logger       *log.Logger
}

// NewProcessLauncher creates a launcher writing process output under logDirectory, or the
// system temporary directory when empty.
func NewProcessLauncher(logDirectory string) *ProcessLauncher {
	return &ProcessLauncher{
		logDirectory: logDirectory,
		logger:       log.GetLogger().With(log.String(log.LoggerKeyComponentName, "ProcessLauncher")),
	}
}

// Strategy returns StrategyLocalArtifact.
func (l *ProcessLauncher) Strategy() string {
	return StrategyLocalArtifact
}

// Launch runs the startup command in the model directory and waits for the startup delay. The
// launch fails when the process exits before the delay elapses.
func (l *ProcessLauncher) Launch(ctx context.Context, key Key, model config.ModelConfig) (Instance, error) {
	src := model.Source
	if src.StartupCommand == "" {
		return nil, errors.New("startup_command is required")
	}
	if src.Port <= 0 {
		return nil, errors.New("port is required")
	}
	if src.Path != "" {
		info, err := os.Stat(src.Path)
		if err != nil {
			return nil, fmt.Errorf("model path: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("model path %s is not a directory", src.Path)
		}
	}

	logDir := l.logDirectory
	if logDir == "" {
		logDir = os.TempDir()
	}
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := os.CreateTemp(logDir, fmt.Sprintf("model_%s_%s_*.log", key.SourceID, key.ModelID))
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}

	// #nosec G204 -- the command comes from the deployment configuration.
	cmd := exec.Command("sh", "-c", src.StartupCommand)
	cmd.Dir = src.Path
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", src.Port))
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("starting process: %w", err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		_ = logFile.Close()
		close(done)
	}()

	inst := &processInstance{
		baseURL: fmt.Sprintf("http://%s:%d", hostOf(src), src.Port),
		pid:     cmd.Process.Pid,
		done:    done,
		logPath: logFile.Name(),
		logger:  l.logger,
	}
	l.logger.Debug("Started model process", log.String(log.LoggerKeyModelKey, key.String()),
		log.Int("pid", inst.pid), log.String("logFile", inst.logPath))

	delay := src.StartupDelay
	if delay <= 0 {
		delay = defaultStartupDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-done:
		return nil, fmt.Errorf("process exited during startup: %s", inst.logTail())
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), stopGracePeriod)
		defer cancel()
		_ = inst.Stop(stopCtx)
		return nil, ctx.Err()
	case <-timer.C:
	}

	if !inst.alive(ctx) {
		return nil, fmt.Errorf("process is not running after startup: %s", inst.logTail())
	}
	return inst, nil
}

type processInstance struct {
	baseURL string
	pid     int
	done    chan struct{}
	logPath string
	logger  *log.Logger
}

func (p *processInstance) BaseURL() string {
	return p.baseURL
}

func (p *processInstance) alive(ctx context.Context) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	proc, err := process.NewProcessWithContext(ctx, int32(p.pid)) // #nosec G115
	if err != nil {
		return false
	}
	running, err := proc.IsRunningWithContext(ctx)
	return err == nil && running
}

// Stop terminates the process tree, killing whatever is left after the grace period.
func (p *processInstance) Stop(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	proc, err := process.NewProcessWithContext(ctx, int32(p.pid)) // #nosec G115
	if err != nil {
		return nil
	}
	tree := append(descendants(ctx, proc), proc)
	for _, pr := range tree {
		if err := pr.TerminateWithContext(ctx); err != nil {
			p.logger.Debug("Failed to terminate process", log.Int("pid", int(pr.Pid)), log.Error(err))
		}
	}

	grace := time.NewTimer(stopGracePeriod)
	defer grace.Stop()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
	case <-grace.C:
	}

	var errs []error
	for _, pr := range tree {
		if running, _ := pr.IsRunning(); !running {
			continue
		}
		if err := pr.Kill(); err != nil {
			errs = append(errs, fmt.Errorf("killing process %d: %w", pr.Pid, err))
		}
	}
	return errors.Join(errs...)
}

func (p *processInstance) logTail() string {
	data, err := os.ReadFile(filepath.Clean(p.logPath))
	if err != nil {
		return "no output"
	}
	if len(data) > logTailSize {
		data = data[len(data)-logTailSize:]
	}
	out := strings.TrimSpace(string(data))
	if out == "" {
		return "no output"
	}
	return out
}

func descendants(ctx context.Context, proc *process.Process) []*process.Process {
	children, err := proc.ChildrenWithContext(ctx)
	if err != nil {
		return nil
	}
	var all []*process.Process
	for _, child := range children {
		all = append(all, descendants(ctx, child)...)
		all = append(all, child)
	}
	return all
}
