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
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/log"
)

const containerStopTimeoutSeconds = 10

// containerRuntime is the subset of the container engine used by the launchers.
type containerRuntime interface {
	PullImage(ctx context.Context, ref, registryAuth string) error
	CreateContainer(ctx context.Context, name string, cfg *container.Config, host *container.HostConfig) (string, error)
	StartContainer(ctx context.Context, id string) error
	InspectContainer(ctx context.Context, id string) (types.ContainerJSON, error)
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
}

// dockerEngine implements containerRuntime over the Docker Engine API.
type dockerEngine struct {
	cli *client.Client
}

// newDockerEngine connects to the Docker daemon at host, or the one configured in the
// environment when host is empty. The connection is established lazily on first use.
func newDockerEngine(host string) (*dockerEngine, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &dockerEngine{cli: cli}, nil
}

func (d *dockerEngine) PullImage(ctx context.Context, ref, registryAuth string) error {
	reader, err := d.cli.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: registryAuth})
	if err != nil {
		return err
	}
	defer func() {
		_ = reader.Close()
	}()
	// The pull completes when the progress stream ends.
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (d *dockerEngine) CreateContainer(ctx context.Context, name string, cfg *container.Config,
	host *container.HostConfig) (string, error) {
	resp, err := d.cli.ContainerCreate(ctx, cfg, host, nil, nil, name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (d *dockerEngine) StartContainer(ctx context.Context, id string) error {
	return d.cli.ContainerStart(ctx, id, container.StartOptions{})
}

func (d *dockerEngine) InspectContainer(ctx context.Context, id string) (types.ContainerJSON, error) {
	return d.cli.ContainerInspect(ctx, id)
}

func (d *dockerEngine) StopContainer(ctx context.Context, id string) error {
	timeout := containerStopTimeoutSeconds
	err := d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
	if client.IsErrNotFound(err) {
		return nil
	}
	return err
}

func (d *dockerEngine) RemoveContainer(ctx context.Context, id string) error {
	err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if client.IsErrNotFound(err) {
		return nil
	}
	return err
}

// ContainerLauncher runs a model from a container image.
type ContainerLauncher struct {
	runtime containerRuntime
	logger  *log.Logger
}

// NewContainerLauncher creates a launcher using the Docker daemon at dockerHost.
func NewContainerLauncher(dockerHost string) (*ContainerLauncher, error) {
	engine, err := newDockerEngine(dockerHost)
	if err != nil {
		return nil, err
	}
	return newContainerLauncher(engine), nil
}

func newContainerLauncher(runtime containerRuntime) *ContainerLauncher {
	return &ContainerLauncher{
		runtime: runtime,
		logger:  log.GetLogger().With(log.String(log.LoggerKeyComponentName, "ContainerLauncher")),
	}
}

// Strategy returns StrategyContainerImage.
func (l *ContainerLauncher) Strategy() string {
	return StrategyContainerImage
}

// Launch starts a container from the configured image.
func (l *ContainerLauncher) Launch(ctx context.Context, key Key, model config.ModelConfig) (Instance, error) {
	if model.Source.Image == "" {
		return nil, errors.New("image is required")
	}
	return l.run(ctx, key, model.Source, model.Source.Image, "", model.Source.Pull)
}

func (l *ContainerLauncher) run(ctx context.Context, key Key, src config.ModelSourceConfig, ref,
	registryAuth string, pull bool) (Instance, error) {
	if src.ContainerPort <= 0 {
		return nil, errors.New("container_port is required")
	}
	logger := l.logger.With(log.String(log.LoggerKeyModelKey, key.String()), log.String("image", ref))

	if pull {
		logger.Debug("Pulling image")
		if err := l.runtime.PullImage(ctx, ref, registryAuth); err != nil {
			return nil, fmt.Errorf("pulling image %s: %w", ref, err)
		}
	}

	port, err := nat.NewPort("tcp", strconv.Itoa(src.ContainerPort))
	if err != nil {
		return nil, fmt.Errorf("invalid container_port: %w", err)
	}
	hostPort := ""
	if src.HostPort > 0 {
		hostPort = strconv.Itoa(src.HostPort)
	}

	cfg := &container.Config{
		Image:        ref,
		Env:          environment(src.Environment),
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{port: []nat.PortBinding{{HostPort: hostPort}}},
		Binds:        binds(src.Volumes),
		AutoRemove:   src.AutoRemove,
	}

	name := fmt.Sprintf("model_%s_%s_%d", key.SourceID, key.ModelID, os.Getpid())
	id, err := l.runtime.CreateContainer(ctx, name, cfg, hostCfg)
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	inst := &containerInstance{id: id, runtime: l.runtime}

	if err := l.runtime.StartContainer(ctx, id); err != nil {
		inst.cleanup()
		return nil, fmt.Errorf("starting container: %w", err)
	}
	logger.Debug("Started container", log.String("containerId", id))

	delay := src.StartupDelay
	if delay <= 0 {
		delay = defaultStartupDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		inst.cleanup()
		return nil, ctx.Err()
	case <-timer.C:
	}

	info, err := l.runtime.InspectContainer(ctx, id)
	if err != nil {
		inst.cleanup()
		return nil, fmt.Errorf("inspecting container: %w", err)
	}
	if info.ContainerJSONBase == nil || info.State == nil || !info.State.Running {
		inst.cleanup()
		return nil, fmt.Errorf("container %s is not running after startup", name)
	}

	if hostPort == "" {
		hostPort = publishedPort(info, port)
		if hostPort == "" {
			inst.cleanup()
			return nil, fmt.Errorf("no host port published for %s", port)
		}
	}
	inst.baseURL = fmt.Sprintf("http://%s:%s", hostOf(src), hostPort)
	return inst, nil
}

func publishedPort(info types.ContainerJSON, port nat.Port) string {
	if info.NetworkSettings == nil {
		return ""
	}
	for _, b := range info.NetworkSettings.Ports[port] {
		if b.HostPort != "" {
			return b.HostPort
		}
	}
	return ""
}

func environment(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func binds(volumes map[string]string) []string {
	out := make([]string, 0, len(volumes))
	for hostPath, containerPath := range volumes {
		out = append(out, hostPath+":"+containerPath)
	}
	sort.Strings(out)
	return out
}

type containerInstance struct {
	id      string
	baseURL string
	runtime containerRuntime
}

func (c *containerInstance) BaseURL() string {
	return c.baseURL
}

// Stop stops and removes the container.
func (c *containerInstance) Stop(ctx context.Context) error {
	if err := c.runtime.StopContainer(ctx, c.id); err != nil {
		return fmt.Errorf("stopping container %s: %w", c.id, err)
	}
	if err := c.runtime.RemoveContainer(ctx, c.id); err != nil {
		return fmt.Errorf("removing container %s: %w", c.id, err)
	}
	return nil
}

func (c *containerInstance) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), stopGracePeriod)
	defer cancel()
	_ = c.runtime.RemoveContainer(ctx, c.id)
}
