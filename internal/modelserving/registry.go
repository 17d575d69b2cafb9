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
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/docker/docker/api/types/registry"

	"github.com/asgardeo/orkestra/internal/system/config"
)

const (
	defaultRegion = "us-east-1"
	defaultTag    = "latest"
)

type authorizationTokenAPI interface {
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput,
		optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

type tokenClientFactory func(ctx context.Context, region string) (authorizationTokenAPI, error)

func newECRClient(ctx context.Context, region string) (authorizationTokenAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return ecr.NewFromConfig(cfg), nil
}

// RegistryLauncher runs a model from an image stored in a private ECR registry. Credentials come
// from the default AWS credential chain.
type RegistryLauncher struct {
	containers *ContainerLauncher
	newClient  tokenClientFactory
}

// NewRegistryLauncher creates a launcher pulling through the given container launcher.
func NewRegistryLauncher(containers *ContainerLauncher) *RegistryLauncher {
	return &RegistryLauncher{containers: containers, newClient: newECRClient}
}

// Strategy returns StrategyRegistryImage.
func (l *RegistryLauncher) Strategy() string {
	return StrategyRegistryImage
}

// Launch authenticates against the registry, pulls the image and starts it as a container.
func (l *RegistryLauncher) Launch(ctx context.Context, key Key, model config.ModelConfig) (Instance, error) {
	src := model.Source
	if src.Repository == "" {
		return nil, errors.New("repository is required")
	}
	region := src.Region
	if region == "" {
		region = defaultRegion
	}
	tag := src.Tag
	if tag == "" {
		tag = defaultTag
	}

	api, err := l.newClient(ctx, region)
	if err != nil {
		return nil, err
	}
	out, err := api.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return nil, fmt.Errorf("getting registry authorization token: %w", err)
	}
	if len(out.AuthorizationData) == 0 {
		return nil, errors.New("registry returned no authorization data")
	}
	data := out.AuthorizationData[0]
	username, password, err := decodeAuthorizationToken(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return nil, err
	}
	server := strings.TrimPrefix(aws.ToString(data.ProxyEndpoint), "https://")

	auth, err := registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: server,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding registry credentials: %w", err)
	}

	ref := fmt.Sprintf("%s/%s:%s", server, src.Repository, tag)
	return l.containers.run(ctx, key, src, ref, auth, true)
}

func decodeAuthorizationToken(token string) (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("decoding registry authorization token: %w", err)
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", errors.New("malformed registry authorization token")
	}
	return username, password, nil
}
