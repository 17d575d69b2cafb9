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

package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/expression"
	"github.com/asgardeo/orkestra/internal/orchestrator/model"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/log"
)

// ModelScoringDomainPrefix marks the domains exposed through the model scoring routes.
const ModelScoringDomainPrefix = "model_scoring_"

// ModelScoringOperation is the operation invoked by the model scoring routes.
const ModelScoringOperation = "predict"

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidName reports whether s may be used as a domain, operation, model or entity name.
func IsValidName(s string) bool {
	return namePattern.MatchString(s)
}

// Domain groups the endpoints declared in one domain file.
type Domain struct {
	Name        string
	Description string
	Endpoints   []*model.EndpointSpec
}

// Endpoint returns the endpoint declared for operation.
func (d *Domain) Endpoint(operation string) (*model.EndpointSpec, bool) {
	for _, endpoint := range d.Endpoints {
		if endpoint.Operation == operation {
			return endpoint, true
		}
	}
	return nil, false
}

// Catalog holds the loaded domains. It is immutable once loaded.
type Catalog struct {
	domains map[string]*Domain
}

// NewCatalog builds a catalog from already compiled domains.
func NewCatalog(domains ...*Domain) (*Catalog, error) {
	c := &Catalog{domains: make(map[string]*Domain, len(domains))}
	for _, d := range domains {
		if _, exists := c.domains[d.Name]; exists {
			return nil, &model.ConfigError{Endpoint: d.Name, Err: errors.New("domain is declared more than once")}
		}
		c.domains[d.Name] = d
	}
	return c, nil
}

// Endpoint returns the endpoint declared for a domain and operation.
func (c *Catalog) Endpoint(domain, operation string) (*model.EndpointSpec, bool) {
	d, ok := c.domains[domain]
	if !ok {
		return nil, false
	}
	return d.Endpoint(operation)
}

// Domain returns a loaded domain.
func (c *Catalog) Domain(name string) (*Domain, bool) {
	d, ok := c.domains[name]
	return d, ok
}

// DomainNames returns the names of the loaded domains in sorted order.
func (c *Catalog) DomainNames() []string {
	names := make([]string, 0, len(c.domains))
	for name := range c.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoints returns every loaded endpoint ordered by domain name and then declaration order.
func (c *Catalog) Endpoints() []*model.EndpointSpec {
	var endpoints []*model.EndpointSpec
	for _, name := range c.DomainNames() {
		endpoints = append(endpoints, c.domains[name].Endpoints...)
	}
	return endpoints
}

type domainDefinition struct {
	Domain      string    `yaml:"domain"`
	Description string    `yaml:"description"`
	Endpoints   yaml.Node `yaml:"endpoints"`
}

type endpointDefinition struct {
	Description     string    `yaml:"description"`
	EndpointType    string    `yaml:"endpoint_type"`
	Steps           yaml.Node `yaml:"steps"`
	PrimarySource   string    `yaml:"primary_source"`
	ResponseMapping yaml.Node `yaml:"response_mapping"`
	InputSchema     yaml.Node `yaml:"input_schema"`
	OutputSchema    yaml.Node `yaml:"output_schema"`
}

type stepDefinition struct {
	Name               string               `yaml:"name"`
	SourceType         string               `yaml:"source_type"`
	SourceID           string               `yaml:"source_id"`
	Operation          string               `yaml:"operation"`
	Params             yaml.Node            `yaml:"params"`
	Condition          string               `yaml:"condition"`
	FallbackStrategies []fallbackDefinition `yaml:"fallback_strategies"`
	Required           bool                 `yaml:"required"`
	Timeout            string               `yaml:"timeout"`
	Transform          *transformDefinition `yaml:"transform"`
	CacheTTL           string               `yaml:"cache_ttl"`
}

type fallbackDefinition struct {
	Strategy   string    `yaml:"strategy"`
	SourceType string    `yaml:"source_type"`
	SourceID   string    `yaml:"source_id"`
	Operation  string    `yaml:"operation"`
	Params     yaml.Node `yaml:"params"`
}

// UnmarshalYAML accepts a bare strategy name as shorthand for {strategy: name}.
func (f *fallbackDefinition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.Strategy = node.Value
		return nil
	}
	type plain fallbackDefinition
	return node.Decode((*plain)(f))
}

type transformDefinition struct {
	Type       string   `yaml:"type"`
	Fields     []string `yaml:"fields"`
	Expression string   `yaml:"expression"`
}

// LoadCatalog compiles every domain file (*.yaml, *.yml) in directory. A missing directory
// yields an empty catalog. Any malformed definition fails the whole load.
func LoadCatalog(directory string) (*Catalog, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "EndpointLoader"))

	if directory == "" {
		logger.Info("Endpoints directory is not set. No endpoints will be loaded.")
		return NewCatalog()
	}
	directory = filepath.Clean(directory)

	files, err := os.ReadDir(directory)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("Endpoints directory does not exist. No endpoints will be loaded.",
				log.String("directory", directory))
			return NewCatalog()
		}
		return nil, fmt.Errorf("failed to read endpoints directory %s: %w", directory, err)
	}

	domains := make([]*Domain, 0, len(files))
	for _, file := range files {
		ext := filepath.Ext(file.Name())
		if file.IsDir() || (ext != ".yaml" && ext != ".yml") {
			logger.Debug("Skipping non YAML file or directory", log.String("fileName", file.Name()),
				log.Bool("isDir", file.IsDir()))
			continue
		}
		filePath := filepath.Clean(filepath.Join(directory, file.Name()))
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read endpoint file %s: %w", filePath, err)
		}

		d, err := ParseDomain(strings.TrimSuffix(file.Name(), ext), data)
		if err != nil {
			return nil, fmt.Errorf("failed to load endpoint file %s: %w", filePath, err)
		}
		logger.Debug("Loaded domain", log.String("domain", d.Name), log.Int("endpointCount", len(d.Endpoints)))
		domains = append(domains, d)
	}

	catalog, err := NewCatalog(domains...)
	if err != nil {
		return nil, err
	}
	logger.Info("Endpoint definitions loaded", log.Int("domainCount", len(domains)))
	return catalog, nil
}

// ParseDomain compiles one domain document. The domain name defaults to defaultName when
// the document does not declare one.
func ParseDomain(defaultName string, data []byte) (*Domain, error) {
	var def domainDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &model.ConfigError{Endpoint: defaultName, Err: err}
	}

	name := def.Domain
	if name == "" {
		name = defaultName
	}
	if !IsValidName(name) {
		return nil, &model.ConfigError{Endpoint: name, Field: "domain", Err: errors.New("invalid domain name")}
	}
	d := &Domain{Name: name, Description: def.Description}

	if isAbsent(&def.Endpoints) {
		return d, nil
	}
	if def.Endpoints.Kind != yaml.MappingNode {
		return nil, &model.ConfigError{Endpoint: name, Field: "endpoints", Err: errors.New("must be a mapping")}
	}

	seen := make(map[string]struct{}, len(def.Endpoints.Content)/2)
	for i := 0; i+1 < len(def.Endpoints.Content); i += 2 {
		operation := def.Endpoints.Content[i].Value
		key := name + "/" + operation
		if !IsValidName(operation) {
			return nil, &model.ConfigError{Endpoint: key, Err: errors.New("invalid operation name")}
		}
		if _, dup := seen[operation]; dup {
			return nil, &model.ConfigError{Endpoint: key, Err: errors.New("operation is declared more than once")}
		}
		seen[operation] = struct{}{}

		endpoint, err := compileEndpoint(name, operation, def.Endpoints.Content[i+1])
		if err != nil {
			return nil, err
		}
		d.Endpoints = append(d.Endpoints, endpoint)
	}
	return d, nil
}

func compileEndpoint(domain, operation string, node *yaml.Node) (*model.EndpointSpec, error) {
	key := domain + "/" + operation
	var def endpointDefinition
	if err := node.Decode(&def); err != nil {
		return nil, &model.ConfigError{Endpoint: key, Err: err}
	}

	endpoint := &model.EndpointSpec{
		Domain:        domain,
		Operation:     operation,
		Description:   def.Description,
		EndpointType:  def.EndpointType,
		PrimarySource: def.PrimarySource,
		InputSchema:   value.Null,
		OutputSchema:  value.Null,
	}

	steps, err := stepNodes(&def.Steps)
	if err != nil {
		return nil, &model.ConfigError{Endpoint: key, Field: "steps", Err: err}
	}
	for _, sn := range steps {
		step, err := compileStep(sn.name, sn.node)
		if err != nil {
			var cfgErr *model.ConfigError
			if errors.As(err, &cfgErr) {
				cfgErr.Endpoint = key
				return nil, cfgErr
			}
			return nil, &model.ConfigError{Endpoint: key, Step: sn.name, Err: err}
		}
		endpoint.Steps = append(endpoint.Steps, step)
	}

	if !isAbsent(&def.ResponseMapping) {
		endpoint.ResponseMapping, err = expression.CompileTemplate(&def.ResponseMapping)
		if err != nil {
			return nil, &model.ConfigError{Endpoint: key, Field: "response_mapping", Err: err}
		}
	}
	if !isAbsent(&def.InputSchema) {
		if endpoint.InputSchema, err = value.FromYAMLNode(&def.InputSchema); err != nil {
			return nil, &model.ConfigError{Endpoint: key, Field: "input_schema", Err: err}
		}
	}
	if !isAbsent(&def.OutputSchema) {
		if endpoint.OutputSchema, err = value.FromYAMLNode(&def.OutputSchema); err != nil {
			return nil, &model.ConfigError{Endpoint: key, Field: "output_schema", Err: err}
		}
	}
	return endpoint, nil
}

type stepNode struct {
	name string
	node *yaml.Node
}

// stepNodes accepts steps either as a mapping keyed by step name or as a sequence of
// entries carrying a name field. Both keep declaration order.
func stepNodes(node *yaml.Node) ([]stepNode, error) {
	switch {
	case isAbsent(node):
		return nil, nil
	case node.Kind == yaml.MappingNode:
		steps := make([]stepNode, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			steps = append(steps, stepNode{name: node.Content[i].Value, node: node.Content[i+1]})
		}
		return steps, nil
	case node.Kind == yaml.SequenceNode:
		steps := make([]stepNode, 0, len(node.Content))
		for _, item := range node.Content {
			var named struct {
				Name string `yaml:"name"`
			}
			if err := item.Decode(&named); err != nil {
				return nil, err
			}
			steps = append(steps, stepNode{name: named.Name, node: item})
		}
		return steps, nil
	default:
		return nil, errors.New("must be a mapping or a sequence")
	}
}

func compileStep(name string, node *yaml.Node) (*model.StepSpec, error) {
	var def stepDefinition
	if err := node.Decode(&def); err != nil {
		return nil, err
	}
	fieldError := func(field string, err error) error {
		return &model.ConfigError{Step: name, Field: field, Err: err}
	}

	step := &model.StepSpec{
		Name:       name,
		SourceType: adapter.SourceType(def.SourceType),
		SourceID:   def.SourceID,
		Operation:  def.Operation,
		Required:   def.Required,
	}

	var err error
	if !isAbsent(&def.Params) {
		if step.Params, err = expression.CompileTemplate(&def.Params); err != nil {
			return nil, fieldError("params", err)
		}
	}
	if def.Condition != "" {
		if step.Condition, err = expression.CompileCondition(def.Condition); err != nil {
			return nil, fieldError("condition", err)
		}
	}
	if step.Timeout, err = parseDuration(def.Timeout); err != nil {
		return nil, fieldError("timeout", err)
	}
	if step.CacheTTL, err = parseDuration(def.CacheTTL); err != nil {
		return nil, fieldError("cache_ttl", err)
	}
	if def.Transform != nil {
		step.Transform = &model.Transform{
			Type:       model.TransformType(def.Transform.Type),
			Fields:     def.Transform.Fields,
			Expression: def.Transform.Expression,
		}
	}

	for i, fs := range def.FallbackStrategies {
		strategy := model.FallbackStrategy{
			Strategy:   fs.Strategy,
			SourceType: adapter.SourceType(fs.SourceType),
			SourceID:   fs.SourceID,
			Operation:  fs.Operation,
		}
		if !isAbsent(&fs.Params) {
			if strategy.Params, err = expression.CompileTemplate(&fs.Params); err != nil {
				return nil, fieldError(fmt.Sprintf("fallback_strategies[%d].params", i), err)
			}
		}
		step.FallbackStrategies = append(step.FallbackStrategies, strategy)
	}
	return step, nil
}

func isAbsent(node *yaml.Node) bool {
	return node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}

// parseDuration accepts Go duration strings and plain numbers of seconds.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		seconds, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		d = time.Duration(seconds * float64(time.Second))
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return d, nil
}
