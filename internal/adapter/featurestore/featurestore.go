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

// Package featurestore provides the adapter for the Redis backed online feature store with
// a relational fallback.
package featurestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/fallback"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/config"
	dbutils "github.com/asgardeo/orkestra/internal/system/database/utils"
	"github.com/asgardeo/orkestra/internal/system/log"
)

const (
	// OperationGetFeatures reads features of a single entity.
	OperationGetFeatures = "get_features"
	// OperationGetOnlineFeatures reads features of several entities.
	OperationGetOnlineFeatures = "get_online_features"
)

const (
	// StrategyOnline reads from the Redis online store.
	StrategyOnline = "online"
	// StrategyDatabase reads from the relational fallback table.
	StrategyDatabase = "database"
)

const loggerComponentName = "FeatureStoreAdapter"

// RowLookup reads a single row from a relational source.
type RowLookup interface {
	Lookup(ctx context.Context, sourceID, table string, columns []string,
		where []dbutils.Condition) (value.Value, error)
}

type store struct {
	cfg    config.FeatureStoreSource
	client *redis.Client
}

// Adapter reads features from the online store and falls back to a relational table.
type Adapter struct {
	stores   map[string]*store
	rows     RowLookup
	observer fallback.Observer
}

// New creates the adapter and its Redis clients. Connections are opened lazily.
func New(sources map[string]config.FeatureStoreSource, rows RowLookup, observer fallback.Observer) (*Adapter, error) {
	a := &Adapter{stores: make(map[string]*store, len(sources)), rows: rows, observer: observer}
	for id, cfg := range sources {
		opts, err := redisOptions(cfg)
		if err != nil {
			return nil, fmt.Errorf("feature store %s: %w", id, err)
		}
		a.stores[id] = &store{cfg: cfg, client: redis.NewClient(opts)}
	}
	return a, nil
}

func redisOptions(cfg config.FeatureStoreSource) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		opts = parsed
	} else {
		if cfg.Address == "" {
			return nil, errors.New("either url or address must be configured")
		}
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	return opts, nil
}

// entityQuery is the normalized form of both operations.
type entityQuery struct {
	entities []string
	features []string
	single   bool
}

// Execute reads features using the pinned strategy, or the online then database chain when
// no strategy is given.
func (a *Adapter) Execute(ctx context.Context, req adapter.Request) (value.Value, error) {
	st, ok := a.stores[req.SourceID]
	if !ok {
		return value.Null, adapter.Errorf(adapter.ClassInvalidInput, req.SourceID, req.Operation,
			"unknown feature_store source: %s", req.SourceID)
	}
	query, err := parseQuery(req)
	if err != nil {
		return value.Null, err
	}

	call := func(ctx context.Context, strategy string) (value.Value, error) {
		switch strategy {
		case StrategyOnline:
			return a.online(ctx, req, st, query)
		case StrategyDatabase:
			return a.database(ctx, req, st, query)
		default:
			return value.Null, adapter.Errorf(adapter.ClassInvalidInput, req.SourceID, req.Operation,
				"unknown feature store strategy %q", strategy)
		}
	}

	if req.Strategy != "" {
		return call(ctx, req.Strategy)
	}

	chain := []string{StrategyOnline}
	if st.cfg.DatabaseFallback != nil {
		chain = append(chain, StrategyDatabase)
	}
	var observers []fallback.Observer
	if a.observer != nil {
		observers = append(observers, a.observer)
	}
	observers = append(observers, func(strategy string, err error) {
		log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName)).
			Debug("Feature store strategy failed", log.String("sourceId", req.SourceID),
				log.String("strategy", strategy), log.Error(err))
	})
	return fallback.Invoke(ctx, chain, call, observers...)
}

// CheckHealth pings every online store.
func (a *Adapter) CheckHealth(ctx context.Context) map[string]error {
	results := make(map[string]error, len(a.stores))
	for id, st := range a.stores {
		results[id] = st.client.Ping(ctx).Err()
	}
	return results
}

// Close closes every Redis client.
func (a *Adapter) Close() error {
	var errs []error
	for _, st := range a.stores {
		if err := st.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func parseQuery(req adapter.Request) (entityQuery, error) {
	params := adapter.ParamsOf(req)
	features, err := params.Strings("features")
	if err != nil {
		return entityQuery{}, err
	}
	if len(features) == 0 {
		return entityQuery{}, adapter.Errorf(adapter.ClassInvalidInput, req.SourceID, req.Operation,
			"at least one feature is required")
	}

	switch req.Operation {
	case OperationGetFeatures:
		entity, err := params.Scalar("entity_id")
		if err != nil {
			return entityQuery{}, err
		}
		return entityQuery{entities: []string{entity}, features: features, single: true}, nil
	case OperationGetOnlineFeatures:
		rows, ok := params.Get("entity_rows")
		if !ok || rows.Kind() != value.KindSequence {
			return entityQuery{}, adapter.Errorf(adapter.ClassInvalidInput, req.SourceID, req.Operation,
				"entity_rows must be a sequence")
		}
		entities := make([]string, 0, rows.Len())
		for _, row := range rows.Items() {
			entity, err := entityKey(row)
			if err != nil {
				return entityQuery{}, adapter.NewError(adapter.ClassInvalidInput, req.SourceID, req.Operation, err)
			}
			entities = append(entities, entity)
		}
		return entityQuery{entities: entities, features: features}, nil
	default:
		return entityQuery{}, adapter.UnsupportedOperation(req)
	}
}

// entityKey accepts a scalar entity id or a single entry mapping such as {"customer_id": "C001"}.
func entityKey(row value.Value) (string, error) {
	switch row.Kind() {
	case value.KindString:
		s, _ := row.AsString()
		return s, nil
	case value.KindNumber:
		return row.String(), nil
	case value.KindMapping:
		if row.Len() != 1 {
			return "", errors.New("entity row must have exactly one key")
		}
		return entityKey(row.Entries()[0].Value)
	default:
		return "", fmt.Errorf("unsupported entity row of kind %s", row.Kind())
	}
}

// splitFeature separates "view:feature" references. Plain names have no view.
func splitFeature(ref string) (string, string) {
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

func hashKey(project, view, entity string) string {
	parts := make([]string, 0, 3)
	if project != "" {
		parts = append(parts, project)
	}
	if view != "" {
		parts = append(parts, view)
	}
	parts = append(parts, entity)
	return strings.Join(parts, ":")
}

// online reads every feature of every entity with one pipelined round trip. Each view of an
// entity is a Redis hash whose fields are the feature names.
func (a *Adapter) online(ctx context.Context, req adapter.Request, st *store,
	query entityQuery) (value.Value, error) {
	type lookup struct {
		entity int
		refs   []string
		cmd    *redis.SliceCmd
	}

	byView := make(map[string][]string)
	for _, ref := range query.features {
		view, _ := splitFeature(ref)
		byView[view] = append(byView[view], ref)
	}
	views := make([]string, 0, len(byView))
	for view := range byView {
		views = append(views, view)
	}
	sort.Strings(views)

	pipe := st.client.Pipeline()
	lookups := make([]lookup, 0, len(query.entities)*len(views))
	for i, entity := range query.entities {
		for _, view := range views {
			refs := byView[view]
			fields := make([]string, len(refs))
			for j, ref := range refs {
				_, fields[j] = splitFeature(ref)
			}
			cmd := pipe.HMGet(ctx, hashKey(st.cfg.Project, view, entity), fields...)
			lookups = append(lookups, lookup{entity: i, refs: refs, cmd: cmd})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		class := adapter.ClassOf(err)
		if class != adapter.ClassTimeout {
			class = adapter.ClassUnavailable
		}
		return value.Null, adapter.NewError(class, req.SourceID, req.Operation, err)
	}

	values := make([]map[string]value.Value, len(query.entities))
	found := make([]bool, len(query.entities))
	for i := range values {
		values[i] = make(map[string]value.Value, len(query.features))
	}
	for _, l := range lookups {
		for j, raw := range l.cmd.Val() {
			if raw == nil {
				continue
			}
			values[l.entity][l.refs[j]] = decodeFeature(raw)
			found[l.entity] = true
		}
	}

	return assemble(req, query, values, found)
}

func decodeFeature(raw interface{}) value.Value {
	s, ok := raw.(string)
	if !ok {
		return value.FromGo(raw)
	}
	if gjson.Valid(s) {
		return value.FromGJSON(gjson.Parse(s))
	}
	return value.String(s)
}

// database reads the mapped columns of every entity from the fallback table.
func (a *Adapter) database(ctx context.Context, req adapter.Request, st *store,
	query entityQuery) (value.Value, error) {
	fb := st.cfg.DatabaseFallback
	if fb == nil || a.rows == nil {
		return value.Null, adapter.Errorf(adapter.ClassUnavailable, req.SourceID, req.Operation,
			"no database fallback configured")
	}

	columns := make([]string, 0, len(query.features))
	seen := make(map[string]bool)
	for _, ref := range query.features {
		column, ok := fb.Columns[ref]
		if !ok || seen[column] {
			continue
		}
		seen[column] = true
		columns = append(columns, column)
	}
	if len(columns) == 0 {
		return value.Null, adapter.Errorf(adapter.ClassNotFound, req.SourceID, req.Operation,
			"none of the requested features are mapped to columns")
	}

	values := make([]map[string]value.Value, len(query.entities))
	found := make([]bool, len(query.entities))
	for i, entity := range query.entities {
		values[i] = make(map[string]value.Value, len(query.features))
		row, err := a.rows.Lookup(ctx, fb.SourceID, fb.Table, columns,
			[]dbutils.Condition{{Column: fb.EntityColumn, Value: entity}})
		if err != nil {
			if adapter.ClassOf(err) == adapter.ClassNotFound {
				continue
			}
			return value.Null, err
		}
		found[i] = true
		for _, ref := range query.features {
			column, ok := fb.Columns[ref]
			if !ok {
				continue
			}
			if v, ok := row.Get(column); ok {
				values[i][ref] = v
			}
		}
	}

	return assemble(req, query, values, found)
}

// assemble builds the result shape shared by both strategies. A single entity yields a
// mapping of feature to value, several entities a mapping of feature to a sequence of values.
func assemble(req adapter.Request, query entityQuery, values []map[string]value.Value,
	found []bool) (value.Value, error) {
	anyFound := false
	for _, f := range found {
		anyFound = anyFound || f
	}
	if !anyFound {
		return value.Null, adapter.Errorf(adapter.ClassNotFound, req.SourceID, req.Operation,
			"no features found for %s", strings.Join(query.entities, ", "))
	}

	builder := value.NewMappingBuilder(len(query.features))
	for _, ref := range query.features {
		if query.single {
			builder.Set(ref, valueOrNull(values[0], ref))
			continue
		}
		items := make([]value.Value, len(query.entities))
		for i := range query.entities {
			items[i] = valueOrNull(values[i], ref)
		}
		builder.Set(ref, value.Sequence(items...))
	}
	return builder.Build(), nil
}

func valueOrNull(values map[string]value.Value, ref string) value.Value {
	if v, ok := values[ref]; ok {
		return v
	}
	return value.Null
}
