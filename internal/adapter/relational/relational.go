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

// Package relational provides the adapter for SQL data sources.
package relational

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/database/client"
	"github.com/asgardeo/orkestra/internal/system/database/model"
	"github.com/asgardeo/orkestra/internal/system/database/provider"
	dbutils "github.com/asgardeo/orkestra/internal/system/database/utils"
	"github.com/asgardeo/orkestra/internal/system/log"
)

const (
	// OperationQuery runs a statement and returns every row.
	OperationQuery = "query"
	// OperationQueryOne runs a statement and returns the first row.
	OperationQueryOne = "query_one"
	// OperationExecute runs a statement and returns the affected row count.
	OperationExecute = "execute"
	// OperationSelect builds a select from table, columns, where, order_by, limit and offset.
	OperationSelect = "select"
	// OperationGetOne is OperationSelect limited to a single row.
	OperationGetOne = "get_one"
)

const loggerComponentName = "RelationalAdapter"

// Adapter executes operations against relational sources.
type Adapter struct {
	provider provider.DBProviderInterface
}

// New creates a relational adapter backed by the given provider.
func New(dbProvider provider.DBProviderInterface) *Adapter {
	return &Adapter{provider: dbProvider}
}

// Execute runs a relational operation.
func (a *Adapter) Execute(ctx context.Context, req adapter.Request) (value.Value, error) {
	if _, err := a.provider.GetDBType(req.SourceID); err != nil {
		return value.Null, adapter.NewError(adapter.ClassInvalidInput, req.SourceID, req.Operation, err)
	}
	dbClient, err := a.provider.GetDBClient(req.SourceID)
	if err != nil {
		return value.Null, adapter.NewError(adapter.ClassUnavailable, req.SourceID, req.Operation, err)
	}

	params := adapter.ParamsOf(req)
	switch req.Operation {
	case OperationQuery, OperationQueryOne:
		query, args, err := rawQuery(req, params)
		if err != nil {
			return value.Null, err
		}
		rows, err := a.query(ctx, req, dbClient, query, args)
		if err != nil {
			return value.Null, err
		}
		if req.Operation == OperationQuery {
			return rows, nil
		}
		return firstRow(req, rows)
	case OperationExecute:
		query, args, err := rawQuery(req, params)
		if err != nil {
			return value.Null, err
		}
		affected, err := dbClient.Execute(ctx, query, args)
		if err != nil {
			return value.Null, classify(req, err)
		}
		return value.MappingOf(value.Entry{Key: "rows_affected", Value: value.Int(affected)}), nil
	case OperationSelect, OperationGetOne:
		spec, err := selectSpec(req, params)
		if err != nil {
			return value.Null, err
		}
		query, args, err := dbutils.BuildSelectQuery(req.SourceID+"."+req.Operation, spec)
		if err != nil {
			return value.Null, adapter.NewError(adapter.ClassInvalidInput, req.SourceID, req.Operation, err)
		}
		rows, err := a.query(ctx, req, dbClient, query, args)
		if err != nil {
			return value.Null, err
		}
		if req.Operation == OperationSelect {
			return rows, nil
		}
		return firstRow(req, rows)
	default:
		return value.Null, adapter.UnsupportedOperation(req)
	}
}

// CheckHealth pings every relational source.
func (a *Adapter) CheckHealth(ctx context.Context) map[string]error {
	return a.provider.CheckHealth(ctx)
}

// Close closes the connection pools.
func (a *Adapter) Close() error {
	return a.provider.Close()
}

// Lookup runs a structured single row select. It is used by adapters that fall back to a
// relational source.
func (a *Adapter) Lookup(ctx context.Context, sourceID, table string, columns []string,
	where []dbutils.Condition) (value.Value, error) {
	req := adapter.Request{SourceID: sourceID, Operation: OperationGetOne}
	if _, err := a.provider.GetDBType(sourceID); err != nil {
		return value.Null, adapter.NewError(adapter.ClassInvalidInput, sourceID, req.Operation, err)
	}
	dbClient, err := a.provider.GetDBClient(sourceID)
	if err != nil {
		return value.Null, adapter.NewError(adapter.ClassUnavailable, sourceID, req.Operation, err)
	}

	query, args, err := dbutils.BuildSelectQuery(sourceID+".lookup", dbutils.SelectSpec{
		Table: table, Columns: columns, Where: where, Limit: 1,
	})
	if err != nil {
		return value.Null, adapter.NewError(adapter.ClassInvalidInput, sourceID, req.Operation, err)
	}
	rows, err := a.query(ctx, req, dbClient, query, args)
	if err != nil {
		return value.Null, err
	}
	return firstRow(req, rows)
}

func (a *Adapter) query(ctx context.Context, req adapter.Request, dbClient client.DBClientInterface, query model.DBQuery,
	args map[string]interface{}) (value.Value, error) {
	result, err := dbClient.Query(ctx, query, args)
	if err != nil {
		return value.Null, classify(req, err)
	}

	rows := make([]value.Value, 0, len(result.Rows))
	for _, row := range result.Rows {
		builder := value.NewMappingBuilder(len(result.Columns))
		for i, column := range result.Columns {
			builder.Set(column, value.FromGo(row[i]))
		}
		rows = append(rows, builder.Build())
	}

	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName))
	if logger.IsDebugEnabled() {
		logger.Debug("Query returned rows", log.String("sourceId", req.SourceID),
			log.String("queryID", query.GetID()), log.Int("rows", len(rows)))
	}
	return value.Sequence(rows...), nil
}

func rawQuery(req adapter.Request, params adapter.Params) (model.DBQuery, map[string]interface{}, error) {
	statement, err := params.String("query")
	if err != nil {
		return model.DBQuery{}, nil, err
	}
	bindings, err := params.Mapping("params")
	if err != nil {
		return model.DBQuery{}, nil, err
	}

	args := make(map[string]interface{}, bindings.Len())
	for _, entry := range bindings.Entries() {
		args[entry.Key] = entry.Value.Interface()
	}
	return model.DBQuery{ID: req.SourceID + "." + req.Operation, Query: statement}, args, nil
}

func selectSpec(req adapter.Request, params adapter.Params) (dbutils.SelectSpec, error) {
	table, err := params.String("table")
	if err != nil {
		return dbutils.SelectSpec{}, err
	}
	columns, err := params.Strings("columns")
	if err != nil {
		return dbutils.SelectSpec{}, err
	}
	where, err := params.Mapping("where")
	if err != nil {
		return dbutils.SelectSpec{}, err
	}
	orderBy, err := params.Strings("order_by")
	if err != nil {
		return dbutils.SelectSpec{}, err
	}
	limit, err := params.Int("limit", 0)
	if err != nil {
		return dbutils.SelectSpec{}, err
	}
	offset, err := params.Int("offset", 0)
	if err != nil {
		return dbutils.SelectSpec{}, err
	}
	if req.Operation == OperationGetOne {
		limit = 1
	}

	conditions := make([]dbutils.Condition, 0, where.Len())
	for _, entry := range where.Entries() {
		conditions = append(conditions, dbutils.Condition{Column: entry.Key, Value: entry.Value.Interface()})
	}
	return dbutils.SelectSpec{
		Table:   table,
		Columns: columns,
		Where:   conditions,
		OrderBy: orderBy,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

func firstRow(req adapter.Request, rows value.Value) (value.Value, error) {
	row, ok := rows.Index(0)
	if !ok {
		return value.Null, adapter.Errorf(adapter.ClassNotFound, req.SourceID, req.Operation, "no rows returned")
	}
	return row, nil
}

// classify maps driver failures onto adapter error classes.
func classify(req adapter.Request, err error) error {
	class := adapter.ClassOf(err)
	switch {
	case errors.Is(err, client.ErrInvalidParameters):
		class = adapter.ClassInvalidInput
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		class = adapter.ClassUnavailable
	}
	return adapter.NewError(class, req.SourceID, req.Operation, err)
}
