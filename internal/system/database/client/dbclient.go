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

// Package client provides the database client used to run named parameter queries.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/asgardeo/orkestra/internal/system/database/model"
	"github.com/asgardeo/orkestra/internal/system/log"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrInvalidParameters is returned when named parameters cannot be bound to a statement.
var ErrInvalidParameters = errors.New("invalid query parameters")

// DBClientInterface defines the interface for database operations.
type DBClientInterface interface {
	// Query runs a statement that returns rows. Parameters are bound by name using the :name syntax.
	Query(ctx context.Context, query model.DBQuery, params map[string]interface{}) (*model.ResultSet, error)
	// Execute runs a statement without returning rows and returns the number of affected rows.
	Execute(ctx context.Context, query model.DBQuery, params map[string]interface{}) (int64, error)
	// Ping verifies the connection.
	Ping(ctx context.Context) error
	// Close closes the connection pool.
	Close() error
}

// DBClient is the implementation of DBClientInterface.
type DBClient struct {
	db     *sqlx.DB
	dbType string
}

// NewDBClient creates a new instance of DBClient with the provided database connection.
func NewDBClient(db *sqlx.DB, dbType string) DBClientInterface {
	return &DBClient{
		db:     db,
		dbType: dbType,
	}
}

// Query runs a statement that returns rows.
func (client *DBClient) Query(ctx context.Context, query model.DBQuery,
	params map[string]interface{}) (*model.ResultSet, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "DBClient"))
	logger.Debug("Executing query", log.String("queryID", query.GetID()))

	sqlQuery, args, err := client.bind(query, params)
	if err != nil {
		return nil, err
	}

	rows, err := client.db.QueryxContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logger.Error("Error closing rows", log.Error(closeErr))
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	for i, col := range columns {
		// Normalize column names to lowercase for consistency.
		columns[i] = strings.ToLower(col)
	}

	result := &model.ResultSet{Columns: columns, Rows: [][]interface{}{}}
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Execute runs a statement without returning rows.
func (client *DBClient) Execute(ctx context.Context, query model.DBQuery,
	params map[string]interface{}) (int64, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "DBClient"))
	logger.Debug("Executing statement", log.String("queryID", query.GetID()))

	sqlQuery, args, err := client.bind(query, params)
	if err != nil {
		return 0, err
	}

	res, err := client.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ping verifies the connection.
func (client *DBClient) Ping(ctx context.Context) error {
	return client.db.PingContext(ctx)
}

// Close closes the connection pool.
func (client *DBClient) Close() error {
	return client.db.Close()
}

// bind expands :name parameters and rebinds the placeholders for the driver.
func (client *DBClient) bind(query model.DBQuery, params map[string]interface{}) (string, []interface{}, error) {
	sqlQuery := query.GetQuery(client.dbType)
	if params == nil {
		params = map[string]interface{}{}
	}

	named, args, err := sqlx.Named(sqlQuery, params)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return client.db.Rebind(named), args, nil
}
