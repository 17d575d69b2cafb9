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

// Package utils provides helpers that build SQL statements from structured input.
package utils

import (
	"fmt"
	"strings"

	"github.com/asgardeo/orkestra/internal/system/database/model"
)

// Condition is one equality filter of a structured select. A nil value matches NULL.
type Condition struct {
	Column string
	Value  interface{}
}

// SelectSpec describes a structured select over a single table.
type SelectSpec struct {
	Table   string
	Columns []string
	Where   []Condition
	// OrderBy entries are column names optionally followed by ASC or DESC.
	OrderBy []string
	Limit   int
	Offset  int
}

// BuildSelectQuery renders a select statement with named parameters. Every identifier is
// validated before it is written into the statement.
func BuildSelectQuery(queryID string, spec SelectSpec) (model.DBQuery, map[string]interface{}, error) {
	if err := validateKey(spec.Table); err != nil {
		return model.DBQuery{}, nil, fmt.Errorf("invalid table name: %w", err)
	}

	columns := "*"
	if len(spec.Columns) > 0 {
		for _, column := range spec.Columns {
			if err := validateKey(column); err != nil {
				return model.DBQuery{}, nil, fmt.Errorf("invalid column name: %w", err)
			}
		}
		columns = strings.Join(spec.Columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", columns, spec.Table)

	params := make(map[string]interface{}, len(spec.Where))
	for i, condition := range spec.Where {
		if err := validateKey(condition.Column); err != nil {
			return model.DBQuery{}, nil, fmt.Errorf("invalid filter key: %w", err)
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		if condition.Value == nil {
			fmt.Fprintf(&sb, "%s IS NULL", condition.Column)
			continue
		}
		param := fmt.Sprintf("w%d", i)
		fmt.Fprintf(&sb, "%s = :%s", condition.Column, param)
		params[param] = condition.Value
	}

	if len(spec.OrderBy) > 0 {
		orderBy := make([]string, 0, len(spec.OrderBy))
		for _, entry := range spec.OrderBy {
			clause, err := orderClause(entry)
			if err != nil {
				return model.DBQuery{}, nil, err
			}
			orderBy = append(orderBy, clause)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orderBy, ", "))
	}

	if spec.Limit < 0 || spec.Offset < 0 {
		return model.DBQuery{}, nil, fmt.Errorf("limit and offset must not be negative")
	}
	if spec.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", spec.Limit)
	}
	if spec.Offset > 0 {
		if spec.Limit == 0 {
			// sqlite rejects OFFSET without LIMIT.
			sb.WriteString(" LIMIT -1")
		}
		fmt.Fprintf(&sb, " OFFSET %d", spec.Offset)
	}

	query := sb.String()
	resultQuery := model.DBQuery{
		ID:            queryID,
		Query:         query,
		PostgresQuery: strings.Replace(query, " LIMIT -1", " LIMIT ALL", 1),
	}
	return resultQuery, params, nil
}

func orderClause(entry string) (string, error) {
	fields := strings.Fields(entry)
	if len(fields) == 0 || len(fields) > 2 {
		return "", fmt.Errorf("invalid order by clause '%s'", entry)
	}
	if err := validateKey(fields[0]); err != nil {
		return "", fmt.Errorf("invalid order by column: %w", err)
	}
	if len(fields) == 1 {
		return fields[0], nil
	}
	direction := strings.ToUpper(fields[1])
	if direction != "ASC" && direction != "DESC" {
		return "", fmt.Errorf("invalid order by direction '%s'", fields[1])
	}
	return fields[0] + " " + direction, nil
}

// validateKey ensures that the provided key contains only safe characters (alphanumeric, underscores
// and dots for schema qualified names).
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	for _, char := range key {
		if !(char >= 'a' && char <= 'z' || char >= 'A' && char <= 'Z' ||
			char >= '0' && char <= '9' || char == '_' || char == '.') {
			return fmt.Errorf("key '%s' contains invalid characters", key)
		}
	}
	return nil
}
