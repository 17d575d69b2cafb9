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

// Package provider manages the connection pools of the configured relational sources.
package provider

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/database/client"
	"github.com/asgardeo/orkestra/internal/system/log"
)

const (
	dataSourceTypePostgres = "postgres"
	dataSourceTypeSQLite   = "sqlite"
)

// dbConfig represents the local database configuration.
type dbConfig struct {
	dsn        string
	driverName string
}

// DBProviderInterface defines the interface for getting database clients.
type DBProviderInterface interface {
	GetDBClient(sourceID string) (client.DBClientInterface, error)
	GetDBType(sourceID string) (string, error)
	CheckHealth(ctx context.Context) map[string]error
	Close() error
}

// DBProvider lazily opens one pool per configured relational source.
type DBProvider struct {
	home    string
	sources map[string]config.DataSource
	clients map[string]client.DBClientInterface
	mutex   sync.RWMutex
	open    func(driverName, dsn string) (*sqlx.DB, error)
}

// NewDBProvider creates a provider for the given sources. Relative sqlite paths are
// resolved against home.
func NewDBProvider(home string, sources map[string]config.DataSource) *DBProvider {
	return &DBProvider{
		home:    home,
		sources: sources,
		clients: make(map[string]client.DBClientInterface),
		open:    sqlx.Open,
	}
}

// GetDBClient returns the client of a source, opening its pool on first use.
// Not required to close the returned client manually since the provider owns the pool.
func (d *DBProvider) GetDBClient(sourceID string) (client.DBClientInterface, error) {
	d.mutex.RLock()
	if dbClient, ok := d.clients[sourceID]; ok {
		d.mutex.RUnlock()
		return dbClient, nil
	}
	d.mutex.RUnlock()

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if dbClient, ok := d.clients[sourceID]; ok {
		return dbClient, nil
	}

	dataSource, ok := d.sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("unknown relational source: %s", sourceID)
	}
	dbClient, err := d.initializeClient(sourceID, dataSource)
	if err != nil {
		return nil, err
	}
	d.clients[sourceID] = dbClient
	return dbClient, nil
}

// GetDBType returns the driver type of a source.
func (d *DBProvider) GetDBType(sourceID string) (string, error) {
	dataSource, ok := d.sources[sourceID]
	if !ok {
		return "", fmt.Errorf("unknown relational source: %s", sourceID)
	}
	return dataSource.Type, nil
}

// CheckHealth pings every configured source.
func (d *DBProvider) CheckHealth(ctx context.Context) map[string]error {
	results := make(map[string]error, len(d.sources))
	for _, sourceID := range d.sourceIDs() {
		dbClient, err := d.GetDBClient(sourceID)
		if err != nil {
			results[sourceID] = err
			continue
		}
		results[sourceID] = dbClient.Ping(ctx)
	}
	return results
}

// Close closes every opened pool.
func (d *DBProvider) Close() error {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "DBProvider"))

	d.mutex.Lock()
	defer d.mutex.Unlock()

	var errs []error
	for sourceID, dbClient := range d.clients {
		if err := dbClient.Close(); err != nil {
			logger.Error("Failed to close database client", log.String("sourceId", sourceID), log.Error(err))
			errs = append(errs, err)
		}
	}
	d.clients = make(map[string]client.DBClientInterface)
	return errors.Join(errs...)
}

func (d *DBProvider) sourceIDs() []string {
	ids := make([]string, 0, len(d.sources))
	for id := range d.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// initializeClient opens and verifies the pool of a data source.
func (d *DBProvider) initializeClient(sourceID string, dataSource config.DataSource) (
	client.DBClientInterface, error) {
	dbConfig, err := d.getDBConfig(dataSource)
	if err != nil {
		return nil, fmt.Errorf("relational source %s: %w", sourceID, err)
	}

	db, err := d.open(dbConfig.driverName, dbConfig.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", sourceID, err)
	}

	if dataSource.MaxOpenConns > 0 {
		db.SetMaxOpenConns(dataSource.MaxOpenConns)
	}
	if dataSource.MaxIdleConns > 0 {
		db.SetMaxIdleConns(dataSource.MaxIdleConns)
	}
	if dataSource.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(dataSource.ConnMaxLifetime) * time.Second)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database %s: %w (close error: %w)", sourceID, err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database %s: %w", sourceID, err)
	}

	if dbConfig.driverName == dataSourceTypeSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			if closeErr := db.Close(); closeErr != nil {
				return nil, fmt.Errorf("failed to enable foreign key constraints for %s: %w (close error: %w)",
					sourceID, err, closeErr)
			}
			return nil, fmt.Errorf("failed to enable foreign key constraints for %s: %w", sourceID, err)
		}
	}

	log.GetLogger().With(log.String(log.LoggerKeyComponentName, "DBProvider")).
		Debug("Opened relational source", log.String("sourceId", sourceID), log.String("type", dataSource.Type))
	return client.NewDBClient(db, dbConfig.driverName), nil
}

// getDBConfig returns the driver and DSN of a data source.
func (d *DBProvider) getDBConfig(dataSource config.DataSource) (dbConfig, error) {
	switch dataSource.Type {
	case dataSourceTypePostgres:
		sslMode := dataSource.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return dbConfig{
			driverName: dataSourceTypePostgres,
			dsn: fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				dataSource.Hostname, dataSource.Port, dataSource.Username, dataSource.Password,
				dataSource.Name, sslMode),
		}, nil
	case dataSourceTypeSQLite:
		options := dataSource.Options
		if options != "" && options[0] != '?' {
			options = "?" + options
		}
		dbPath := dataSource.Path
		if !path.IsAbs(dbPath) {
			dbPath = path.Join(d.home, dbPath)
		}
		return dbConfig{driverName: dataSourceTypeSQLite, dsn: dbPath + options}, nil
	default:
		return dbConfig{}, fmt.Errorf("unsupported database type: %s", dataSource.Type)
	}
}
