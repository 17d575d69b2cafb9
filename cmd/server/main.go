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

// Package main is the entry point for starting the Orkestra server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/constants"
	"github.com/asgardeo/orkestra/internal/system/log"
)

const defaultShutdownGracePeriod = 30 * time.Second

func main() {
	logger := log.GetLogger()

	orkestraHome := getOrkestraHome(logger)

	cfg := initOrkestraConfigurations(logger, orkestraHome)
	if cfg == nil {
		logger.Fatal("Failed to initialize configurations")
	}

	handler, shutdown := registerServices(logger)

	server, serverAddr := createHTTPServer(logger, cfg, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Orkestra server started (HTTP)...", log.String("address", serverAddr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve HTTP requests", log.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received, draining in-flight requests")
	}

	gracePeriod := cfg.Orchestrator.ShutdownGracePeriod
	if gracePeriod <= 0 {
		gracePeriod = defaultShutdownGracePeriod
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server did not shut down cleanly", log.Error(err))
	}
	if err := shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to release orchestrator resources", log.Error(err))
	}
	logger.Info("Orkestra server stopped")
	logger.Sync()
}

// getOrkestraHome retrieves and return the Orkestra home directory.
func getOrkestraHome(logger *log.Logger) string {
	// Parse project directory from command line arguments.
	projectHome := ""
	projectHomeFlag := flag.String("orkestraHome", "", "Path to Orkestra home directory")
	flag.Parse()

	if *projectHomeFlag != "" {
		logger.Info("Using orkestraHome from command line argument", log.String("orkestraHome", *projectHomeFlag))
		projectHome = *projectHomeFlag
	} else {
		// If no command line argument is provided, use the current working directory.
		dir, dirErr := os.Getwd()
		if dirErr != nil {
			logger.Fatal("Failed to get current working directory", log.Error(dirErr))
		}
		projectHome = dir
	}

	return projectHome
}

// initOrkestraConfigurations loads the environment file and the deployment configurations.
func initOrkestraConfigurations(logger *log.Logger, orkestraHome string) *config.Config {
	envFilePath := path.Join(orkestraHome, constants.DefaultEnvFile)
	if err := godotenv.Load(envFilePath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatal("Failed to load environment file", log.String("path", envFilePath), log.Error(err))
		}
		logger.Debug("No environment file found", log.String("path", envFilePath))
	}

	configFilePath := path.Join(orkestraHome, constants.DefaultConfigFile)
	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		logger.Fatal("Failed to load configurations", log.Error(err))
	}

	// Initialize runtime configurations.
	if err := config.InitializeOrkestraRuntime(orkestraHome, cfg); err != nil {
		logger.Fatal("Failed to initialize orkestra runtime", log.Error(err))
	}

	return cfg
}

// createHTTPServer creates and configures an HTTP server with common settings.
func createHTTPServer(logger *log.Logger, cfg *config.Config, handler http.Handler) (*http.Server, string) {
	// Wrap the router with AccessLogHandler.
	wrappedHandler := log.AccessLogHandler(logger, handler)

	// Build the server address using hostname and port from the configurations.
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Hostname, cfg.Server.Port)

	server := &http.Server{
		Addr:              serverAddr,
		Handler:           wrappedHandler,
		ReadHeaderTimeout: 10 * time.Second, // Mitigate Slowloris attacks
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return server, serverAddr
}
