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

package log

import (
	"net"
	"net/http"
	"time"

	"github.com/asgardeo/orkestra/internal/system/constants"
)

// AccessLogHandler logs one structured entry per HTTP request with status, size and latency.
func AccessLogHandler(logger *Logger, next http.Handler) http.Handler {
	accessLogger := logger.With(String(LoggerKeyComponentName, "AccessLog"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)

		host, _, _ := net.SplitHostPort(r.RemoteAddr)
		if host == "" {
			host = r.RemoteAddr
		}

		fields := []Field{
			String("remote", host),
			String("method", r.Method),
			String("uri", r.RequestURI),
			String("proto", r.Proto),
			Int("status", lrw.statusCode),
			Int("size", lrw.size),
			Int64("elapsedMs", time.Since(start).Milliseconds()),
		}
		if executionID := lrw.Header().Get(constants.ExecutionIDHeaderName); executionID != "" {
			fields = append(fields, String(LoggerKeyExecutionID, executionID))
		}
		accessLogger.Info("HTTP request served", fields...)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

// WriteHeader captures the status code and delegates to the original ResponseWriter.
func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Write captures the size of the response and delegates to the original ResponseWriter.
func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := lrw.ResponseWriter.Write(b)
	lrw.size += size
	return size, err
}
