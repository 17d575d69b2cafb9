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

package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/config"
)

type HTTPAPITestSuite struct {
	suite.Suite
	server   *httptest.Server
	adapter  *Adapter
	received *http.Request
	body     []byte
}

func TestHTTPAPISuite(t *testing.T) {
	suite.Run(t, new(HTTPAPITestSuite))
}

func (suite *HTTPAPITestSuite) SetupTest() {
	mux := http.NewServeMux()
	mux.HandleFunc("/credit/C001", func(w http.ResponseWriter, r *http.Request) {
		suite.received = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"score": 720, "bureau": "experian"}, "meta": {"z": 1, "a": 2}}`))
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		suite.received = r
		suite.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(suite.body)
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/rejected", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	suite.server = httptest.NewServer(mux)

	suite.adapter = New(map[string]config.HTTPAPISource{
		"credit_bureau": {
			BaseURL: suite.server.URL,
			Headers: map[string]string{"X-Api-Key": "secret"},
			Timeout: 5 * time.Second,
		},
		"scores": {
			BaseURL:    suite.server.URL + "/",
			ResultPath: "data.score",
		},
	})
}

func (suite *HTTPAPITestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *HTTPAPITestSuite) execute(sourceID, operation, params string) (value.Value, error) {
	v, err := value.FromJSON([]byte(params))
	suite.Require().NoError(err)
	return suite.adapter.Execute(context.Background(), adapter.Request{
		SourceID: sourceID, Operation: operation, Params: v,
	})
}

func (suite *HTTPAPITestSuite) TestGetParsesJSONInOrder() {
	result, err := suite.execute("credit_bureau", OperationGet,
		`{"path": "/credit/C001", "query_params": {"fields": ["score", "bureau"], "verbose": true}}`)

	suite.Require().NoError(err)
	suite.Equal(`{"data":{"score":720,"bureau":"experian"},"meta":{"z":1,"a":2}}`, result.String())
	suite.Equal("secret", suite.received.Header.Get("X-Api-Key"))
	suite.Equal([]string{"score", "bureau"}, suite.received.URL.Query()["fields"])
	suite.Equal("true", suite.received.URL.Query().Get("verbose"))
}

func (suite *HTTPAPITestSuite) TestResultPath() {
	result, err := suite.execute("scores", OperationGet, `{"path": "credit/C001"}`)
	suite.NoError(err)
	suite.True(result.Equal(value.Int(720)))

	result, err = suite.execute("scores", OperationGet, `{"path": "credit/C001", "result_path": "meta.missing"}`)
	suite.NoError(err)
	suite.True(result.IsNull())
}

func (suite *HTTPAPITestSuite) TestPostSendsJSONBody() {
	result, err := suite.execute("credit_bureau", OperationRequest,
		`{"method": "post", "path": "echo", "body": {"customer": "C001", "amount": 250},
		  "headers": {"X-Trace": "t-1"}}`)

	suite.Require().NoError(err)
	suite.Equal(http.MethodPost, suite.received.Method)
	suite.Equal("application/json", suite.received.Header.Get("Content-Type"))
	suite.Equal("t-1", suite.received.Header.Get("X-Trace"))

	var sent map[string]interface{}
	suite.Require().NoError(json.Unmarshal(suite.body, &sent))
	suite.Equal("C001", sent["customer"])
	suite.Equal(`{"customer":"C001","amount":250}`, result.String())
}

func (suite *HTTPAPITestSuite) TestNonJSONResponse() {
	result, err := suite.execute("credit_bureau", OperationGet, `{"path": "text"}`)

	suite.NoError(err)
	suite.Equal(`{"content":"queued","status_code":202}`, result.String())
}

func (suite *HTTPAPITestSuite) TestStatusClasses() {
	_, err := suite.execute("credit_bureau", OperationGet, `{"path": "unknown"}`)
	suite.Equal(adapter.ClassNotFound, adapter.ClassOf(err))

	_, err = suite.execute("credit_bureau", OperationGet, `{"path": "broken"}`)
	suite.Equal(adapter.ClassUnavailable, adapter.ClassOf(err))

	_, err = suite.execute("credit_bureau", OperationPut, `{"path": "rejected", "body": {}}`)
	suite.Equal(adapter.ClassInvalidInput, adapter.ClassOf(err))
}

func (suite *HTTPAPITestSuite) TestTimeout() {
	_, err := suite.execute("credit_bureau", OperationGet, `{"path": "slow", "timeout": "50ms"}`)
	suite.Equal(adapter.ClassTimeout, adapter.ClassOf(err))
}

func (suite *HTTPAPITestSuite) TestTransportFailureIsUnavailable() {
	a := New(map[string]config.HTTPAPISource{"down": {BaseURL: "http://127.0.0.1:1"}})
	_, err := a.Execute(context.Background(), adapter.Request{SourceID: "down", Operation: OperationGet,
		Params: value.MappingOf()})
	suite.Equal(adapter.ClassUnavailable, adapter.ClassOf(err))
}

func (suite *HTTPAPITestSuite) TestInvalidRequests() {
	_, err := suite.execute("missing", OperationGet, `{}`)
	suite.Equal(adapter.ClassInvalidInput, adapter.ClassOf(err))

	_, err = suite.execute("credit_bureau", "patch", `{}`)
	suite.Equal(adapter.ClassInvalidInput, adapter.ClassOf(err))

	_, err = suite.execute("credit_bureau", OperationGet, `{"timeout": "soon"}`)
	suite.Equal(adapter.ClassInvalidInput, adapter.ClassOf(err))
}
