package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/pos-ledger/internal/operator"
	"github.com/tair/pos-ledger/internal/operator/repository"
	"github.com/tair/pos-ledger/internal/operator/usecase/command"
	posHTTP "github.com/tair/pos-ledger/internal/pos/delivery/http"
	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Disable()
	os.Exit(m.Run())
}

func setup(t *testing.T) (*mux.Router, *auth.Manager) {
	t.Helper()
	repo := repository.NewMemoryOperatorRepository()
	manager := auth.NewManager("operator-http-secret", "pos-ledger", time.Hour)

	_, err := command.NewRegisterOperatorHandler(repo).EnsureAdmin(context.Background(), "root", "bootstrap-pass")
	require.NoError(t, err)

	handler, err := operator.InitializeHTTPHandler(repo, manager)
	require.NoError(t, err)

	authn := posHTTP.NewAuthenticator(manager, true)
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authn.Middleware)
	handler.RegisterRoutes(router, api, authn, nil)
	return router, manager
}

func call(t *testing.T, router http.Handler, method, path, token string, body interface{}) (int, posHTTP.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp posHTTP.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func login(t *testing.T, router http.Handler, username, password string) string {
	t.Helper()
	code, resp := call(t, router, http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, code, resp.Error)
	data := resp.Data.(map[string]interface{})
	return data["token"].(string)
}

func TestLoginAndRegister(t *testing.T) {
	router, _ := setup(t)

	code, resp := call(t, router, http.MethodPost, "/auth/login", "", map[string]string{"username": "root", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)

	adminToken := login(t, router, "root", "bootstrap-pass")

	code, resp = call(t, router, http.MethodPost, "/api/operators", adminToken, map[string]string{
		"username":  "ana",
		"password":  "first-shift",
		"full_name": "Ana Silva",
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	created := resp.Data.(map[string]interface{})
	assert.Equal(t, "cashier", created["role"])
	assert.NotContains(t, created, "password_hash")

	code, _ = call(t, router, http.MethodPost, "/api/operators", adminToken, map[string]string{
		"username":  "ana",
		"password":  "first-shift",
		"full_name": "Ana Again",
	})
	assert.Equal(t, http.StatusConflict, code)

	cashierToken := login(t, router, "ana", "first-shift")
	code, _ = call(t, router, http.MethodPost, "/api/operators", cashierToken, map[string]string{
		"username":  "mallory",
		"password":  "sneaky-pass",
		"full_name": "Mallory",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = call(t, router, http.MethodPost, "/api/operators", "", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDeactivateOperator(t *testing.T) {
	router, _ := setup(t)
	adminToken := login(t, router, "root", "bootstrap-pass")

	code, resp := call(t, router, http.MethodPost, "/api/operators", adminToken, map[string]string{
		"username":  "ben",
		"password":  "night-shift",
		"full_name": "Ben Cole",
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	id := uint(resp.Data.(map[string]interface{})["id"].(float64))

	code, resp = call(t, router, http.MethodPatch, "/api/operators/"+jsonNumber(id)+"/active", adminToken, map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["is_active"])

	code, _ = call(t, router, http.MethodPost, "/auth/login", "", map[string]string{"username": "ben", "password": "night-shift"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, router, http.MethodPatch, "/api/operators/99/active", adminToken, map[string]bool{"active": true})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, router, http.MethodPatch, "/api/operators/"+jsonNumber(id)+"/active", adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
