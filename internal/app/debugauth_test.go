package app_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retail-reco/core/internal/app"
	"github.com/retail-reco/core/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestDebugGuard_NoOpWhenAdminDisabled(t *testing.T) {
	guard := app.DebugGuard(config.Config{})
	h := guard(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug", nil))
	require.Equal(t, http.StatusNotFound, rec.Result().StatusCode)
}

func TestDebugGuard_RejectsWrongCredentials(t *testing.T) {
	cfg := config.Config{AdminUsername: "ops", AdminPassword: "secret", AdminSessionSecret: "s"}
	guard := app.DebugGuard(cfg)
	h := guard(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/debug", nil)
	req.SetBasicAuth("ops", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Result().StatusCode)
}

func TestDebugGuard_AcceptsCorrectCredentials(t *testing.T) {
	cfg := config.Config{AdminUsername: "ops", AdminPassword: "secret", AdminSessionSecret: "s"}
	guard := app.DebugGuard(cfg)
	h := guard(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/debug", nil)
	req.SetBasicAuth("ops", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Result().StatusCode)
}
