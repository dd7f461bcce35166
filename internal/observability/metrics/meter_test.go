// Copyright 2026 The Parishauth Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that auth counters are safe to use when metrics are disabled.
// Scope: Unit Test
// Expected: No panic for a nil receiver, and duplicate registration is reported.
// Test Case ID: OBS-MET-01
func TestAuthMetrics_NilSafe(t *testing.T) {
	ctx := context.Background()

	var nilMetrics *AuthMetrics
	assert.NotPanics(t, func() {
		nilMetrics.LoginAttempt(ctx, "success")
		nilMetrics.Registration(ctx, "submitted")
		nilMetrics.AccessDecision(ctx, false, "tenant_mismatch")
	})

	reg := prometheus.NewRegistry()
	_, err := NewAuthMetrics(reg)
	require.NoError(t, err)
	_, err = NewAuthMetrics(reg)
	assert.Error(t, err)
}

// TestPurpose: Validates that auth counters reach the endpoint that serves HTTP metrics.
// Scope: Unit Test
// Expected: Recorded logins, registrations and decisions appear in the /metrics exposition.
// Test Case ID: OBS-MET-03
func TestAuthMetrics_ExposedWithHTTPMetrics(t *testing.T) {
	ctx := context.Background()
	m := NewHTTPMetrics()
	am, err := NewAuthMetrics(m.Registry())
	require.NoError(t, err)

	am.LoginAttempt(ctx, "invalid_credentials")
	am.LoginAttempt(ctx, "invalid_credentials")
	am.Registration(ctx, "approved")
	am.AccessDecision(ctx, false, "tenant_mismatch")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `parishauth_logins_total{result="invalid_credentials"} 2`)
	assert.Contains(t, string(body), `parishauth_registrations_total{outcome="approved"} 1`)
	assert.Contains(t, string(body), `parishauth_access_decisions_total{outcome="deny",reason="tenant_mismatch"} 1`)
}

// TestPurpose: Validates that HTTP instrumentation is exposed in Prometheus format.
// Scope: Unit Test
// Expected: The request counter is labelled with the chi route pattern, not the raw path.
// Test Case ID: OBS-MET-02
func TestHTTPMetrics_Instrument(t *testing.T) {
	m := NewHTTPMetrics()

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/parishes/{parishID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parishes/17", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/parishes/{parishID}",status="418"} 1`)
	assert.NotContains(t, string(body), "/parishes/17")
}
