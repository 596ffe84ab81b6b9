package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
	"github.com/prisma-glow/edge-gateway/internal/trace"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func checkHeader(t *testing.T, rec *httptest.ResponseRecorder, name, want string) {
	t.Helper()
	if got := rec.Header().Get(name); got != want {
		t.Errorf("header %s = %q, want %q", name, got, want)
	}
}

const validTenant = "11111111-2222-3333-4444-555555555555"

// =============================================================================
// StamperMiddleware Tests
// =============================================================================

func TestStamperMiddleware_GeneratesRequestID(t *testing.T) {
	var captured *httpx.RequestContext
	handler := StamperMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = httpx.GetRequestContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured == nil {
		t.Fatal("request context not set")
	}
	if captured.RequestID == "" {
		t.Error("request id not generated")
	}
	checkHeader(t, rec, httpx.HeaderRequestID, captured.RequestID)
	if !trace.IsValidTraceparent(captured.Traceparent) {
		t.Errorf("generated traceparent %q is not well-formed", captured.Traceparent)
	}
	checkHeader(t, rec, httpx.HeaderTraceparent, captured.Traceparent)
}

func TestStamperMiddleware_HonorsClientRequestID(t *testing.T) {
	handler := StamperMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(httpx.HeaderRequestID, "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	checkHeader(t, rec, httpx.HeaderRequestID, "client-supplied-id")
}

func TestStamperMiddleware_ValidTraceparentPassesThrough(t *testing.T) {
	const tp = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	handler := StamperMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(httpx.HeaderTraceparent, tp)
	req.Header.Set(httpx.HeaderTracestate, "vendor=abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	checkHeader(t, rec, httpx.HeaderTraceparent, tp)
	checkHeader(t, rec, httpx.HeaderTracestate, "vendor=abc")
}

func TestStamperMiddleware_MalformedTraceparentReplaced(t *testing.T) {
	var captured *httpx.RequestContext
	handler := StamperMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = httpx.GetRequestContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(httpx.HeaderTraceparent, "zz-not-valid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured.Traceparent == "zz-not-valid" {
		t.Error("malformed traceparent was not replaced")
	}
	if !trace.IsValidTraceparent(captured.Traceparent) {
		t.Errorf("replacement traceparent %q is not well-formed", captured.Traceparent)
	}
}

// =============================================================================
// TenantGuard Tests
// =============================================================================

func tenantChain(next http.HandlerFunc) http.Handler {
	return StamperMiddleware(TenantGuard(discardLogger())(next))
}

func TestTenantGuard(t *testing.T) {
	tests := []struct {
		name       string
		tenants    []string
		wantStatus int
		wantTenant string
	}{
		{
			name:       "valid tenant",
			tenants:    []string{validTenant},
			wantStatus: http.StatusOK,
			wantTenant: validTenant,
		},
		{
			name:       "valid tenant normalized to lowercase",
			tenants:    []string{"11111111-2222-3333-4444-55555555555A"},
			wantStatus: http.StatusOK,
			wantTenant: "11111111-2222-3333-4444-55555555555a",
		},
		{name: "missing header", tenants: nil, wantStatus: http.StatusBadRequest},
		{name: "duplicated header", tenants: []string{validTenant, validTenant}, wantStatus: http.StatusBadRequest},
		{name: "not a uuid", tenants: []string{"acme-corp"}, wantStatus: http.StatusBadRequest},
		{name: "undashed uuid rejected", tenants: []string{"11111111222233334444555555555555"}, wantStatus: http.StatusBadRequest},
		{name: "braced uuid rejected", tenants: []string{"{11111111-2222-3333-4444-555555555555}"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTenant string
			routeRan := false
			handler := tenantChain(func(w http.ResponseWriter, r *http.Request) {
				routeRan = true
				gotTenant = httpx.GetRequestContext(r.Context()).TenantID
			})

			req := httptest.NewRequest("GET", "/v1/agent/chat", nil)
			for _, v := range tt.tenants {
				req.Header.Add(httpx.HeaderTenantID, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				if routeRan {
					t.Error("route logic ran despite tenant rejection")
				}
				if body := rec.Body.String(); body != `{"error":"invalid_tenant"}` {
					t.Errorf("body = %s", body)
				}
				return
			}
			if gotTenant != tt.wantTenant {
				t.Errorf("bound tenant = %q, want %q", gotTenant, tt.wantTenant)
			}
		})
	}
}

// =============================================================================
// CredentialValidator Tests
// =============================================================================

func credentialChain(allowed []string, next http.HandlerFunc) http.Handler {
	return StamperMiddleware(CredentialValidator(allowed, discardLogger())(next))
}

func TestCredentialValidator(t *testing.T) {
	allowed := []string{"key-1", "key-2"}

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
		wantError  string
	}{
		{name: "listed key in dedicated header", header: httpx.HeaderAPIKey, value: "key-1", wantStatus: http.StatusOK},
		{name: "listed key as bearer token", header: "Authorization", value: "Bearer key-2", wantStatus: http.StatusOK},
		{name: "missing credential", wantStatus: http.StatusUnauthorized, wantError: "missing_credential"},
		{name: "unlisted key", header: httpx.HeaderAPIKey, value: "key-9", wantStatus: http.StatusForbidden, wantError: "invalid_credential"},
		{name: "unlisted bearer", header: "Authorization", value: "Bearer nope", wantStatus: http.StatusForbidden, wantError: "invalid_credential"},
		{name: "bare authorization without bearer", header: "Authorization", value: "key-1", wantStatus: http.StatusUnauthorized, wantError: "missing_credential"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bound string
			handler := credentialChain(allowed, func(w http.ResponseWriter, r *http.Request) {
				bound = httpx.GetRequestContext(r.Context()).Credential
			})

			req := httptest.NewRequest("POST", "/v1/rag/search", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantError != "" {
				if body := rec.Body.String(); body != `{"error":"`+tt.wantError+`"}` {
					t.Errorf("body = %s", body)
				}
			} else if bound == "" {
				t.Error("credential not bound to request context")
			}
		})
	}
}

func TestCredentialValidator_EmptyAllowListPassesThrough(t *testing.T) {
	called := false
	handler := credentialChain(nil, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest("POST", "/v1/rag/search", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("request blocked despite empty allow-list")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
