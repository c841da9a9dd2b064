package middleware_test

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pharmapos-be/internal/handlers/middleware"
	"github.com/ammerola/pharmapos-be/internal/pkg/logger"
	"github.com/ammerola/pharmapos-be/test/helpers"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		check    func(t *testing.T, got string)
	}{
		{
			name: "generates_uuid",
			check: func(t *testing.T, got string) {
				assert.Len(t, got, 36)
			},
		},
		{
			name:     "keeps_proxy_id",
			incoming: "lb-7f3a",
			check: func(t *testing.T, got string) {
				assert.Equal(t, "lb-7f3a", got)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromCtx string
			h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				fromCtx = logger.RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
			if tt.incoming != "" {
				req.Header.Set(middleware.HeaderRequestID, tt.incoming)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			got := w.Header().Get(middleware.HeaderRequestID)
			tt.check(t, got)
			assert.Equal(t, got, fromCtx)
		})
	}
}

func TestActor(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{name: "default_header", value: "cashier-7", want: "cashier-7"},
		{name: "trims_whitespace", value: "  pharmacist-2 ", want: "pharmacist-2"},
		{name: "custom_header", header: "X-Operator", value: "supervisor-1", want: "supervisor-1"},
		{name: "missing_header", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := middleware.Actor(tt.header)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = logger.ActorFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/abc/void", nil)
			if tt.value != "" {
				name := tt.header
				if name == "" {
					name = middleware.HeaderActorID
				}
				req.Header.Set(name, tt.value)
			}

			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_SetsTraceHeaderAndPassesBody(t *testing.T) {
	h := middleware.Logger(helpers.TestLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"kind":"insufficient_stock"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
	req.Header.Set(middleware.HeaderTraceID, "trace-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "trace-1", w.Header().Get(middleware.HeaderTraceID))
	assert.JSONEq(t, `{"kind":"insufficient_stock"}`, w.Body.String())
}

func TestRecovery(t *testing.T) {
	h := middleware.Chain(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("nil sale") }),
		middleware.RequestID,
		middleware.Recovery(helpers.TestLogger()),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-9")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal", body["kind"])
	assert.Equal(t, false, body["retryable"])
	assert.Equal(t, "req-9", body["request_id"])
}

func TestRateLimit(t *testing.T) {
	send := func(h http.Handler, addr, actor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
		req.RemoteAddr = addr
		if actor != "" {
			req.Header.Set(middleware.HeaderActorID, actor)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("per_client_ip", func(t *testing.T) {
		h := middleware.RateLimit(2, time.Minute)(ok)
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.5:1000", ""))
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.5:1001", ""))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.5:1002", ""))
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.6:1000", ""))
	})

	t.Run("actors_behind_one_address_have_own_budget", func(t *testing.T) {
		h := middleware.Chain(ok, middleware.Actor(""), middleware.RateLimit(1, time.Minute))
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.5:1000", "cashier-1"))
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.5:1000", "cashier-2"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.5:1000", "cashier-1"))
	})

	t.Run("disabled_when_zero", func(t *testing.T) {
		h := middleware.RateLimit(0, time.Minute)(ok)
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, send(h, "10.0.0.5:1000", ""))
		}
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantStatus int
		wantOrigin string
	}{
		{"wildcard", []string{"*"}, "https://pos.example", http.MethodGet, http.StatusOK, "https://pos.example"},
		{"listed_origin", []string{"https://pos.example"}, "https://pos.example", http.MethodPost, http.StatusOK, "https://pos.example"},
		{"preflight", []string{"*"}, "https://pos.example", http.MethodOptions, http.StatusNoContent, "https://pos.example"},
		{"unlisted_origin", []string{"https://pos.example"}, "https://evil.example", http.MethodGet, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/sales", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			middleware.CORS(tt.allowed)(ok).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), middleware.HeaderActorID)
			}
		})
	}
}

func TestSecureHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	middleware.SecureHeaders(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
			w.WriteHeader(http.StatusCreated)
		case <-r.Context().Done():
		}
	})

	w := httptest.NewRecorder()
	middleware.Timeout(20*time.Millisecond)(slow).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"request timeout","kind":"timeout","retryable":true}`, w.Body.String())

	w = httptest.NewRecorder()
	middleware.Timeout(time.Second)(slow).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestChain_OrderAndCompression(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := middleware.Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("movement history"))
	}), mark("outer"), mark("inner"), middleware.Compression)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/movements", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "movement history", string(body))
}
