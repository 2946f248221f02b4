package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/webhook-gateway/auth"
	"github.com/taskhub/webhook-gateway/command"
	"github.com/taskhub/webhook-gateway/envelope"
	"github.com/taskhub/webhook-gateway/errs"
	"github.com/taskhub/webhook-gateway/idempotency"
	"github.com/taskhub/webhook-gateway/metrics"
	"github.com/taskhub/webhook-gateway/ratelimit"
)

const testAPIKey = "whk_test_key"

func testMux(t *testing.T, register func(r *command.Router)) http.Handler {
	t.Helper()

	keys := auth.NewLoader()
	keys.Add(auth.Key{Name: "test-client", Key: testAPIKey, WorkspaceID: "ws-1"})

	router := command.NewRouter()
	if register != nil {
		register(router)
	}

	return Handlers(Config{
		BodyLimit:      1 << 20,
		RequestTimeout: 5 * time.Second,
		RequireHTTPS:   false,
		Version:        "test",
	}, Deps{
		Validator:   envelope.NewValidator(5*time.Minute, time.Minute),
		Router:      router,
		Keys:        keys,
		Lockout:     auth.NewLockout(5, 15*time.Minute),
		Limiter:     ratelimit.NewLimiter(100, time.Minute),
		Idempotency: idempotency.NewCache(time.Hour),
		Metrics:     metrics.New(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func commandBody(cmd, idempotencyKey string) string {
	meta := fmt.Sprintf(`"requestId":"req-1","timestamp":%q,"source":"web-app"`,
		time.Now().UTC().Format(time.RFC3339))
	if idempotencyKey != "" {
		meta += fmt.Sprintf(`,"idempotencyKey":%q`, idempotencyKey)
	}
	return fmt.Sprintf(`{"command":%q,"data":{"taskId":"task-1"},"meta":{%s}}`, cmd, meta)
}

func postCommand(mux http.Handler, body string, decorate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/v1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, testAPIKey)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) envelope.Response {
	t.Helper()
	var resp envelope.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	mux := testMux(t, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestMetricsEndpoint(t *testing.T) {
	mux := testMux(t, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCommand(t *testing.T) {
	t.Run("routes a valid command and wraps the result", func(t *testing.T) {
		mux := testMux(t, func(r *command.Router) {
			r.Register("v1/tasks/get", func(_ context.Context, _ string, _ json.RawMessage, reqCtx *command.RequestContext) command.Result {
				assert.Equal(t, "req-1", reqCtx.RequestID)
				assert.Equal(t, "test-client", reqCtx.APIKeyName)
				assert.Equal(t, "ws-1", reqCtx.WorkspaceID)
				return command.Success(map[string]any{"id": "task-1"})
			})
		})

		rec := postCommand(mux, commandBody("v1/tasks/get", ""), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		assert.Equal(t, "req-1", resp.Meta.RequestID)
	})

	t.Run("rejects a malformed envelope", func(t *testing.T) {
		mux := testMux(t, nil)

		rec := postCommand(mux, `{"command":"not a command"}`, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(errs.CodeInvalidRequest), resp.Error.Code)
	})

	t.Run("rejects a stale timestamp", func(t *testing.T) {
		mux := testMux(t, nil)
		stale := fmt.Sprintf(
			`{"command":"v1/tasks/get","data":{},"meta":{"requestId":"req-1","timestamp":%q,"source":"web-app"}}`,
			time.Now().UTC().Add(-time.Hour).Format(time.RFC3339))

		rec := postCommand(mux, stale, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps an unknown command to 404", func(t *testing.T) {
		mux := testMux(t, nil)

		rec := postCommand(mux, commandBody("v1/tasks/get", ""), nil)

		require.Equal(t, http.StatusNotFound, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(errs.CodeNotFound), resp.Error.Code)
	})

	t.Run("maps a state conflict to 409", func(t *testing.T) {
		mux := testMux(t, func(r *command.Router) {
			r.Register("v1/tasks/pause", func(context.Context, string, json.RawMessage, *command.RequestContext) command.Result {
				return command.Failure(errs.CodeInvalidStateTransition, "task is already paused")
			})
		})

		rec := postCommand(mux, commandBody("v1/tasks/pause", ""), nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("hides handler panic-level detail behind a generic 500", func(t *testing.T) {
		mux := testMux(t, func(r *command.Router) {
			r.Register("v1/tasks/get", func(context.Context, string, json.RawMessage, *command.RequestContext) command.Result {
				return command.Failure(errs.CodeInternal, "pg: connection refused to 10.0.0.7")
			})
		})

		rec := postCommand(mux, commandBody("v1/tasks/get", ""), nil)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(errs.CodeInternal), resp.Error.Code)
	})
}

func TestAuthentication(t *testing.T) {
	t.Run("rejects a missing or unknown key", func(t *testing.T) {
		mux := testMux(t, nil)

		rec := postCommand(mux, commandBody("v1/tasks/get", ""), func(r *http.Request) {
			r.Header.Set(APIKeyHeader, "nope")
		})

		require.Equal(t, http.StatusForbidden, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(errs.CodeForbidden), resp.Error.Code)
	})

	t.Run("locks a client out after repeated failures", func(t *testing.T) {
		mux := testMux(t, nil)

		for i := 0; i < 5; i++ {
			postCommand(mux, commandBody("v1/tasks/get", ""), func(r *http.Request) {
				r.Header.Set(APIKeyHeader, "nope")
			})
		}

		// correct key, but the client address is now blocked
		rec := postCommand(mux, commandBody("v1/tasks/get", ""), nil)

		require.Equal(t, http.StatusForbidden, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Contains(t, resp.Error.Message, "too many failed authentication attempts")
	})
}

func TestHTTPSEnforcement(t *testing.T) {
	keys := auth.NewLoader()
	keys.Add(auth.Key{Name: "test-client", Key: testAPIKey, WorkspaceID: "ws-1"})

	mux := Handlers(Config{
		BodyLimit:    1 << 20,
		RequireHTTPS: true,
		Version:      "test",
	}, Deps{
		Validator:   envelope.NewValidator(5*time.Minute, time.Minute),
		Router:      command.NewRouter(),
		Keys:        keys,
		Lockout:     auth.NewLockout(5, 15*time.Minute),
		Limiter:     ratelimit.NewLimiter(100, time.Minute),
		Idempotency: idempotency.NewCache(time.Hour),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	t.Run("rejects plaintext", func(t *testing.T) {
		rec := postCommand(mux, commandBody("v1/tasks/get", ""), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("accepts forwarded https", func(t *testing.T) {
		rec := postCommand(mux, commandBody("v1/tasks/get", ""), func(r *http.Request) {
			r.Header.Set("X-Forwarded-Proto", "https")
		})
		// past the transport check; fails later on routing instead
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRateLimit(t *testing.T) {
	keys := auth.NewLoader()
	keys.Add(auth.Key{Name: "test-client", Key: testAPIKey, WorkspaceID: "ws-1"})

	router := command.NewRouter()
	router.Register("v1/tasks/get", func(context.Context, string, json.RawMessage, *command.RequestContext) command.Result {
		return command.Success(nil)
	})

	mux := Handlers(Config{BodyLimit: 1 << 20, Version: "test"}, Deps{
		Validator:   envelope.NewValidator(5*time.Minute, time.Minute),
		Router:      router,
		Keys:        keys,
		Lockout:     auth.NewLockout(5, 15*time.Minute),
		Limiter:     ratelimit.NewLimiter(2, time.Minute),
		Idempotency: idempotency.NewCache(time.Hour),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	require.Equal(t, http.StatusOK, postCommand(mux, commandBody("v1/tasks/get", ""), nil).Code)
	require.Equal(t, http.StatusOK, postCommand(mux, commandBody("v1/tasks/get", ""), nil).Code)

	rec := postCommand(mux, commandBody("v1/tasks/get", ""), nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(errs.CodeRateLimitExceeded), resp.Error.Code)
}

func TestIdempotency(t *testing.T) {
	calls := 0
	mux := testMux(t, func(r *command.Router) {
		r.Register("v1/tasks/create", func(context.Context, string, json.RawMessage, *command.RequestContext) command.Result {
			calls++
			return command.Success(map[string]any{"id": fmt.Sprintf("task-%d", calls)})
		})
	})

	body := commandBody("v1/tasks/create", "idem-abc123")

	first := postCommand(mux, body, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := postCommand(mux, body, nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestBodyLimit(t *testing.T) {
	keys := auth.NewLoader()
	keys.Add(auth.Key{Name: "test-client", Key: testAPIKey, WorkspaceID: "ws-1"})

	m := metrics.New()
	mux := Handlers(Config{BodyLimit: 64, Version: "test"}, Deps{
		Validator:   envelope.NewValidator(5*time.Minute, time.Minute),
		Router:      command.NewRouter(),
		Keys:        keys,
		Lockout:     auth.NewLockout(5, 15*time.Minute),
		Limiter:     ratelimit.NewLimiter(100, time.Minute),
		Idempotency: idempotency.NewCache(time.Hour),
		Metrics:     m,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	rec := postCommand(mux, commandBody("v1/tasks/get", ""), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(errs.CodeValidation), resp.Error.Code)
	assert.Equal(t, "request body too large", resp.Error.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsRejectedTotal.WithLabelValues("body_limit")))
}

func TestRejectUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	gw := newGateway(Config{}, Deps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	gw.now = func() time.Time { return fixed }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/v1", nil)
	gw.reject(rec, req, "auth", errs.CodeForbidden, "invalid API key")

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, fixed.Format(time.RFC3339), resp.Meta.Timestamp)
}
