package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"provalab-api/internal/data/repository/memory"
	"provalab-api/internal/usecase"
	"provalab-api/pkg/mailer"
	"provalab-api/pkg/oauth"
	"provalab-api/pkg/token"
	"provalab-api/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

type noGoogle struct{}

func (noGoogle) Authenticate(context.Context, string) (*oauth.Identity, error) {
	return nil, assert.AnError
}

func newTestApp(t *testing.T, webhookToken string, opts ...func(*utils.Config)) (*App, *outbox) {
	t.Helper()

	now := func() time.Time { return t0 }
	cfg := &utils.Config{
		App: utils.AppConfig{Name: "provalab-test", FrontendURL: "https://app.test", CORSOrigins: []string{"https://app.test"}},
		JWT: utils.JWTConfig{Secret: "test-secret", ExpiryMinutes: 60},
		Verification: utils.VerificationConfig{
			ExpiryMinutes: 10, MaxAttempts: 5, ResendCooldownSec: 60, ResendMaxPerHour: 5,
		},
		PasswordReset: utils.PasswordResetConfig{ExpiryMinutes: 15, MaxPerHour: 5, MinPasswordLen: 6},
		Email:         utils.EmailConfig{TimeoutSeconds: 5},
		Plan:          utils.PlanConfig{FreeUses: 2, CheckoutURL: "https://pay.test/checkout", WebhookToken: webhookToken},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	mail := &outbox{}

	app := Wiring(usecase.Dependencies{
		Store:  memory.NewStore(zap.NewNop()),
		Codec:  token.NewCodec(cfg.JWT.Secret, now),
		Mailer: mail,
		Google: noGoogle{},
		Config: cfg,
		Log:    zap.NewNop(),
		Now:    now,
		Go:     func(fn func()) { fn() },
	}, nil)
	return app, mail
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func call(t *testing.T, app *App, method, path, bearer string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func signup(t *testing.T, app *App, email string) string {
	t.Helper()
	rec, env := call(t, app, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": email, "password": "secret1", "confirm_password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.AccessToken
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, "")
	rec, env := call(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Status)
}

func TestSignupThenMe(t *testing.T) {
	app, _ := newTestApp(t, "")
	session := signup(t, app, "ana@example.com")

	rec, env := call(t, app, http.MethodGet, "/api/auth/me", session, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"email":"ana@example.com"`)

	rec, env = call(t, app, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Kind)

	rec, env = call(t, app, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "ana@example.com", "password": "secret1", "confirm_password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_email", env.Kind)
}

func TestSignupValidation(t *testing.T) {
	app, _ := newTestApp(t, "")
	rec, env := call(t, app, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Kind)
	assert.Contains(t, string(env.Errors), "Email")
}

func TestForgotPasswordBodiesMatch(t *testing.T) {
	app, mail := newTestApp(t, "")
	signup(t, app, "ana@example.com")

	known, _ := call(t, app, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "ana@example.com"})
	unknown, _ := call(t, app, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.Len(t, mail.sent, 1)
}

func TestRandomExerciseIsMetered(t *testing.T) {
	app, _ := newTestApp(t, "")
	session := signup(t, app, "ana@example.com")

	rec, _ := call(t, app, http.MethodPost, "/api/exercises", session, map[string]any{
		"question": "2+2?", "options": []string{"3", "4"}, "correct_answer": "4",
		"difficulty": "easy", "subject": "arithmetic",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for i := 0; i < 2; i++ {
		rec, _ := call(t, app, http.MethodGet, "/api/exercises/random?subject=arithmetic&difficulty=easy", session, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec, env := call(t, app, http.MethodGet, "/api/exercises/random?subject=arithmetic&difficulty=easy", session, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "free_limit_reached", env.Kind)
	assert.JSONEq(t, `{"checkout_url":"https://pay.test/checkout"}`, string(env.Errors))

	// unmetered routes still work
	rec, _ = call(t, app, http.MethodGet, "/api/exercises?subject=arithmetic", session, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = call(t, app, http.MethodGet, "/api/profiles/plan", session, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"remaining":0`)
}

func TestExerciseLimitOutOfRange(t *testing.T) {
	app, _ := newTestApp(t, "")
	session := signup(t, app, "ana@example.com")

	rec, _ := call(t, app, http.MethodGet, "/api/exercises?limit=500", session, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHotmartWebhook(t *testing.T) {
	approved := map[string]any{
		"event": "purchase_approved",
		"data": map[string]any{
			"buyer":    map[string]any{"email": "ANA@example.com"},
			"purchase": map[string]any{"transaction": "HP-123"},
		},
	}

	t.Run("not configured", func(t *testing.T) {
		app, _ := newTestApp(t, "")
		rec, _ := call(t, app, http.MethodPost, "/api/hotmart/webhook", "", approved, "X-Hotmart-Hottok", "anything")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	app, _ := newTestApp(t, "hottok")
	session := signup(t, app, "ana@example.com")

	t.Run("bad token", func(t *testing.T) {
		rec, _ := call(t, app, http.MethodPost, "/api/hotmart/webhook", "", approved, "X-Hotmart-Hottok", "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("ignored event", func(t *testing.T) {
		rec, env := call(t, app, http.MethodPost, "/api/hotmart/webhook", "", map[string]any{"event": "PURCHASE_DELAYED"}, "X-Hotmart-Hottok", "hottok")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ignored","event":"PURCHASE_DELAYED","reason":"unknown_event"}`, string(env.Data))
	})

	t.Run("approved", func(t *testing.T) {
		rec, env := call(t, app, http.MethodPost, "/api/hotmart/webhook", "", approved, "X-Hotmart-Hottok", "hottok")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","event":"PURCHASE_APPROVED","processed":true}`, string(env.Data))

		rec, env = call(t, app, http.MethodGet, "/api/profiles/plan", session, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), `"plan":"premium"`)
		assert.Contains(t, string(env.Data), `"hotmart_purchase_id":"HP-123"`)
	})

	t.Run("unknown buyer", func(t *testing.T) {
		body := map[string]any{"event": "PURCHASE_CANCELED", "buyer": map[string]any{"email": "ghost@example.com"}}
		rec, env := call(t, app, http.MethodPost, "/api/hotmart/webhook", "", body, "X-Hotmart-Hottok", "hottok")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), `"reason":"user_not_found"`)
	})
}

func TestProfileRoutes(t *testing.T) {
	app, _ := newTestApp(t, "")
	session := signup(t, app, "ana@example.com")

	rec, _ := call(t, app, http.MethodPut, "/api/profiles/me", session, map[string]string{"avatar_url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := call(t, app, http.MethodPut, "/api/profiles/me", session, map[string]string{"full_name": "Ana"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"full_name":"Ana"`)

	rec, _ = call(t, app, http.MethodGet, "/api/profiles/me", session, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func forgotFromSpoofedIPs(t *testing.T, app *App, users int) {
	t.Helper()
	for i := 0; i < users; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		signup(t, app, email)

		rec, _ := call(t, app, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": email},
			"X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestForwardedForIgnoredByDefault(t *testing.T) {
	app, mail := newTestApp(t, "")
	forgotFromSpoofedIPs(t, app, 8)

	// every request comes from the same RemoteAddr, so the IP cap holds
	assert.Len(t, mail.sent, 5)
}

func TestForwardedForTrustedBehindProxy(t *testing.T) {
	app, mail := newTestApp(t, "", func(c *utils.Config) { c.App.TrustProxyHeaders = true })
	forgotFromSpoofedIPs(t, app, 8)

	assert.Len(t, mail.sent, 8)
}
