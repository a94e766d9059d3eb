package usecase

import (
	"context"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/data/repository"
	"provalab-api/internal/data/repository/memory"
	"provalab-api/pkg/mailer"
	"provalab-api/pkg/oauth"
	"provalab-api/pkg/token"
	"provalab-api/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

func (o *outbox) last(t *testing.T) mailer.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "no email was sent")
	return o.sent[len(o.sent)-1]
}

type fakeGoogle struct {
	AuthenticateFunc func(ctx context.Context, accessToken string) (*oauth.Identity, error)
}

func (f *fakeGoogle) Authenticate(ctx context.Context, accessToken string) (*oauth.Identity, error) {
	return f.AuthenticateFunc(ctx, accessToken)
}

func testConfig() *utils.Config {
	return &utils.Config{
		App: utils.AppConfig{Name: "provalab-test", FrontendURL: "https://app.test"},
		JWT: utils.JWTConfig{Secret: "test-secret", ExpiryMinutes: 60},
		Verification: utils.VerificationConfig{
			ExpiryMinutes:     10,
			MaxAttempts:       5,
			ResendCooldownSec: 60,
			ResendMaxPerHour:  5,
		},
		PasswordReset: utils.PasswordResetConfig{ExpiryMinutes: 15, MaxPerHour: 5, MinPasswordLen: 6},
		Email:         utils.EmailConfig{TimeoutSeconds: 5},
		Plan:          utils.PlanConfig{FreeUses: 5, CheckoutURL: "https://pay.test/checkout"},
	}
}

type fixture struct {
	svc    *Service
	store  *memory.Store
	codec  *token.Codec
	clock  *clock
	mail   *outbox
	google *fakeGoogle
	cfg    *utils.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: memory.NewStore(zap.NewNop()),
		clock: &clock{now: t0},
		mail:  &outbox{},
		cfg:   testConfig(),
		google: &fakeGoogle{AuthenticateFunc: func(context.Context, string) (*oauth.Identity, error) {
			return &oauth.Identity{ExternalID: "google-1", Email: "ana@example.com", EmailVerified: true, Name: "Ana"}, nil
		}},
	}
	f.codec = token.NewCodec(f.cfg.JWT.Secret, f.clock.Now)

	f.svc = NewService(Dependencies{
		Store:    f.store,
		Codec:    f.codec,
		Mailer:   f.mail,
		Google:   f.google,
		Config:   f.cfg,
		Log:      zap.NewNop(),
		Now:      f.clock.Now,
		Go:       func(fn func()) { fn() },
		RandIntN: func(n int) int { return n - 1 },
	})
	return f
}

// createUser stores a user directly. An empty password makes a Google-only
// account.
func (f *fixture) createUser(t *testing.T, email, password string, verified bool) *entity.User {
	t.Helper()

	user := &entity.User{
		Base:          entity.Base{ID: uuid.New(), CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now()},
		Email:         email,
		EmailVerified: verified,
	}
	if password != "" {
		hash, err := utils.HashPassword(password)
		require.NoError(t, err)
		user.PasswordHash = &hash
	} else {
		gid := "google-" + email
		user.GoogleID = &gid
	}

	require.NoError(t, f.store.WithTx(context.Background(), func(ctx context.Context, repos *repository.Repository) error {
		return repos.User.Create(ctx, user)
	}))
	return user
}

func (f *fixture) issue(t *testing.T, user *entity.User) *Challenge {
	t.Helper()

	var ch *Challenge
	require.NoError(t, f.store.WithTx(context.Background(), func(ctx context.Context, repos *repository.Repository) error {
		var err error
		ch, err = f.svc.Verification.Issue(ctx, repos, user, "")
		return err
	}))
	require.Len(t, ch.Code, 6)
	return ch
}

func (f *fixture) user(t *testing.T, id uuid.UUID) *entity.User {
	t.Helper()
	u, err := f.store.Repos().User.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

var (
	codeLine   = regexp.MustCompile(`(?m)^(\d{6})$`)
	resetParam = regexp.MustCompile(`token=([A-Za-z0-9_%-]+)`)
	magicParam = regexp.MustCompile(`magic_token=([A-Za-z0-9_.%-]+)`)
)

func codeFrom(t *testing.T, msg mailer.Message) string {
	t.Helper()
	m := codeLine.FindStringSubmatch(msg.Body)
	require.Len(t, m, 2, "no code in %q", msg.Body)
	return m[1]
}

func queryValue(t *testing.T, re *regexp.Regexp, s string) string {
	t.Helper()
	m := re.FindStringSubmatch(s)
	require.Len(t, m, 2, "no token in %q", s)
	v, err := url.QueryUnescape(m[1])
	require.NoError(t, err)
	return v
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
