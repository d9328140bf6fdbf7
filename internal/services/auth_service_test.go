package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryPrefs struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryPrefs() *memoryPrefs {
	return &memoryPrefs{data: make(map[string]string)}
}

func (m *memoryPrefs) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryPrefs) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryPrefs) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (c *captureSender) Channel() string { return "test" }

func (c *captureSender) Send(_ context.Context, phone, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.codes == nil {
		c.codes = make(map[string]string)
	}
	c.codes[phone] = code
	return nil
}

func (c *captureSender) code(phone string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[phone]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

const testPhone = "9876543210"

func setupAuth(t *testing.T) (*AuthService, *memoryPrefs, *captureSender, *fakeClock) {
	t.Helper()
	prefs := newMemoryPrefs()
	sender := &captureSender{}
	clock := &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc := NewAuthService(prefs, sender, AuthOptions{Clock: clock})
	return svc, prefs, sender, clock
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestAuthService_SendOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes and masks", func(t *testing.T) {
		svc, _, sender, _ := setupAuth(t)

		resp, err := svc.SendOTP(ctx, "+91 98765-43210")
		require.Error(t, err, "twelve digits with country code are not a valid mobile number")
		assert.Nil(t, resp)

		resp, err = svc.SendOTP(ctx, "98765 43210")
		require.NoError(t, err)
		assert.Equal(t, "OTP sent to ******3210", resp.Message)
		assert.Equal(t, "******3210", resp.MaskedPhone)
		assert.Equal(t, 300, resp.ExpiresIn)
		assert.Len(t, sender.code(testPhone), 6)

		state := svc.State()
		assert.Equal(t, models.AuthOTPPending, state.Status)
		assert.Equal(t, testPhone, state.PhoneNumber)
	})

	t.Run("rejects invalid numbers without a session", func(t *testing.T) {
		svc, _, _, _ := setupAuth(t)

		for _, phone := range []string{"", "12345", "5876543210", "98765432101"} {
			_, err := svc.SendOTP(ctx, phone)
			assert.ErrorIs(t, err, models.ErrInvalidPhone, phone)
		}
		_, err := svc.VerifyOTP(ctx, "5876543210", "123456")
		assert.ErrorIs(t, err, models.ErrInvalidPhone)
		assert.Equal(t, models.AuthUnauthenticated, svc.State().Status)
	})

	t.Run("delivery failure discards the session", func(t *testing.T) {
		svc, _, sender, _ := setupAuth(t)
		sender.err = errors.New("gateway down")

		_, err := svc.SendOTP(ctx, testPhone)
		assert.ErrorIs(t, err, models.ErrOTPDelivery)

		_, err = svc.VerifyOTP(ctx, testPhone, "123456")
		assert.ErrorIs(t, err, models.ErrOTPNotFound)
	})
}

func TestAuthService_VerifyOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("success signs in", func(t *testing.T) {
		svc, prefs, sender, _ := setupAuth(t)
		require.NoError(t, prefs.Set(ctx, repository.PrefGuestMode, "true"))
		require.NoError(t, prefs.Set(ctx, repository.PrefPreferredLanguage, "hi"))

		_, err := svc.SendOTP(ctx, testPhone)
		require.NoError(t, err)

		result, err := svc.VerifyOTP(ctx, testPhone, sender.code(testPhone))
		require.NoError(t, err)
		assert.Len(t, result.Token, 64)
		assert.Equal(t, testPhone, result.User.PhoneNumber)
		assert.True(t, result.User.IsVerified)
		assert.Equal(t, "hi", result.User.PreferredLanguage)

		assert.Equal(t, models.AuthAuthenticated, svc.State().Status)
		_, guest, _ := prefs.Get(ctx, repository.PrefGuestMode)
		assert.False(t, guest)

		stored, _, _ := prefs.Get(ctx, repository.PrefAuthToken)
		assert.Equal(t, models.HashToken(result.Token), stored)
		assert.NotEqual(t, result.Token, stored)

		user, err := svc.ValidateToken(ctx, result.Token)
		require.NoError(t, err)
		assert.Equal(t, testPhone, user.PhoneNumber)

		_, err = svc.VerifyOTP(ctx, testPhone, sender.code(testPhone))
		assert.ErrorIs(t, err, models.ErrOTPAlreadyUsed)
	})

	t.Run("no session", func(t *testing.T) {
		svc, _, _, _ := setupAuth(t)
		_, err := svc.VerifyOTP(ctx, testPhone, "123456")
		assert.ErrorIs(t, err, models.ErrOTPNotFound)
	})

	t.Run("expired session is discarded", func(t *testing.T) {
		svc, _, sender, clock := setupAuth(t)
		_, err := svc.SendOTP(ctx, testPhone)
		require.NoError(t, err)

		clock.Advance(5*time.Minute + time.Second)
		_, err = svc.VerifyOTP(ctx, testPhone, sender.code(testPhone))
		assert.ErrorIs(t, err, models.ErrOTPExpired)

		_, err = svc.VerifyOTP(ctx, testPhone, sender.code(testPhone))
		assert.ErrorIs(t, err, models.ErrOTPNotFound)
	})

	t.Run("three wrong codes lock the session", func(t *testing.T) {
		svc, _, sender, _ := setupAuth(t)
		_, err := svc.SendOTP(ctx, testPhone)
		require.NoError(t, err)
		bad := wrongCode(sender.code(testPhone))

		for i := 0; i < 3; i++ {
			_, err = svc.VerifyOTP(ctx, testPhone, bad)
			assert.ErrorIs(t, err, models.ErrInvalidOTP)
		}

		_, err = svc.VerifyOTP(ctx, testPhone, sender.code(testPhone))
		assert.ErrorIs(t, err, models.ErrTooManyAttempts)

		// a resend starts over
		_, err = svc.SendOTP(ctx, testPhone)
		require.NoError(t, err)
		_, err = svc.VerifyOTP(ctx, testPhone, sender.code(testPhone))
		assert.NoError(t, err)
	})

	t.Run("concurrent guesses stay within the attempt limit", func(t *testing.T) {
		svc, _, sender, _ := setupAuth(t)
		_, err := svc.SendOTP(ctx, testPhone)
		require.NoError(t, err)
		good := sender.code(testPhone)
		bad := wrongCode(good)

		const calls = 30
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			invalid   int
			successes int
		)
		start := make(chan struct{})
		for i := 0; i < calls; i++ {
			code := bad
			if i == calls-1 {
				code = good
			}
			wg.Add(1)
			go func(code string) {
				defer wg.Done()
				<-start
				_, err := svc.VerifyOTP(ctx, testPhone, code)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, models.ErrInvalidOTP):
					invalid++
				default:
					assert.ErrorIs(t, err, models.ErrTooManyAttempts)
				}
			}(code)
		}
		close(start)
		wg.Wait()

		assert.LessOrEqual(t, invalid+successes, 3)
		assert.LessOrEqual(t, successes, 1)

		_, err = svc.VerifyOTP(ctx, testPhone, good)
		if successes == 1 {
			assert.ErrorIs(t, err, models.ErrOTPAlreadyUsed)
		} else {
			assert.ErrorIs(t, err, models.ErrTooManyAttempts)
		}
	})

	t.Run("returning user keeps registration date", func(t *testing.T) {
		svc, _, sender, clock := setupAuth(t)

		_, err := svc.SendOTP(ctx, testPhone)
		require.NoError(t, err)
		first, err := svc.VerifyOTP(ctx, testPhone, sender.code(testPhone))
		require.NoError(t, err)

		clock.Advance(48 * time.Hour)
		_, err = svc.SendOTP(ctx, testPhone)
		require.NoError(t, err)
		second, err := svc.VerifyOTP(ctx, testPhone, sender.code(testPhone))
		require.NoError(t, err)

		assert.Equal(t, first.User.RegistrationDate, second.User.RegistrationDate)
		assert.True(t, second.User.LastLoginDate.After(first.User.LastLoginDate))

		_, err = svc.ValidateToken(ctx, first.Token)
		assert.ErrorIs(t, err, models.ErrInvalidToken)
	})
}

func TestAuthService_SessionLifecycle(t *testing.T) {
	ctx := context.Background()

	signIn := func(t *testing.T, svc *AuthService, sender *captureSender) string {
		t.Helper()
		_, err := svc.SendOTP(ctx, testPhone)
		require.NoError(t, err)
		res, err := svc.VerifyOTP(ctx, testPhone, sender.code(testPhone))
		require.NoError(t, err)
		return res.Token
	}

	t.Run("guest mode and sign out", func(t *testing.T) {
		svc, _, sender, _ := setupAuth(t)
		token := signIn(t, svc, sender)

		require.NoError(t, svc.SetGuestMode(ctx))
		assert.Equal(t, models.AuthGuest, svc.State().Status)
		_, err := svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, models.ErrInvalidToken)

		require.NoError(t, svc.SignOut(ctx))
		assert.Equal(t, models.AuthUnauthenticated, svc.State().Status)
		_, err = svc.CurrentUser(ctx)
		assert.ErrorIs(t, err, models.ErrNotAuthenticated)
	})

	t.Run("restore from preferences", func(t *testing.T) {
		svc, prefs, sender, clock := setupAuth(t)
		signIn(t, svc, sender)

		restored := NewAuthService(prefs, sender, AuthOptions{Clock: clock})
		require.NoError(t, restored.Restore(ctx))
		assert.Equal(t, models.AuthAuthenticated, restored.State().Status)

		require.NoError(t, restored.SetGuestMode(ctx))
		again := NewAuthService(prefs, sender, AuthOptions{Clock: clock})
		require.NoError(t, again.Restore(ctx))
		assert.Equal(t, models.AuthGuest, again.State().Status)
	})

	t.Run("profile and language", func(t *testing.T) {
		svc, _, sender, _ := setupAuth(t)

		lang, err := svc.Language(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.DefaultLanguage, lang)
		assert.ErrorIs(t, svc.SetLanguage(ctx, "xx"), models.ErrUnsupportedLanguage)

		_, err = svc.UpdateProfile(ctx, models.UpdateProfileRequest{})
		assert.ErrorIs(t, err, models.ErrNotAuthenticated)

		signIn(t, svc, sender)
		farm := "  Green Pastures "
		user, err := svc.UpdateProfile(ctx, models.UpdateProfileRequest{FarmName: &farm})
		require.NoError(t, err)
		assert.Equal(t, "Green Pastures", user.FarmName)

		require.NoError(t, svc.SetLanguage(ctx, "ta"))
		current, err := svc.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ta", current.PreferredLanguage)
		assert.Equal(t, "Green Pastures", current.FarmName)
	})

	t.Run("cleanup removes only expired sessions", func(t *testing.T) {
		svc, _, _, clock := setupAuth(t)
		_, err := svc.SendOTP(ctx, testPhone)
		require.NoError(t, err)
		clock.Advance(4 * time.Minute)
		_, err = svc.SendOTP(ctx, "8123456789")
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)
		assert.Equal(t, 1, svc.CleanupExpired())
		assert.Equal(t, 0, svc.CleanupExpired())
	})
}
