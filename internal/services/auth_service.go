package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/observability"
	"github.com/cattlebreed/server/internal/repository"
)

const (
	defaultOTPExpiry      = 5 * time.Minute
	defaultOTPMaxAttempts = 3
)

// AuthOptions tunes AuthService; zero values fall back to defaults
type AuthOptions struct {
	OTPExpiry   time.Duration
	MaxAttempts int
	Clock       Clock
	Metrics     *observability.BusinessMetrics
	Events      EventPublisher
}

// AuthService runs the phone/OTP login flow. OTP sessions live in memory;
// the signed-in user, token hash and guest flag live in the preference store.
type AuthService struct {
	prefs       repository.PreferenceStore
	sender      OTPSender
	expiry      time.Duration
	maxAttempts int
	clock       Clock
	metrics     *observability.BusinessMetrics
	events      EventPublisher

	mu       sync.Mutex
	sessions map[string]*models.OTPSession
	state    models.AuthState
}

// NewAuthService creates a new AuthService
func NewAuthService(prefs repository.PreferenceStore, sender OTPSender, opts AuthOptions) *AuthService {
	if opts.OTPExpiry <= 0 {
		opts.OTPExpiry = defaultOTPExpiry
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultOTPMaxAttempts
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if sender == nil {
		sender = LogOTPSender{}
	}
	return &AuthService{
		prefs:       prefs,
		sender:      sender,
		expiry:      opts.OTPExpiry,
		maxAttempts: opts.MaxAttempts,
		clock:       opts.Clock,
		metrics:     opts.Metrics,
		events:      opts.Events,
		sessions:    make(map[string]*models.OTPSession),
		state:       models.UnauthenticatedState(),
	}
}

// Restore rebuilds the auth state from stored preferences
func (s *AuthService) Restore(ctx context.Context) error {
	user, err := s.CurrentUser(ctx)
	switch {
	case err == nil:
		s.setState(models.AuthenticatedState(user))
		return nil
	case !errors.Is(err, models.ErrNotAuthenticated):
		return err
	}

	guest, err := s.flag(ctx, repository.PrefGuestMode)
	if err != nil {
		return err
	}
	if guest {
		s.setState(models.GuestState())
	} else {
		s.setState(models.UnauthenticatedState())
	}
	return nil
}

// SendOTP generates a code for phone, replacing any pending one, and delivers it
func (s *AuthService) SendOTP(ctx context.Context, rawPhone string) (*models.SendOTPResponse, error) {
	ctx, span := observability.StartServiceSpan(ctx, "AuthService", "SendOTP")
	defer span.End()

	phone, err := models.NormalizePhone(rawPhone)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	masked := models.MaskPhone(phone)
	span.SetAttributes(observability.MaskedPhone(masked))

	session, code, err := models.NewOTPSession(phone, s.clock.Now(), s.expiry)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	s.mu.Lock()
	s.sessions[phone] = session
	s.mu.Unlock()

	if err := s.sender.Send(ctx, phone, code); err != nil {
		s.mu.Lock()
		if s.sessions[phone] == session {
			delete(s.sessions, phone)
		}
		s.mu.Unlock()

		s.metrics.RecordOTPSent(ctx, s.sender.Channel(), false)
		observability.WithContext(ctx).WithError(err).WithField("phone", masked).Error("Failed to deliver OTP")
		observability.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", models.ErrOTPDelivery, err)
	}
	s.metrics.RecordOTPSent(ctx, s.sender.Channel(), true)

	s.setState(models.OTPPendingState(phone))
	observability.WithContext(ctx).WithField("phone", masked).Info("OTP sent")
	observability.SetSuccess(span)

	return &models.SendOTPResponse{
		Message:     "OTP sent to " + masked,
		MaskedPhone: masked,
		ExpiresIn:   int(s.expiry.Seconds()),
	}, nil
}

// VerifyOTP checks code against the pending session for phone and signs the
// user in on success
func (s *AuthService) VerifyOTP(ctx context.Context, rawPhone, code string) (*models.LoginResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "AuthService", "VerifyOTP")
	defer span.End()

	phone, err := models.NormalizePhone(rawPhone)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(observability.MaskedPhone(models.MaskPhone(phone)))

	if err := s.checkCode(phone, code); err != nil {
		s.metrics.RecordOTPVerification(ctx, verificationResult(err))
		observability.RecordError(span, err)
		return nil, err
	}

	user, token, err := s.signIn(ctx, phone)
	if err != nil {
		s.metrics.RecordOTPVerification(ctx, "error")
		observability.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordOTPVerification(ctx, "success")
	s.setState(models.AuthenticatedState(user))
	observability.WithContext(ctx).WithField("phone", models.MaskPhone(phone)).Info("User signed in")
	observability.SetSuccess(span)

	return &models.LoginResult{Token: token, User: user}, nil
}

// checkCode applies the session checks in order. Each compare reserves an
// attempt under the lock first, so concurrent guesses never evaluate more
// than maxAttempts codes. The bcrypt compare itself runs outside the lock.
func (s *AuthService) checkCode(phone, code string) error {
	s.mu.Lock()
	session, ok := s.sessions[phone]
	if !ok {
		s.mu.Unlock()
		return models.ErrOTPNotFound
	}
	if session.IsExpired(s.clock.Now()) {
		delete(s.sessions, phone)
		s.mu.Unlock()
		return models.ErrOTPExpired
	}
	if session.Used {
		s.mu.Unlock()
		return models.ErrOTPAlreadyUsed
	}
	if session.Exhausted(s.maxAttempts) {
		s.mu.Unlock()
		return models.ErrTooManyAttempts
	}
	session.RecordAttempt()
	s.mu.Unlock()

	matched := session.Matches(code)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[phone] != session {
		// replaced by a resend while comparing
		return models.ErrInvalidOTP
	}
	if session.Used {
		return models.ErrOTPAlreadyUsed
	}
	if !matched {
		return models.ErrInvalidOTP
	}
	session.MarkUsed()
	return nil
}

func verificationResult(err error) string {
	switch {
	case errors.Is(err, models.ErrOTPNotFound):
		return "not_found"
	case errors.Is(err, models.ErrOTPExpired):
		return "expired"
	case errors.Is(err, models.ErrOTPAlreadyUsed):
		return "used"
	case errors.Is(err, models.ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, models.ErrInvalidOTP):
		return "invalid"
	default:
		return "error"
	}
}

func (s *AuthService) signIn(ctx context.Context, phone string) (*models.User, string, error) {
	now := s.clock.Now()

	user, err := s.loadUser(ctx, phone)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		user = models.NewUser(phone, now)
		if lang, ok, err := s.prefs.Get(ctx, repository.PrefPreferredLanguage); err == nil && ok && models.IsSupportedLanguage(lang) {
			user.PreferredLanguage = lang
		}
	} else {
		user.IsVerified = true
		user.LastLoginDate = now.UTC()
	}

	if err := s.saveUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := models.GenerateSessionToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session token: %w", err)
	}
	if err := s.prefs.Set(ctx, repository.PrefCurrentUserPhone, phone); err != nil {
		return nil, "", fmt.Errorf("failed to store current user: %w", err)
	}
	if err := s.prefs.Set(ctx, repository.PrefAuthToken, models.HashToken(token)); err != nil {
		return nil, "", fmt.Errorf("failed to store session token: %w", err)
	}
	if err := s.prefs.Delete(ctx, repository.PrefGuestMode); err != nil {
		return nil, "", fmt.Errorf("failed to clear guest mode: %w", err)
	}

	return user, token, nil
}

// SetGuestMode switches to guest use. Any signed-in session ends.
func (s *AuthService) SetGuestMode(ctx context.Context) error {
	if err := s.prefs.Delete(ctx, repository.PrefCurrentUserPhone, repository.PrefAuthToken); err != nil {
		return err
	}
	if err := s.prefs.Set(ctx, repository.PrefGuestMode, "true"); err != nil {
		return err
	}
	s.setState(models.GuestState())
	observability.WithContext(ctx).Info("Guest mode enabled")
	return nil
}

// SignOut clears the current user, token and guest flag. Stored profiles are kept.
func (s *AuthService) SignOut(ctx context.Context) error {
	if err := s.prefs.Delete(ctx, repository.PrefCurrentUserPhone, repository.PrefAuthToken, repository.PrefGuestMode); err != nil {
		return err
	}
	s.setState(models.UnauthenticatedState())
	observability.WithContext(ctx).Info("User signed out")
	return nil
}

// CurrentUser returns the signed-in user or ErrNotAuthenticated
func (s *AuthService) CurrentUser(ctx context.Context) (*models.User, error) {
	phone, ok, err := s.prefs.Get(ctx, repository.PrefCurrentUserPhone)
	if err != nil {
		return nil, err
	}
	if !ok || phone == "" {
		return nil, models.ErrNotAuthenticated
	}
	user, err := s.loadUser(ctx, phone)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrNotAuthenticated
	}
	return user, nil
}

// UpdateProfile applies req to the signed-in user
func (s *AuthService) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(user); err != nil {
		return nil, err
	}
	if err := s.saveUser(ctx, user); err != nil {
		return nil, err
	}
	if req.PreferredLanguage != nil {
		if err := s.prefs.Set(ctx, repository.PrefPreferredLanguage, user.PreferredLanguage); err != nil {
			return nil, err
		}
	}
	s.setState(models.AuthenticatedState(user))
	return user, nil
}

// ValidateToken resolves a bearer token to the signed-in user
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, models.ErrInvalidToken
	}
	stored, ok, err := s.prefs.Get(ctx, repository.PrefAuthToken)
	if err != nil {
		return nil, err
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(models.HashToken(token))) != 1 {
		return nil, models.ErrInvalidToken
	}
	user, err := s.CurrentUser(ctx)
	if errors.Is(err, models.ErrNotAuthenticated) {
		return nil, models.ErrInvalidToken
	}
	return user, err
}

// SetLanguage stores the preferred language code, and on the user when signed in
func (s *AuthService) SetLanguage(ctx context.Context, code string) error {
	if !models.IsSupportedLanguage(code) {
		return models.ErrUnsupportedLanguage
	}
	if err := s.prefs.Set(ctx, repository.PrefPreferredLanguage, code); err != nil {
		return err
	}

	user, err := s.CurrentUser(ctx)
	if errors.Is(err, models.ErrNotAuthenticated) {
		return nil
	}
	if err != nil {
		return err
	}
	user.PreferredLanguage = code
	if err := s.saveUser(ctx, user); err != nil {
		return err
	}
	s.setState(models.AuthenticatedState(user))
	return nil
}

// Language returns the stored language code, DefaultLanguage when unset
func (s *AuthService) Language(ctx context.Context) (string, error) {
	code, ok, err := s.prefs.Get(ctx, repository.PrefPreferredLanguage)
	if err != nil {
		return "", err
	}
	if !ok || !models.IsSupportedLanguage(code) {
		return models.DefaultLanguage, nil
	}
	return code, nil
}

// State returns the current auth state
func (s *AuthService) State() models.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CleanupExpired drops expired OTP sessions and returns how many were removed
func (s *AuthService) CleanupExpired() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for phone, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, phone)
			removed++
		}
	}
	return removed
}

// StartCleanup sweeps expired sessions every interval until ctx is done
func (s *AuthService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.CleanupExpired(); n > 0 {
				observability.Debugf("Removed %d expired OTP sessions", n)
			}
		}
	}
}

func (s *AuthService) setState(state models.AuthState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	publish(s.events, TopicAuth, WSTypeAuthState, map[string]string{"status": string(state.Status)})
}

func (s *AuthService) flag(ctx context.Context, key string) (bool, error) {
	v, ok, err := s.prefs.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

func (s *AuthService) loadUser(ctx context.Context, phone string) (*models.User, error) {
	raw, ok, err := s.prefs.Get(ctx, repository.UserKey(phone))
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) saveUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.prefs.Set(ctx, repository.UserKey(user.PhoneNumber), string(data)); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}
