package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// User is a farmer identified by a verified phone number
type User struct {
	PhoneNumber       string    `json:"phoneNumber"`
	IsVerified        bool      `json:"isVerified"`
	RegistrationDate  time.Time `json:"registrationDate"`
	LastLoginDate     time.Time `json:"lastLoginDate"`
	PreferredLanguage string    `json:"preferredLanguage"`
	FarmName          string    `json:"farmName,omitempty"`
	FarmerName        string    `json:"farmerName,omitempty"`
	Location          string    `json:"location,omitempty"`
	SyncEnabled       bool      `json:"syncEnabled"`
}

// NewUser creates a verified user registered at now
func NewUser(phone string, now time.Time) *User {
	now = now.UTC()
	return &User{
		PhoneNumber:       phone,
		IsVerified:        true,
		RegistrationDate:  now,
		LastLoginDate:     now,
		PreferredLanguage: DefaultLanguage,
	}
}

// UpdateProfileRequest carries optional profile changes; nil fields are left alone
type UpdateProfileRequest struct {
	FarmName          *string `json:"farmName,omitempty"`
	FarmerName        *string `json:"farmerName,omitempty"`
	Location          *string `json:"location,omitempty"`
	SyncEnabled       *bool   `json:"syncEnabled,omitempty"`
	PreferredLanguage *string `json:"preferredLanguage,omitempty"`
}

// Apply validates and copies the request onto u. The phone number is immutable.
func (r UpdateProfileRequest) Apply(u *User) error {
	if r.PreferredLanguage != nil {
		if !IsSupportedLanguage(*r.PreferredLanguage) {
			return ErrUnsupportedLanguage
		}
		u.PreferredLanguage = *r.PreferredLanguage
	}
	if r.FarmName != nil {
		u.FarmName = strings.TrimSpace(*r.FarmName)
	}
	if r.FarmerName != nil {
		u.FarmerName = strings.TrimSpace(*r.FarmerName)
	}
	if r.Location != nil {
		u.Location = strings.TrimSpace(*r.Location)
	}
	if r.SyncEnabled != nil {
		u.SyncEnabled = *r.SyncEnabled
	}
	return nil
}

var indianMobile = regexp.MustCompile(`^[6-9]\d{9}$`)

// NormalizePhone strips everything but digits and checks for a ten digit
// Indian mobile number starting with 6-9.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if !indianMobile.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

// MaskPhone hides all but the last four digits
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// GenerateSessionToken returns 32 random bytes hex encoded
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken is the stored form of a session token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type AuthError struct {
	Message string
}

func (e AuthError) Error() string {
	return e.Message
}

// Auth errors. The OTP errors are distinct so callers can tell the failure apart.
var (
	ErrInvalidPhone        = AuthError{"Invalid phone number format"}
	ErrOTPNotFound         = AuthError{"No OTP session found"}
	ErrOTPExpired          = AuthError{"OTP has expired"}
	ErrOTPAlreadyUsed      = AuthError{"OTP already used"}
	ErrTooManyAttempts     = AuthError{"Too many failed attempts"}
	ErrInvalidOTP          = AuthError{"Invalid OTP"}
	ErrOTPDelivery         = AuthError{"Failed to send OTP"}
	ErrNotAuthenticated    = AuthError{"not authenticated"}
	ErrInvalidToken        = AuthError{"invalid or expired session token"}
	ErrUnsupportedLanguage = AuthError{"unsupported language code"}
)
