package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// OTPSession is a pending one-time password for one phone number. It lives in
// memory only and the code itself is never kept, just its bcrypt hash.
type OTPSession struct {
	PhoneNumber string
	CodeHash    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Attempts    int
	Used        bool
}

// NewOTPSession creates a session and returns it with the plain code to deliver
func NewOTPSession(phone string, now time.Time, ttl time.Duration) (*OTPSession, string, error) {
	code, err := GenerateOTPCode()
	if err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash code: %w", err)
	}

	return &OTPSession{
		PhoneNumber: phone,
		CodeHash:    string(hash),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, code, nil
}

// Matches compares code against the stored hash in constant time
func (s *OTPSession) Matches(code string) bool {
	if s.CodeHash == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.CodeHash), []byte(code)) == nil
}

func (s *OTPSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Exhausted reports whether maxAttempts codes have already been compared
func (s *OTPSession) Exhausted(maxAttempts int) bool {
	return s.Attempts >= maxAttempts
}

func (s *OTPSession) RecordAttempt() {
	s.Attempts++
}

func (s *OTPSession) MarkUsed() {
	s.Used = true
}

// GenerateOTPCode returns a uniformly random 6-digit code
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
