package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cattlebreed/server/internal/config"
	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/observability"
	"golang.org/x/oauth2/clientcredentials"
)

// OTPSender delivers a one-time code to a phone number
type OTPSender interface {
	Send(ctx context.Context, phone, code string) error
	Channel() string
}

// NewOTPSender picks the SMS gateway when one is configured, the log otherwise.
// expiry is the code lifetime quoted in the message.
func NewOTPSender(cfg config.SMS, expiry time.Duration) OTPSender {
	if cfg.Enabled() {
		return NewSMSGatewaySender(cfg, expiry)
	}
	return LogOTPSender{}
}

// LogOTPSender writes codes to the log. Development only.
type LogOTPSender struct{}

func (LogOTPSender) Channel() string { return "log" }

func (LogOTPSender) Send(ctx context.Context, phone, code string) error {
	observability.WithContext(ctx).
		WithField("phone", models.MaskPhone(phone)).
		WithField("otp", code).
		Info("OTP generated (no SMS gateway configured)")
	return nil
}

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	Sender  string `json:"sender,omitempty"`
}

// SMSGatewaySender posts codes to an HTTP SMS gateway. When a token URL is set
// requests carry an OAuth2 client-credentials bearer token.
type SMSGatewaySender struct {
	gatewayURL string
	senderID   string
	expiry     time.Duration
	httpClient *http.Client
}

// NewSMSGatewaySender creates a sender for cfg
func NewSMSGatewaySender(cfg config.SMS, expiry time.Duration) *SMSGatewaySender {
	if expiry <= 0 {
		expiry = defaultOTPExpiry
	}
	client := &http.Client{Timeout: 15 * time.Second}
	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = cc.Client(context.Background())
		client.Timeout = 15 * time.Second
	}
	return &SMSGatewaySender{
		gatewayURL: cfg.GatewayURL,
		senderID:   cfg.SenderID,
		expiry:     expiry,
		httpClient: client,
	}
}

func (s *SMSGatewaySender) Channel() string { return "sms" }

func (s *SMSGatewaySender) Send(ctx context.Context, phone, code string) error {
	body, err := json.Marshal(smsRequest{
		To:      "+91" + phone,
		Message: fmt.Sprintf("Your Cattle Breed verification code is %s. It expires in %s.", code, expiryText(s.expiry)),
		Sender:  s.senderID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("SMS gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// expiryText renders d as "5 minutes", "1 minute" or "90 seconds"
func expiryText(d time.Duration) string {
	if d%time.Minute != 0 {
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
	if m := int(d / time.Minute); m != 1 {
		return fmt.Sprintf("%d minutes", m)
	}
	return "1 minute"
}
