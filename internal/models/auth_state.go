package models

// AuthStatus names the states of the login flow
type AuthStatus string

const (
	AuthUnauthenticated AuthStatus = "unauthenticated"
	AuthOTPPending      AuthStatus = "otp_pending"
	AuthAuthenticated   AuthStatus = "authenticated"
	AuthGuest           AuthStatus = "guest"
)

// AuthState is a snapshot of the login flow. Phone fields are set only while
// an OTP is pending and User only when authenticated.
type AuthState struct {
	Status      AuthStatus `json:"status"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	MaskedPhone string     `json:"maskedPhone,omitempty"`
	User        *User      `json:"user,omitempty"`
}

func UnauthenticatedState() AuthState {
	return AuthState{Status: AuthUnauthenticated}
}

func GuestState() AuthState {
	return AuthState{Status: AuthGuest}
}

func OTPPendingState(phone string) AuthState {
	return AuthState{Status: AuthOTPPending, PhoneNumber: phone, MaskedPhone: MaskPhone(phone)}
}

func AuthenticatedState(u *User) AuthState {
	return AuthState{Status: AuthAuthenticated, User: u}
}

// SendOTPRequest asks for a code to be delivered to PhoneNumber
type SendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// SendOTPResponse confirms delivery to the masked number
type SendOTPResponse struct {
	Message     string `json:"message"`
	MaskedPhone string `json:"maskedPhone"`
	ExpiresIn   int    `json:"expiresInSeconds"`
}

// VerifyOTPRequest submits a code for a phone number
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
	DeviceID    string `json:"deviceId,omitempty"`
	AppVersion  string `json:"appVersion,omitempty"`
}

// LoginResult is what a successful verification yields
type LoginResult struct {
	Token string
	User  *User
}
