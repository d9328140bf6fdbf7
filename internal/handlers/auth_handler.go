package handlers

import (
	"net/http"

	"github.com/cattlebreed/server/internal/middleware"
	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/services"
)

// AuthHandler exposes the OTP login flow
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// SendOTP handles code requests
// @Summary Send OTP
// @Description Sends a 6-digit code to a 10 digit Indian mobile number. Any pending code for the number is replaced.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.SendOTPRequest true "Phone number"
// @Success 200 {object} models.SendOTPResponse
// @Failure 400 {object} models.ErrorResponse "Invalid phone number format"
// @Failure 502 {object} models.ErrorResponse "Code could not be delivered"
// @Router /api/auth/otp/send [post]
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.SendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	resp, err := h.auth.SendOTP(r.Context(), req.PhoneNumber)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// VerifyOTP handles code verification
// @Summary Verify OTP
// @Description Verifies the code and signs the user in. The returned token is sent as "Authorization: Bearer <token>".
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.VerifyOTPRequest true "Phone number and code"
// @Success 200 {object} models.LoginResponse
// @Failure 401 {object} models.ErrorResponse "Invalid OTP"
// @Failure 404 {object} models.ErrorResponse "No OTP session found"
// @Failure 409 {object} models.ErrorResponse "OTP already used"
// @Failure 410 {object} models.ErrorResponse "OTP has expired"
// @Failure 429 {object} models.ErrorResponse "Too many failed attempts"
// @Router /api/auth/otp/verify [post]
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	result, err := h.auth.VerifyOTP(r.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.LoginResponse{
		Success: true,
		Message: "Login successful",
		Data: &models.AuthData{
			Token:       result.Token,
			User:        result.User.ToApiUser(),
			Permissions: models.FarmerPermissions,
		},
	})
}

// Guest switches to guest mode
// @Summary Continue as guest
// @Tags auth
// @Produce json
// @Success 200 {object} models.AuthState
// @Router /api/auth/guest [post]
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SetGuestMode(r.Context()); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.auth.State())
}

// SignOut ends the session
// @Summary Sign out
// @Tags auth
// @Produce json
// @Success 200 {object} models.AuthState
// @Router /api/auth/signout [post]
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context()); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.auth.State())
}

// State returns the login state
// @Summary Current auth state
// @Tags auth
// @Produce json
// @Success 200 {object} models.AuthState
// @Router /api/auth/state [get]
func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.auth.State())
}

// Me returns the signed-in user
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		respondDomainError(w, r, models.ErrNotAuthenticated)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateMe edits the signed-in user's profile
// @Summary Update profile
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.UpdateProfileRequest true "Fields to change"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/auth/me [put]
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Languages lists the supported languages with the current one selected
// @Summary Supported languages
// @Tags settings
// @Produce json
// @Success 200 {array} models.LanguageOption
// @Router /api/languages [get]
func (h *AuthHandler) Languages(w http.ResponseWriter, r *http.Request) {
	code, err := h.auth.Language(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.LanguageOptions(code))
}

// SetLanguage stores the preferred language
// @Summary Set language
// @Tags settings
// @Accept json
// @Produce json
// @Param request body models.SetLanguageRequest true "Language code"
// @Success 200 {array} models.LanguageOption
// @Failure 400 {object} models.ErrorResponse "unsupported language code"
// @Router /api/settings/language [put]
func (h *AuthHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req models.SetLanguageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.auth.SetLanguage(r.Context(), req.Code); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.LanguageOptions(req.Code))
}
