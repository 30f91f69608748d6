package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/store"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := auth.ValidateRegister(auth.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		a.writeMessage(w, http.StatusBadRequest, "Invalid registration details: "+err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.log.Error("password hashing failed", "error", err)
		a.writeMessage(w, http.StatusInternalServerError, "An error occurred during registration")
		return
	}

	user, err := a.users.Create(r.Context(), req.Username, req.Email, hash)
	if errors.Is(err, store.ErrDuplicate) {
		a.writeMessage(w, http.StatusBadRequest, "Username or email is already taken")
		return
	}
	if err != nil {
		a.log.Error("user creation failed", "error", err)
		a.writeMessage(w, http.StatusInternalServerError, "An error occurred during registration")
		return
	}

	a.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user": map[string]string{
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := a.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		// Deliberately indistinguishable from a wrong password.
		a.writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		a.writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if err := a.users.SetActive(r.Context(), user.ID, true); err != nil {
		a.log.Warn("failed to mark user active", "user_id", user.ID, "error", err)
	}

	accessToken, err := a.validator.Generate(user.ID, user.Username)
	if err != nil {
		a.log.Error("access token generation failed", "user_id", user.ID, "error", err)
		a.writeMessage(w, http.StatusInternalServerError, "An error occurred during login")
		return
	}

	refreshToken := fmt.Sprintf("%d-%s", user.ID, uuid.NewString())
	expiresAt := time.Now().Add(a.refreshTTL)
	if err := a.tokens.Save(r.Context(), user.ID, refreshToken, expiresAt); err != nil {
		a.log.Error("refresh token storage failed", "user_id", user.ID, "error", err)
		a.writeMessage(w, http.StatusInternalServerError, "An error occurred during login")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		a.writeMessage(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	deleted, err := a.tokens.Delete(r.Context(), req.RefreshToken)
	if err != nil {
		a.log.Error("refresh token revocation failed", "error", err)
		a.writeMessage(w, http.StatusInternalServerError, "An error occurred during logout")
		return
	}
	if !deleted {
		a.writeMessage(w, http.StatusBadRequest, "Failed to log out")
		return
	}
	a.writeMessage(w, http.StatusOK, "Logged out successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh exchanges a stored refresh token for a new access token. The
// owning user ID is the numeric prefix of the token itself, so the lookup
// verifies ownership and expiry in one query.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		a.writeMessage(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	idPart, _, found := strings.Cut(req.RefreshToken, "-")
	userID, err := strconv.ParseInt(idPart, 10, 64)
	if !found || err != nil {
		a.writeMessage(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	valid, err := a.tokens.Verify(r.Context(), req.RefreshToken, userID)
	if err != nil {
		a.log.Error("refresh token verification failed", "error", err)
		a.writeMessage(w, http.StatusInternalServerError, "An error occurred. Please try again later")
		return
	}
	if !valid {
		a.writeMessage(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	user, err := a.users.GetByID(r.Context(), userID)
	if err != nil {
		a.writeMessage(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	if err := a.users.TouchLastSeen(r.Context(), user.ID); err != nil {
		a.log.Warn("failed to update last seen", "user_id", user.ID, "error", err)
	}

	accessToken, err := a.validator.Generate(user.ID, user.Username)
	if err != nil {
		a.log.Error("access token generation failed", "user_id", user.ID, "error", err)
		a.writeMessage(w, http.StatusInternalServerError, "An error occurred. Please try again later")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		a.writeMessage(w, http.StatusBadRequest, "Email is required")
		return
	}

	user, err := a.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		a.writeMessage(w, http.StatusBadRequest, "Email address not found")
		return
	}

	token, err := a.validator.GenerateResetToken(user.Email, a.resetTTL)
	if err != nil {
		a.log.Error("reset token generation failed", "error", err)
		a.writeMessage(w, http.StatusInternalServerError, "An error occurred. Please try again later")
		return
	}

	resetURL := a.resetURLBase + "/" + token
	if err := a.mailer.SendPasswordReset(user.Email, user.Username, resetURL); err != nil {
		a.log.Error("password reset email failed", "error", err)
		a.writeMessage(w, http.StatusBadRequest, "Failed to send password reset email")
		return
	}

	a.writeMessage(w, http.StatusOK, "Password reset email sent successfully")
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil || req.NewPassword == "" {
		a.writeMessage(w, http.StatusBadRequest, "New password is required")
		return
	}

	email, err := a.validator.ValidateResetToken(chi.URLParam(r, "token"))
	if err != nil {
		a.writeMessage(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}

	user, err := a.users.GetByEmail(r.Context(), email)
	if err != nil {
		a.writeMessage(w, http.StatusBadRequest, "Invalid token or user not found")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		a.log.Error("password hashing failed", "error", err)
		a.writeMessage(w, http.StatusInternalServerError, "An error occurred. Please try again later")
		return
	}

	if err := a.users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		a.log.Error("password update failed", "user_id", user.ID, "error", err)
		a.writeMessage(w, http.StatusInternalServerError, "An error occurred. Please try again later")
		return
	}

	a.writeMessage(w, http.StatusOK, "Password reset successfully")
}
