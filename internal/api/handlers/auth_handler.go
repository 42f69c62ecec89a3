package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apierrors "crmhooks/internal/pkg/errors"
	"crmhooks/internal/pkg/validator"
	"crmhooks/internal/platform/auth"
	"crmhooks/internal/platform/config"
)

type AuthHandler struct {
	admin    config.AdminConfig
	tokenSvc *auth.TokenService
}

func NewAuthHandler(admin config.AdminConfig, tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{admin: admin, tokenSvc: tokenSvc}
}

type TokenRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := validator.DecodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := auth.CheckAdmin(h.admin, req.Email, req.Password); err != nil {
		log.Warn().Str("email", req.Email).Msg("rejected admin login")
		apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrCodeUnauthorized, "Invalid credentials", nil)
		return
	}

	token, expiresAt, err := h.tokenSvc.GenerateAccessToken(req.Email, "admin")
	if err != nil {
		log.Error().Err(err).Msg("failed to sign access token")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Failed to generate token", nil)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.Truncate(time.Second).Unix(),
	})
}
