package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/auth"
	"github.com/gigledger/gigledger/token"
	"github.com/gigledger/gigledger/users"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type registerResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.services.Users.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, users.ErrNotFound) {
		s.internalError(w, err, "register lookup")
		return
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		s.internalError(w, err, "register hash")
		return
	}
	user := &users.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateJoined:   time.Now().UTC(),
	}
	if err := s.services.Users.Upsert(r.Context(), user); err != nil {
		s.internalError(w, err, "register upsert")
		return
	}

	// A fresh account has no 2FA yet so login would refuse it. Hand back an
	// access token so the client can go straight into 2FA enrolment.
	signed, claims, err := s.issuer.Issue(user, token.AllScopes())
	if err != nil {
		s.internalError(w, err, "register issue token")
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		ID:              user.ID,
		Email:           user.Email,
		AccessToken:     signed,
		AccessExpiresAt: claims.ExpiresAt.Time,
	})
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TotpCode   string `json:"totpCode,omitempty"`
	BackupCode string `json:"backupCode,omitempty"`
}

type loginErrorResponse struct {
	Error             string `json:"error"`
	RequiresTwoFactor bool   `json:"requiresTwoFactor,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.services.Auth.Login(r.Context(), auth.LoginRequest{
		Email:      req.Email,
		Password:   req.Password,
		TotpCode:   req.TotpCode,
		BackupCode: req.BackupCode,
		IP:         r.RemoteAddr,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTwoFactorRequired):
			writeJSON(w, http.StatusForbidden, loginErrorResponse{
				Error:             "two-factor authentication required",
				RequiresTwoFactor: true,
			})
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidTwoFactorCode):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, auth.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			s.internalError(w, err, "login")
		}
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.services.Auth.Refresh(r.Context(), req.RefreshToken, r.RemoteAddr)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.internalError(w, err, "refresh")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.services.Auth.Logout(r.Context(), req.RefreshToken); err != nil {
		s.internalError(w, err, "logout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setup2FARequest struct {
	RecoveryEmail string `json:"recoveryEmail,omitempty"`
}

func (s *Server) handle2FASetup(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	var req setup2FARequest
	if !decodeJSON(w, r, &req) {
		return
	}

	setup, err := s.services.Auth.Setup2FA(r.Context(), principal.UserID, req.RecoveryEmail)
	if err != nil {
		if errors.Is(err, auth.ErrTwoFactorAlreadyEnabled) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.internalError(w, err, "2fa setup")
		return
	}
	writeJSON(w, http.StatusOK, setup)
}

type codeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handle2FAVerify(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.services.Auth.Verify2FA(r.Context(), principal.UserID, req.Code); err != nil {
		s.write2FAError(w, err, "2fa verify")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handle2FADisable(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.services.Auth.Disable2FA(r.Context(), principal.UserID, req.Code); err != nil {
		s.write2FAError(w, err, "2fa disable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	codes, err := s.services.Auth.RegenerateBackupCodes(r.Context(), principal.UserID, req.Code)
	if err != nil {
		s.write2FAError(w, err, "backup codes regenerate")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"backupCodes": codes})
}

func (s *Server) handleBackupCodesRemaining(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	remaining, err := s.services.Auth.BackupCodesRemaining(r.Context(), principal.UserID)
	if err != nil {
		s.internalError(w, err, "backup codes remaining")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"remaining": remaining})
}

func (s *Server) handleRevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	revoked, err := s.services.Auth.RevokeAllSessions(r.Context(), principal.UserID)
	if err != nil {
		s.internalError(w, err, "revoke all sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": revoked})
}

func (s *Server) write2FAError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, auth.ErrInvalidTwoFactorCode):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrTwoFactorNotEnabled),
		errors.Is(err, auth.ErrTwoFactorSetupNotStarted),
		errors.Is(err, auth.ErrTwoFactorAlreadyEnabled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.internalError(w, err, op)
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error, op string) {
	s.logger.Error().Err(err).Str("op", op).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
