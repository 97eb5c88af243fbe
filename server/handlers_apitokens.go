package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/token"
	"github.com/gigledger/gigledger/token/apitoken"
	"github.com/gigledger/gigledger/token/refresh"
)

type generateAPITokenRequest struct {
	Description string   `json:"description"`
	Scopes      []string `json:"scopes"`
	TTLDays     int      `json:"ttlDays,omitempty"`
	WithRefresh bool     `json:"withRefresh,omitempty"`
}

type apiTokenResponse struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Scopes      []string   `json:"scopes"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	UsageCount  int64      `json:"usageCount"`
	Revoked     bool       `json:"revoked"`
}

type generatedAPITokenResponse struct {
	Token        apiTokenResponse `json:"token"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken,omitempty"`
}

func (s *Server) handleGenerateAPIToken(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	var req generateAPITokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ttl := time.Duration(req.TTLDays) * 24 * time.Hour
	generated, err := s.services.APITokens.Generate(r.Context(), principal.UserID, principal.Email,
		req.Description, req.Scopes, ttl, req.WithRefresh, r.RemoteAddr)
	if err != nil {
		if errors.Is(err, token.ErrInvalidScope) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, err, "api token generate")
		return
	}

	writeJSON(w, http.StatusCreated, generatedAPITokenResponse{
		Token:        toAPITokenResponse(generated.Token),
		AccessToken:  generated.AccessToken,
		RefreshToken: generated.RefreshToken,
	})
}

func (s *Server) handleListAPITokens(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	tokens, err := s.services.APITokens.List(r.Context(), principal.UserID)
	if err != nil {
		s.internalError(w, err, "api token list")
		return
	}

	result := make([]apiTokenResponse, 0, len(tokens))
	for _, t := range tokens {
		result = append(result, toAPITokenResponse(t))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRefreshAPIToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	refreshed, err := s.services.APITokens.Refresh(r.Context(), req.RefreshToken, r.RemoteAddr)
	if err != nil {
		if errors.Is(err, refresh.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.internalError(w, err, "api token refresh")
		return
	}

	writeJSON(w, http.StatusOK, generatedAPITokenResponse{
		Token:        toAPITokenResponse(refreshed.Token),
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
	})
}

func (s *Server) handleRevokeAPIToken(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.services.APITokens.Revoke(r.Context(), id, principal.UserID); err != nil {
		if errors.Is(err, apitoken.ErrTokenNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.internalError(w, err, "api token revoke")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toAPITokenResponse(t *apitoken.APIToken) apiTokenResponse {
	return apiTokenResponse{
		ID:          t.ID,
		Description: t.Description,
		Scopes:      t.Scopes,
		CreatedAt:   t.CreatedAt,
		ExpiresAt:   t.ExpiresAt,
		LastUsedAt:  t.LastUsedAt,
		UsageCount:  t.UsageCount,
		Revoked:     t.Revoked(),
	}
}
