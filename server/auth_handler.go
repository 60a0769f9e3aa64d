package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"pulsefm/core/auth"
	"pulsefm/logger"
	"pulsefm/model"

	"github.com/google/uuid"
)

// TokenRequest is the token issuance request body. Listener tokens need
// only a name; dj and moderator tokens additionally need the station
// secret.
type TokenRequest struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Secret string `json:"secret"`
}

// TokenHandler issues a role-bearing access token. The privileged roles
// are gated on a bcrypt check against the configured station secret.
func (h *APIHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	role := req.Role
	switch role {
	case "", model.RoleListener:
		role = model.RoleListener
	case model.RoleDJ, model.RoleModerator:
		if h.cfg.DJSecret == "" {
			logger.Warn("privileged token refused, no station secret configured",
				logger.String("name", req.Name))
			writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"error": "privileged roles are not enabled on this station",
				"code":  http.StatusForbidden,
			})
			return
		}
		if !auth.CheckPasswordHash(req.Secret, h.cfg.DJSecret) {
			logger.Warn("privileged token refused, bad secret",
				logger.String("name", req.Name),
				logger.String("role", role))
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error": "invalid station secret",
				"code":  http.StatusUnauthorized,
			})
			return
		}
	default:
		writeBadRequest(w, "role must be listener, dj or moderator")
		return
	}

	clientID := uuid.NewString()
	token, err := auth.GenerateToken(h.cfg.JWTSecret, clientID, req.Name, role)
	if err != nil {
		writeRejection(w, err)
		return
	}

	logger.Info("token issued",
		logger.String("name", req.Name),
		logger.String("role", role),
		logger.String("clientId", clientID))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":    token,
		"clientId": clientID,
		"name":     req.Name,
		"role":     role,
	})
}

// roleFromRequest reads the caller's role from a bearer token. Missing
// or invalid tokens mean listener, the role with no privileges.
func (h *APIHandler) roleFromRequest(r *http.Request) string {
	claims := h.claimsFromRequest(r)
	if claims == nil {
		return model.RoleListener
	}
	return claims.Role
}

// claimsFromRequest parses the bearer token, nil when absent or bad.
func (h *APIHandler) claimsFromRequest(r *http.Request) *auth.Claims {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil
	}
	return h.claimsFromToken(parts[1])
}

// claimsFromToken parses a raw token string, nil when invalid.
func (h *APIHandler) claimsFromToken(token string) *auth.Claims {
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		logger.Debug("token rejected", logger.ErrorField(err))
		return nil
	}
	return claims
}
