package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"bananaforge/internal/infra/credentials"
)

type setTokenRequest struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

// SetToken stores a provider credential so it can be rotated at runtime.
func (a *App) SetToken(w http.ResponseWriter, r *http.Request) {
	var req setTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch strings.TrimSpace(req.Provider) {
	case credentials.ProviderReplicate, credentials.ProviderOpenAI:
	default:
		a.error(w, http.StatusBadRequest, "unknown provider")
		return
	}

	if err := a.Tokens.SetToken(r.Context(), req.Provider, req.Token); err != nil {
		if strings.TrimSpace(req.Token) == "" {
			a.error(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Logger.Error().Err(err).Str("provider", req.Provider).Msg("failed to store token")
		a.error(w, http.StatusInternalServerError, "failed to store token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
