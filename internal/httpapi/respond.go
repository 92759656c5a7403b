package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Filichkin/OnlineShop-sub000/internal/engine"
	"github.com/Filichkin/OnlineShop-sub000/internal/remote"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleEngineError maps engine and remote sentinels to HTTP status codes.
func handleEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidQuantity) || errors.Is(err, engine.ErrInvalidProduct):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, engine.ErrNotFound) || errors.Is(err, remote.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, engine.ErrBusy):
		respondError(w, http.StatusConflict, "busy", err.Error())
	case errors.Is(err, remote.ErrUnauthorized) || errors.Is(err, engine.ErrNoCredential):
		respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		respondError(w, http.StatusBadGateway, "upstream_error", err.Error())
	}
}
