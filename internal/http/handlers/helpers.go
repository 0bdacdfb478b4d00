package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"admissions/internal/access"
	"admissions/internal/common"
	"admissions/internal/domain/user"
	"admissions/internal/http/middleware"
	"admissions/internal/http/response"
)

func errUnauthorized() error {
	return common.NewError(common.CodeUnauthorized, "authentification requise", nil)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return common.NewValidationError("corps de requête manquant", nil)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return common.NewValidationError("corps de requête trop volumineux", nil)
		case errors.Is(err, io.EOF):
			return common.NewValidationError("corps de requête manquant", nil)
		default:
			return common.NewValidationError("JSON invalide", nil)
		}
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return decodeJSON(r, dst)
}

func idParam(r *http.Request, name string) (common.UUID, error) {
	id, err := common.ParseUUID(chi.URLParam(r, name))
	if err != nil {
		return "", common.NewValidationError("identifiant invalide", map[string]string{name: "doit être un UUID"})
	}
	return id, nil
}

// withActor resolves the authenticated actor and writes 401 when absent.
func withActor(w http.ResponseWriter, r *http.Request) (access.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized())
	}
	return actor, ok
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewValidationError("paramètre invalide", map[string]string{key: "doit être un entier"})
	}
	return value, nil
}

func queryBool(r *http.Request, key string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, common.NewValidationError("paramètre invalide", map[string]string{key: "doit être un booléen"})
	}
	return &value, nil
}

func queryUUID(r *http.Request, key string) (common.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", nil
	}
	id, err := common.ParseUUID(raw)
	if err != nil {
		return "", common.NewValidationError("paramètre invalide", map[string]string{key: "doit être un UUID"})
	}
	return id, nil
}

func parseIDs(values []string, field string) ([]common.UUID, error) {
	if values == nil {
		return nil, nil
	}
	ids := make([]common.UUID, 0, len(values))
	for _, value := range values {
		id, err := common.ParseUUID(value)
		if err != nil {
			return nil, common.NewValidationError("identifiant invalide", map[string]string{field: "doit contenir des UUID"})
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseOptionalDate parses a YYYY-MM-DD or RFC3339 value under field.
func parseOptionalDate(value *string, field string, fields map[string]string) *time.Time {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	parsed, err := user.ParseDate(*value)
	if err != nil {
		fields[field] = "date invalide"
		return nil
	}
	return &parsed
}

func requiredDate(value *string, field string, fields map[string]string) time.Time {
	parsed := parseOptionalDate(value, field, fields)
	if parsed == nil {
		if _, bad := fields[field]; !bad {
			fields[field] = "requis"
		}
		return time.Time{}
	}
	return *parsed
}

func invalidFields(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return common.NewValidationError("données invalides", fields)
}
