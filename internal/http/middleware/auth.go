package middleware

import (
	"context"
	"net/http"
	"strings"

	"admissions/internal/access"
	"admissions/internal/common"
	"admissions/internal/domain/user"
	"admissions/internal/http/response"
	"admissions/internal/security"
)

type contextKey string

const (
	ContextActorKey contextKey = "actor"
	ContextEmailKey contextKey = "email"
)

type AuthMiddleware struct {
	jwt *security.JWTProvider
}

func NewAuthMiddleware(jwt *security.JWTProvider) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, common.NewError(common.CodeUnauthorized, "en-tête d'autorisation manquant", nil))
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Error(w, common.NewError(common.CodeUnauthorized, "en-tête d'autorisation invalide", nil))
			return
		}
		claims, err := m.jwt.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(w, common.NewError(common.CodeUnauthorized, "jeton invalide", err))
			return
		}
		userID, err := common.ParseUUID(claims.Sub)
		if err != nil {
			response.Error(w, common.NewError(common.CodeUnauthorized, "identifiant utilisateur invalide", err))
			return
		}
		if !claims.Role.IsKnown() {
			response.Error(w, common.NewError(common.CodeUnauthorized, "rôle inconnu", nil))
			return
		}
		ctx := context.WithValue(r.Context(), ContextActorKey, access.Actor{ID: userID, Role: claims.Role})
		ctx = context.WithValue(ctx, ContextEmailKey, claims.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets the request through when the authenticated actor holds
// one of roles.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				response.Error(w, common.NewError(common.CodeUnauthorized, "authentification requise", nil))
				return
			}
			if !actor.Is(roles...) {
				response.Error(w, common.NewError(common.CodeForbidden, "rôle insuffisant", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ActorFromContext(ctx context.Context) (access.Actor, bool) {
	actor, ok := ctx.Value(ContextActorKey).(access.Actor)
	return actor, ok
}

// WithActor is used by tests and internal callers that bypass the JWT.
func WithActor(ctx context.Context, actor access.Actor) context.Context {
	return context.WithValue(ctx, ContextActorKey, actor)
}
