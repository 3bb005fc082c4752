package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"collegia.org/internal/access"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth authenticates the bearer token and resolves a fresh AuthContext
// for the request. The token only names the subject; role, unit and
// approval state come from the identity store on every call, so revoking or
// demoting an account takes effect immediately.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a.resolver == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := access.ParseAndValidate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		actx, err := a.resolver.Resolve(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, access.ErrUnauthenticated) {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			writeError(w, http.StatusInternalServerError, "authentication error")
			return
		}
		next.ServeHTTP(w, r.WithContext(access.ContextWithAuth(r.Context(), actx)))
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	if !strings.HasPrefix(header, bearer) {
		return "", errors.New("authorization header must use Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearer))
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

// requireAuth pulls the resolved context or fails the request.
func requireAuth(w http.ResponseWriter, r *http.Request) (access.AuthContext, bool) {
	actx, ok := access.AuthFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return access.AuthContext{}, false
	}
	return actx, true
}
