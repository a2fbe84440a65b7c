package httpx

import (
	"crypto/subtle"
	"fmt"
	"net/http"
)

// Credentials are the single username/password pair accepted by BasicAuthMiddleware.
type Credentials struct {
	Username string
	Password string
	Realm    string
}

// Match compares both parts in constant time. Both comparisons always run.
func (c Credentials) Match(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password))
	return userOK&passOK == 1
}

// BasicAuthMiddleware rejects requests without matching HTTP Basic credentials
// with 401 and a Basic challenge.
func BasicAuthMiddleware(creds Credentials) func(http.Handler) http.Handler {
	realm := creds.Realm
	if realm == "" {
		realm = "restricted"
	}
	challenge := fmt.Sprintf("Basic realm=%q", realm)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || !creds.Match(username, password) {
				w.Header().Set("WWW-Authenticate", challenge)
				JSONErrorWithRequest(r, w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
