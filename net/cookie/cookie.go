// Package cookie manages the owner token cookie used to tie anonymous
// enqueuers to the jobs they created.
package cookie

import (
	"net/http"
	"strings"

	"github.com/ncobase/spacearc/nanoid"
)

// OwnerTokenName is the cookie carrying the anonymous owner token.
const OwnerTokenName = "owner_token"

// OwnerTokenMaxAge keeps the token for 180 days.
const OwnerTokenMaxAge = 60 * 60 * 24 * 180

// formatDomain formats the domain
func formatDomain(domain string) string {
	if domain != "localhost" && !strings.HasPrefix(domain, ".") {
		return "." + domain
	}
	return domain
}

// SetOwnerToken sets the owner token cookie
func SetOwnerToken(w http.ResponseWriter, token string, domain ...string) {
	cookie := &http.Cookie{
		Name:     OwnerTokenName,
		Value:    token,
		MaxAge:   OwnerTokenMaxAge,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	if len(domain) > 0 && domain[0] != "" {
		cookie.Domain = formatDomain(domain[0])
	}

	http.SetCookie(w, cookie)
}

// GetOwnerToken gets the owner token from the request cookie
func GetOwnerToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(OwnerTokenName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// EnsureOwnerToken returns the request's owner token, issuing and setting
// a fresh one when the cookie is missing or malformed.
func EnsureOwnerToken(w http.ResponseWriter, r *http.Request, domain ...string) string {
	token, err := GetOwnerToken(r)
	if err == nil && nanoid.IsOwnerToken(token) {
		return token
	}

	token = nanoid.OwnerToken()
	SetOwnerToken(w, token, domain...)
	return token
}

// ClearOwnerToken clears the owner token cookie
func ClearOwnerToken(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     OwnerTokenName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
	})
}
