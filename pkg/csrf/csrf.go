// Package csrf exposes a request's CSRF token to views as parameters and a
// meta tag.
package csrf

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-viewrender/pkg/tags"
)

// ErrTokenNotSet is returned when a render needs a CSRF token but the request
// carries none.
var ErrTokenNotSet = errors.New("csrf: token is not set")

const (
	DefaultParameterName     = "csrf"
	DefaultMetaAttributeName = "csrf"
	DefaultFormParameter     = "_csrf"
	DefaultHeaderName        = "X-CSRF-Token"

	// MetaTagKey deduplicates the CSRF meta tag between injections.
	MetaTagKey = "csrf_meta_tags"
)

type contextKey struct{}

// WithToken stores token on ctx for ContextTokenSource.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

// FromContext returns the token stored by WithToken.
func FromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextKey{}).(string)
	return token, ok && token != ""
}

// TokenSource provides the CSRF token for the current request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// ContextTokenSource reads the token stored with WithToken.
type ContextTokenSource struct{}

// Token implements TokenSource.
func (ContextTokenSource) Token(ctx context.Context) (string, error) {
	if token, ok := FromContext(ctx); ok {
		return token, nil
	}
	return "", ErrTokenNotSet
}

// Token is the value views receive under the parameter name. It prints as
// the raw token.
type Token struct {
	Value         string
	ParameterName string
	HeaderName    string
}

func (t Token) String() string { return t.Value }

// HiddenField returns the form field carrying the token.
func (t Token) HiddenField() HiddenField {
	return Hidden(t.ParameterName, t.Value)
}

// HiddenInput renders the hidden form input carrying the token.
func (t Token) HiddenInput() string {
	return t.HiddenField().Render()
}

// HiddenField is a hidden form input.
type HiddenField struct {
	Name  string
	Value string
}

// Hidden returns a HiddenField with a trimmed name.
func Hidden(name, value string) HiddenField {
	return HiddenField{Name: strings.TrimSpace(name), Value: value}
}

// Render returns the input markup. Fields without a name render nothing.
func (f HiddenField) Render() string {
	if f.Name == "" {
		return ""
	}
	return "<input" + tags.Attributes{"type": "hidden", "name": f.Name, "value": f.Value}.Render() + ">"
}

// Middleware stores a token on every request context. The token is read from
// the cookie named cookieName and issued when absent.
func Middleware(cookieName string) func(http.Handler) http.Handler {
	if strings.TrimSpace(cookieName) == "" {
		cookieName = DefaultFormParameter
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if cookie, err := r.Cookie(cookieName); err == nil {
				token = cookie.Value
			}
			if token == "" {
				generated, err := NewToken()
				if err != nil {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				token = generated
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
		})
	}
}

// NewToken returns 32 random bytes, URL-safe base64 encoded.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
