package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the only cookie this service sets.
const CookieName = "storefront_session"

const cookieTTL = 7 * 24 * time.Hour

// CookieCodec signs and verifies the session cookie. The cookie carries
// nothing but the session id; all state stays server-side.
type CookieCodec struct {
	Secret []byte
}

func (cc *CookieCodec) Sign(sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"sid": sessionID,
		"exp": time.Now().Add(cookieTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(cc.Secret)
}

func (cc *CookieCodec) Parse(value string) (string, error) {
	t, err := jwt.Parse(value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return cc.Secret, nil
	})
	if err != nil || !t.Valid {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("cannot parse claims")
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("session cookie missing sid")
	}
	return sid, nil
}

// UserIDFromToken lifts the subject claim out of an upstream token when the
// token happens to be a JWT. The signature is deliberately not verified:
// the token is opaque to us and validated only by the upstream API. Returns
// 0 when nothing can be read, which downstream treats as an absent user.
func UserIDFromToken(token string) int {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return 0
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0
	}
	if sub, ok := claims["sub"].(float64); ok {
		return int(sub)
	}
	return 0
}

func CreateCookie(name, value, path string, expTime time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
