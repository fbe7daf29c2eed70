package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// CookieName carries the signed cluster id
const CookieName = "cluster"

var (
	ErrTooManyCookies  = errors.New("too many cookies")
	ErrCookieNotFound  = errors.New("could not find cluster cookie")
	ErrCookieSignature = errors.New("malformed cluster cookie (signature verification failure)")
)

// CookieSigner signs and verifies cluster ids with HMAC-SHA256
type CookieSigner struct {
	secret []byte
}

func NewCookieSigner(secret string) *CookieSigner {
	return &CookieSigner{secret: []byte(secret)}
}

// Sign returns "<clusterID>.<unpadded base64 signature>"
func (s *CookieSigner) Sign(clusterID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(clusterID))
	return clusterID + "." + base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks a raw Cookie header and returns the cluster id it carries.
// Exactly one cookie, named CookieName, is accepted.
func (s *CookieSigner) Verify(cookieHeader string) (string, error) {
	cookies := strings.Split(cookieHeader, ";")
	if len(cookies) != 1 {
		return "", ErrTooManyCookies
	}

	name, value, _ := strings.Cut(strings.TrimSpace(cookies[0]), "=")
	if name != CookieName {
		return "", ErrCookieNotFound
	}

	clusterID, _, _ := strings.Cut(value, ".")
	if clusterID == "" || !hmac.Equal([]byte(value), []byte(s.Sign(clusterID))) {
		return "", ErrCookieSignature
	}
	return clusterID, nil
}

// SetCookieHeader renders the Set-Cookie value for clusterID.
// Secure is only set outside development, where the UI is served over https.
func (s *CookieSigner) SetCookieHeader(clusterID, domain string, development bool) string {
	parts := []string{CookieName + "=" + s.Sign(clusterID)}
	if development {
		parts = append(parts, "Domain=localhost")
	} else {
		parts = append(parts, "Domain="+domain)
	}
	parts = append(parts, "Path=/", "HttpOnly")
	if !development {
		parts = append(parts, "Secure")
	}
	return strings.Join(parts, "; ")
}
