package web

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize    = 32 // AES-256
	pbkdf2Iter = 100000

	accessMaxAge  = 24 * time.Hour
	refreshMaxAge = 30 * 24 * time.Hour
	stateMaxAge   = 10 * time.Minute

	stateCookie = "crossfade_oauth_state"
)

// the key must survive restarts, so the salt is fixed and the secret carries the entropy
var cookieSalt = []byte("crossfade/session-cookies/v1")

var errBadCookie = errors.New("cookie rejected")

// Sealer encrypts cookie values with AES-GCM under a key derived from the configured cookie secret.
//
// The cookie name is bound as additional data, so a value sealed for one cookie cannot be replayed
// under another.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the cookie key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("cookie secret is empty")
	}

	key := pbkdf2.Key([]byte(secret), cookieSalt, pbkdf2Iter, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: gcm}, nil
}

// Seal encrypts value for the cookie called name.
func (s *Sealer) Seal(name, value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), []byte(name))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value sealed for the cookie called name.
func (s *Sealer) Open(name, sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadCookie, err)
	}

	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", fmt.Errorf("%w: too short", errBadCookie)
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], []byte(name))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadCookie, err)
	}
	return string(plain), nil
}

func accessCookie(p models.Platform) string  { return string(p) + "_access_token" }
func refreshCookie(p models.Platform) string { return string(p) + "_refresh_token" }

// accessValue is the sealed payload of an access cookie.
type accessValue struct {
	Token  string    `json:"t"`
	Expiry time.Time `json:"e"`
}

// cookieJar reads and writes the sealed session cookies.
type cookieJar struct {
	sealer *Sealer
	secure bool
}

func (j cookieJar) set(w http.ResponseWriter, name, value string, maxAge time.Duration) error {
	sealed, err := j.sealer.Seal(name, value)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (j cookieJar) get(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	v, err := j.sealer.Open(name, c.Value)
	if err != nil {
		return "", false
	}
	return v, true
}

func (j cookieJar) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// setSession stores s in the platform's access and refresh cookies.
func (j cookieJar) setSession(w http.ResponseWriter, p models.Platform, s *models.AuthSession) error {
	payload, err := json.Marshal(accessValue{Token: s.AccessToken, Expiry: s.Expiry})
	if err != nil {
		return err
	}
	if err := j.set(w, accessCookie(p), string(payload), accessMaxAge); err != nil {
		return err
	}
	if s.RefreshToken != "" {
		return j.set(w, refreshCookie(p), s.RefreshToken, refreshMaxAge)
	}
	return nil
}

// session rebuilds the platform session from its cookies. Cookies that fail to open are ignored.
func (j cookieJar) session(r *http.Request, p models.Platform) *models.AuthSession {
	s := &models.AuthSession{}
	if v, ok := j.get(r, accessCookie(p)); ok {
		var av accessValue
		if json.Unmarshal([]byte(v), &av) == nil {
			s.AccessToken, s.Expiry = av.Token, av.Expiry
		}
	}
	if v, ok := j.get(r, refreshCookie(p)); ok {
		s.RefreshToken = v
	}
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return s
}

func (j cookieJar) sessions(r *http.Request) map[models.Platform]*models.AuthSession {
	out := make(map[models.Platform]*models.AuthSession, len(models.Platforms))
	for _, p := range models.Platforms {
		if s := j.session(r, p); s != nil {
			out[p] = s
		}
	}
	return out
}

func (j cookieJar) clearSession(w http.ResponseWriter, p models.Platform) {
	j.clear(w, accessCookie(p))
	j.clear(w, refreshCookie(p))
}

// setState remembers the platform and CSRF state of a pending authorization.
func (j cookieJar) setState(w http.ResponseWriter, p models.Platform, state string) error {
	return j.set(w, stateCookie, string(p)+":"+state, stateMaxAge)
}

func (j cookieJar) state(r *http.Request) (models.Platform, string, bool) {
	v, ok := j.get(r, stateCookie)
	if !ok {
		return "", "", false
	}
	p, state, found := strings.Cut(v, ":")
	if !found || state == "" {
		return "", "", false
	}
	return models.Platform(p), state, true
}
