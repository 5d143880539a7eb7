// Package session keeps per-visitor state in a cache store, keyed by an id
// carried in a signed cookie.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/karloscodes/lodge/cache"
	"github.com/karloscodes/lodge/crypto"
)

// Options configure sessions.
type Options struct {
	// CookieName defaults to "lodge_session".
	CookieName string
	// Secret signs the cookie. An empty secret sends the bare id.
	Secret   string
	TTL      time.Duration
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite string
	// Prefix namespaces the store keys.
	Prefix string
	// Encrypt seals the stored data with a key derived from Secret.
	Encrypt bool
}

// DefaultOptions returns the defaults: a 24 hour, HTTP-only, Lax cookie.
func DefaultOptions() Options {
	return Options{
		CookieName: "lodge_session",
		TTL:        24 * time.Hour,
		Path:       "/",
		HTTPOnly:   true,
		SameSite:   fiber.CookieSameSiteLaxMode,
		Prefix:     "session:",
	}
}

// OptionsFrom reads a configuration map such as session.options.
func OptionsFrom(m map[string]any) Options {
	o := DefaultOptions()
	if v, ok := m["cookie"]; ok {
		o.CookieName = cast.ToString(v)
	}
	if v, ok := m["secret"]; ok {
		o.Secret = cast.ToString(v)
	}
	if v, ok := m["ttl"]; ok {
		switch v.(type) {
		case string:
			o.TTL = cast.ToDuration(v)
		default:
			o.TTL = time.Duration(cast.ToInt64(v)) * time.Second
		}
	}
	if v, ok := m["path"]; ok {
		o.Path = cast.ToString(v)
	}
	if v, ok := m["domain"]; ok {
		o.Domain = cast.ToString(v)
	}
	if v, ok := m["secure"]; ok {
		o.Secure = cast.ToBool(v)
	}
	if v, ok := m["httpOnly"]; ok {
		o.HTTPOnly = cast.ToBool(v)
	}
	if v, ok := m["sameSite"]; ok {
		o.SameSite = cast.ToString(v)
	}
	if v, ok := m["prefix"]; ok {
		o.Prefix = cast.ToString(v)
	}
	if v, ok := m["encrypt"]; ok {
		o.Encrypt = cast.ToBool(v)
	}
	return o
}

// Session is one visitor's data. It is not safe for concurrent use; each
// request loads its own.
type Session struct {
	store cache.Store
	opts  Options
	key   []byte

	id        string
	data      map[string]any
	isNew     bool
	dirty     bool
	destroyed bool
	previous  string
}

// Load returns the session named by the signed cookie value token. A
// missing, forged or expired token starts a new session.
func Load(ctx context.Context, store cache.Store, token string, opts Options) (*Session, error) {
	s := &Session{store: store, opts: opts, data: map[string]any{}}
	if opts.Encrypt {
		key, err := crypto.DeriveKey(opts.Secret, "session.encrypt")
		if err != nil {
			return nil, fmt.Errorf("session: encryption key: %w", err)
		}
		s.key = key
	}

	id, ok := s.verify(token)
	if !ok {
		s.id, s.isNew = uuid.NewString(), true
		return s, nil
	}

	raw, found := store.Read(ctx, s.storeKey(id))
	if found && s.key != nil {
		// Data sealed under a rotated secret is dropped like an expired entry.
		raw, found = s.open(raw)
	}
	if !found {
		s.id, s.isNew = uuid.NewString(), true
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	s.id = id
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool { return s.isNew }

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

// String returns the value under key as a string.
func (s *Session) String(key string) string { return cast.ToString(s.data[key]) }

// Set stores value under key. Values must encode to JSON.
func (s *Session) Set(key string, value any) {
	s.data[key] = value
	s.dirty = true
}

// Delete removes key.
func (s *Session) Delete(key string) {
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.dirty = true
	}
}

// All returns a copy of the data.
func (s *Session) All() map[string]any {
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Clear removes every key.
func (s *Session) Clear() {
	if len(s.data) > 0 {
		s.data = map[string]any{}
		s.dirty = true
	}
}

// Flash returns the value under key and removes it.
func (s *Session) Flash(key string) (any, bool) {
	v, ok := s.data[key]
	if ok {
		s.Delete(key)
	}
	return v, ok
}

// Regenerate moves the data to a fresh id. The old entry is deleted on
// Commit.
func (s *Session) Regenerate() {
	if !s.isNew && s.previous == "" {
		s.previous = s.id
	}
	s.id = uuid.NewString()
	s.dirty = true
}

// Destroy forgets the data; Commit deletes the entry and expires the cookie.
func (s *Session) Destroy() {
	s.data = map[string]any{}
	s.destroyed = true
}

// Commit persists the session when it changed. A new session that never
// received data is not stored.
func (s *Session) Commit(ctx context.Context) error {
	if s.previous != "" {
		if err := s.store.Delete(ctx, s.storeKey(s.previous)); err != nil {
			return fmt.Errorf("session: delete %s: %w", s.previous, err)
		}
		s.previous = ""
	}

	if s.destroyed {
		if err := s.store.Delete(ctx, s.storeKey(s.id)); err != nil {
			return fmt.Errorf("session: delete %s: %w", s.id, err)
		}
		return nil
	}
	if !s.dirty {
		return nil
	}

	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", s.id, err)
	}
	if s.key != nil {
		if raw, err = crypto.Seal(raw, s.key); err != nil {
			return fmt.Errorf("session: seal %s: %w", s.id, err)
		}
	}
	if err := s.store.WriteWithTTL(ctx, s.storeKey(s.id), raw, s.opts.TTL); err != nil {
		return fmt.Errorf("session: write %s: %w", s.id, err)
	}
	s.dirty = false
	return nil
}

// Cookie returns the cookie to send back, or nil when nothing needs to be
// sent.
func (s *Session) Cookie() *fiber.Cookie {
	c := &fiber.Cookie{
		Name:     s.opts.CookieName,
		Path:     s.opts.Path,
		Domain:   s.opts.Domain,
		Secure:   s.opts.Secure,
		HTTPOnly: s.opts.HTTPOnly,
		SameSite: s.opts.SameSite,
	}

	switch {
	case s.destroyed:
		c.MaxAge = -1
		c.Expires = time.Now().Add(-24 * time.Hour)
	case s.isNew && len(s.data) == 0:
		return nil
	default:
		c.Value = s.sign(s.id)
		c.MaxAge = int(s.opts.TTL.Seconds())
		c.Expires = time.Now().Add(s.opts.TTL)
	}
	return c
}

func (s *Session) storeKey(id string) string { return s.opts.Prefix + id }

func (s *Session) open(raw []byte) ([]byte, bool) {
	plain, err := crypto.Open(raw, s.key)
	if err != nil {
		return nil, false
	}
	return plain, true
}

func (s *Session) sign(id string) string {
	if s.opts.Secret == "" {
		return id
	}
	return id + "." + base64.RawURLEncoding.EncodeToString(s.mac(id))
}

func (s *Session) verify(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	id, sig, signed := strings.Cut(token, ".")
	if s.opts.Secret != "" {
		if !signed {
			return "", false
		}
		got, err := base64.RawURLEncoding.DecodeString(sig)
		if err != nil || !hmac.Equal(got, s.mac(id)) {
			return "", false
		}
	} else if signed {
		return "", false
	}

	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func (s *Session) mac(id string) []byte {
	m := hmac.New(sha256.New, []byte(s.opts.Secret))
	m.Write([]byte(id))
	return m.Sum(nil)
}
