package auth

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/transitwatch/transitwatch/pkg/utils"
)

type savedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// PersistentJar wraps a net/http cookie jar and mirrors cookies to a file
// so the HTTP-only session credential survives process restarts, the way a
// browser profile keeps cookies across reloads. Cookie values pass through
// opaquely; nothing outside the transport reads them.
type PersistentJar struct {
	mu    sync.Mutex
	inner http.CookieJar
	path  string
	saved map[string][]savedCookie // keyed by scheme://host
}

// NewPersistentJar creates a jar backed by the given file and loads any
// previously persisted, still-valid cookies into it.
func NewPersistentJar(path string) (*PersistentJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	j := &PersistentJar{
		inner: inner,
		path:  path,
		saved: make(map[string][]savedCookie),
	}

	var persisted map[string][]savedCookie
	if err := utils.ReadJSONFile(path, &persisted); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[AUTH] Ignoring unreadable cookie file %s: %v", path, err)
		}
		return j, nil
	}

	now := time.Now()
	for origin, cookies := range persisted {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		var live []*http.Cookie
		var keep []savedCookie
		for _, c := range cookies {
			if !c.Expires.IsZero() && c.Expires.Before(now) {
				continue
			}
			live = append(live, &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			})
			keep = append(keep, c)
		}
		if len(live) > 0 {
			j.inner.SetCookies(u, live)
			j.saved[origin] = keep
		}
	}

	return j, nil
}

// SetCookies stores cookies for the URL and flushes them to disk
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()

	origin := u.Scheme + "://" + u.Host
	now := time.Now()
	merged := j.saved[origin]

	for _, c := range cookies {
		merged = removeCookie(merged, c.Name)

		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		deleted := c.MaxAge < 0 || (!expires.IsZero() && expires.Before(now))
		if deleted {
			continue
		}

		merged = append(merged, savedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Expires:  expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		})
	}

	if len(merged) == 0 {
		delete(j.saved, origin)
	} else {
		j.saved[origin] = merged
	}
	j.flush()
}

// Cookies returns cookies to send for the URL
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// Clear drops all cookies and removes the backing file. Called on logout.
func (j *PersistentJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	inner, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to reset cookie jar: %w", err)
	}
	j.inner = inner
	j.saved = make(map[string][]savedCookie)

	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cookie file: %w", err)
	}
	return nil
}

func (j *PersistentJar) flush() {
	if err := utils.WriteJSONFile(j.path, j.saved, 0600); err != nil {
		log.Printf("[AUTH] Failed to persist cookies: %v", err)
	}
}

func removeCookie(cookies []savedCookie, name string) []savedCookie {
	out := cookies[:0]
	for _, c := range cookies {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}
