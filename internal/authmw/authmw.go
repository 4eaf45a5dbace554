// Package authmw provides HTTP middleware that resolves bearer tokens to
// actors from a principals file.
package authmw

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/confide/internal/message"
)

const minTokenLen = 16

// Principal is one entry of the principals file.
type Principal struct {
	ID    string       `yaml:"id"`
	Name  string       `yaml:"name"`
	Role  message.Role `yaml:"role"`
	Token string       `yaml:"token"`
}

type principalsFile struct {
	Principals []Principal `yaml:"principals"`
}

// Directory maps bearer tokens to actors.
type Directory struct {
	principals []Principal
}

// LoadPrincipals reads and validates a YAML principals file.
func LoadPrincipals(path string) (*Directory, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator config
	if err != nil {
		return nil, fmt.Errorf("read principals: %w", err)
	}
	return ParsePrincipals(data)
}

// ParsePrincipals decodes and validates principals from YAML.
func ParsePrincipals(data []byte) (*Directory, error) {
	var f principalsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse principals: %w", err)
	}
	if len(f.Principals) == 0 {
		return nil, errors.New("principals: at least one principal is required")
	}

	var errs []error
	ids := make(map[string]bool, len(f.Principals))
	tokens := make(map[string]bool, len(f.Principals))
	for i, p := range f.Principals {
		switch {
		case p.ID == "":
			errs = append(errs, fmt.Errorf("principal %d: id is required", i))
		case ids[p.ID]:
			errs = append(errs, fmt.Errorf("principal %q: duplicate id", p.ID))
		}
		ids[p.ID] = true
		if !p.Role.Valid() {
			errs = append(errs, fmt.Errorf("principal %q: invalid role %q", p.ID, p.Role))
		}
		if len(p.Token) < minTokenLen {
			errs = append(errs, fmt.Errorf("principal %q: token must be at least %d characters", p.ID, minTokenLen))
		}
		if tokens[p.Token] {
			errs = append(errs, fmt.Errorf("principal %q: duplicate token", p.ID))
		}
		tokens[p.Token] = true
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Directory{principals: f.Principals}, nil
}

// Lookup returns the actor owning token. Every entry is compared in
// constant time so the position of a match is not observable.
func (d *Directory) Lookup(token string) (message.Actor, bool) {
	got := []byte(token)
	var (
		found message.Actor
		ok    bool
	)
	for _, p := range d.principals {
		if subtle.ConstantTimeCompare(got, []byte(p.Token)) == 1 {
			found = message.Actor{ID: p.ID, Name: p.Name, Role: p.Role}
			ok = true
		}
	}
	return found, ok
}

// Len returns the number of principals.
func (d *Directory) Len() int {
	return len(d.principals)
}

// BearerToken returns middleware that resolves the Authorization bearer
// token against dir and stores the actor in the request context.
func BearerToken(dir *Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			actor, ok := dir.Lookup(auth[len("Bearer "):])
			if !ok {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(message.WithActor(r.Context(), actor)))
		})
	}
}
