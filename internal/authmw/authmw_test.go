package authmw

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linnemanlabs/confide/internal/message"
)

const testPrincipals = `
principals:
  - id: u-1
    name: Ann Employee
    role: employee
    token: employee-token-0001
  - id: u-2
    name: Hal HR
    role: hr
    token: hr-token-000000002
  - id: u-3
    name: Ada Admin
    role: admin
    token: admin-token-0000003
`

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := ParsePrincipals([]byte(testPrincipals))
	if err != nil {
		t.Fatalf("ParsePrincipals: %v", err)
	}
	return d
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestParsePrincipals_Valid(t *testing.T) {
	t.Parallel()

	d := testDirectory(t)
	if d.Len() != 3 {
		t.Errorf("Len = %d, want 3", d.Len())
	}
}

func TestParsePrincipals_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		yaml      string
		errSubstr string
	}{
		{"empty", `principals: []`, "at least one"},
		{"bad yaml", `principals: [`, "parse principals"},
		{"missing id", "principals:\n  - role: hr\n    token: aaaaaaaaaaaaaaaa\n", "id is required"},
		{"bad role", "principals:\n  - id: x\n    role: boss\n    token: aaaaaaaaaaaaaaaa\n", "invalid role"},
		{"short token", "principals:\n  - id: x\n    role: hr\n    token: short\n", "at least 16"},
		{"duplicate id", "principals:\n  - id: x\n    role: hr\n    token: aaaaaaaaaaaaaaaa\n  - id: x\n    role: hr\n    token: bbbbbbbbbbbbbbbb\n", "duplicate id"},
		{"duplicate token", "principals:\n  - id: x\n    role: hr\n    token: aaaaaaaaaaaaaaaa\n  - id: y\n    role: hr\n    token: aaaaaaaaaaaaaaaa\n", "duplicate token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParsePrincipals([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("error = %q, want substring %q", err, tt.errSubstr)
			}
		})
	}
}

func TestLoadPrincipals(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "principals.yaml")
	if err := os.WriteFile(path, []byte(testPrincipals), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	d, err := LoadPrincipals(path)
	if err != nil {
		t.Fatalf("LoadPrincipals: %v", err)
	}
	if d.Len() != 3 {
		t.Errorf("Len = %d, want 3", d.Len())
	}

	if _, err := LoadPrincipals(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	d := testDirectory(t)

	a, ok := d.Lookup("hr-token-000000002")
	if !ok {
		t.Fatal("expected hr token to resolve")
	}
	if a.ID != "u-2" || a.Role != message.RoleHR || a.Name != "Hal HR" {
		t.Errorf("actor = %+v", a)
	}

	for _, tok := range []string{"", "hr-token", "hr-token-000000002x", "HR-TOKEN-000000002"} {
		if _, ok := d.Lookup(tok); ok {
			t.Errorf("Lookup(%q) resolved, want miss", tok)
		}
	}
}

func TestBearerToken_ValidTokenSetsActor(t *testing.T) {
	t.Parallel()

	var got message.Actor
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := message.ActorFromContext(r.Context())
		if !ok {
			t.Error("actor missing from context")
		}
		got = a
		w.WriteHeader(http.StatusCreated)
	})

	h := BearerToken(testDirectory(t))(inner)

	req := httptest.NewRequest(http.MethodPost, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer admin-token-0000003")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if got.ID != "u-3" || got.Role != message.RoleAdmin {
		t.Errorf("actor = %+v, want u-3/admin", got)
	}
}

func TestBearerToken_MissingHeader(t *testing.T) {
	t.Parallel()

	h := BearerToken(testDirectory(t))(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestBearerToken_WrongPrefix(t *testing.T) {
	t.Parallel()

	h := BearerToken(testDirectory(t))(okHandler)

	tests := []struct {
		name  string
		value string
	}{
		{"Basic auth", "Basic dXNlcjpwYXNz"},
		{"lowercase bearer", "bearer hr-token-000000002"},
		{"no prefix", "hr-token-000000002"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.value != "" {
				req.Header.Set("Authorization", tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestBearerToken_InvalidToken(t *testing.T) {
	t.Parallel()

	h := BearerToken(testDirectory(t))(okHandler)

	for _, tok := range []string{"wrong-token", "hr-token", "hr-token-000000002-extra", ""} {
		t.Run(tok, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+tok)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}
