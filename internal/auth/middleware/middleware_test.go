package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-quizdocs/internal/rbac"
)

func instructor(t *testing.T) Instructor {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return Instructor{User: "ms.rivera", PassHash: string(h)}
}

func login(t *testing.T, a *AuthService, acct Instructor, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	LoginHandler(a, acct)(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
	return rec
}

func TestLogin(t *testing.T) {
	a := NewAuthService("test-secret")
	acct := instructor(t)
	cases := []struct {
		name string
		acct Instructor
		body string
		want int
	}{
		{"ok", acct, `{"username":"ms.rivera","password":"s3cret"}`, http.StatusOK},
		{"wrong password", acct, `{"username":"ms.rivera","password":"nope"}`, http.StatusUnauthorized},
		{"wrong user", acct, `{"username":"admin","password":"s3cret"}`, http.StatusUnauthorized},
		{"missing field", acct, `{"username":"ms.rivera"}`, http.StatusBadRequest},
		{"bad json", acct, `{`, http.StatusBadRequest},
		{"no hash configured", Instructor{User: "ms.rivera"}, `{"username":"ms.rivera","password":"s3cret"}`, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := login(t, a, tc.acct, tc.body); rec.Code != tc.want {
				t.Fatalf("got %d want %d: %s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("test-secret")
	rec := login(t, a, instructor(t), `{"username":"ms.rivera","password":"s3cret"}`)
	var out struct {
		Token string `json:"access_token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil || out.Token == "" {
		t.Fatalf("token: %v", err)
	}

	var gotSub, gotRole string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub, gotRole = rbac.SubjectFromContext(r.Context()), rbac.RoleFromContext(r.Context())
	}))

	call := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := call("Bearer " + out.Token); code != http.StatusOK || gotSub != "ms.rivera" || gotRole != rbac.RoleInstructor {
		t.Fatalf("code %d sub %q role %q", code, gotSub, gotRole)
	}
	if code := call(""); code != http.StatusUnauthorized {
		t.Fatalf("missing header: %d", code)
	}
	if code := call("Bearer garbage"); code != http.StatusUnauthorized {
		t.Fatalf("garbage token: %d", code)
	}

	other := NewAuthService("other-secret")
	forged, _ := other.IssueJWT("ms.rivera", rbac.RoleAdmin)
	if code := call("Bearer " + forged); code != http.StatusUnauthorized {
		t.Fatalf("foreign signature: %d", code)
	}

	expired := NewAuthService("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-24 * time.Hour) }
	old, _ := expired.IssueJWT("ms.rivera", rbac.RoleInstructor)
	if code := call("Bearer " + old); code != http.StatusUnauthorized {
		t.Fatalf("expired token: %d", code)
	}
}

func TestAttachRole(t *testing.T) {
	var role string
	h := AttachRole("local", rbac.RoleInstructor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = rbac.RoleFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if role != rbac.RoleInstructor {
		t.Fatalf("role %q", role)
	}
}
