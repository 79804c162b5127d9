package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sasta-kro/labuh-go/models"
)

func TestAuthContextSetsHeadersOnContext(t *testing.T) {
	var gotUserID, gotTeamID string
	var gotUserOK, gotTeamOK bool

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, gotUserOK = userIDFromRequest(r)
		gotTeamID, gotTeamOK = teamIDFromRequest(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stacks", nil)
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-Team-Id", "team-1")

	AuthContext(next).ServeHTTP(httptest.NewRecorder(), req)

	if !gotUserOK || gotUserID != "user-1" {
		t.Fatalf("expected user id %q, got %q (ok=%v)", "user-1", gotUserID, gotUserOK)
	}
	if !gotTeamOK || gotTeamID != "team-1" {
		t.Fatalf("expected team id %q, got %q (ok=%v)", "team-1", gotTeamID, gotTeamOK)
	}
}

func TestAuthContextLeavesMissingHeadersUnset(t *testing.T) {
	var userOK, teamOK bool

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, userOK = userIDFromRequest(r)
		_, teamOK = teamIDFromRequest(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stacks", nil)
	AuthContext(next).ServeHTTP(httptest.NewRecorder(), req)

	if userOK || teamOK {
		t.Fatalf("expected no identity on context, got userOK=%v teamOK=%v", userOK, teamOK)
	}
}

type fakeRBAC struct {
	role models.TeamRole
	err  error
}

func (f fakeRBAC) GetUserRole(teamID, userID string) (models.TeamRole, error) {
	return f.role, f.err
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name string
		rbac fakeRBAC
		min  models.TeamRole
		want bool
	}{
		{"owner meets admin floor", fakeRBAC{role: models.RoleOwner}, models.RoleAdmin, true},
		{"viewer below developer floor", fakeRBAC{role: models.RoleViewer}, models.RoleDeveloper, false},
		{"exact match meets floor", fakeRBAC{role: models.RoleDeveloper}, models.RoleDeveloper, true},
		{"lookup error denies", fakeRBAC{err: http.ErrBodyNotAllowed}, models.RoleViewer, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := requireRole(tc.rbac, "team-1", "user-1", tc.min)
			if got != tc.want {
				t.Fatalf("requireRole() = %v, want %v", got, tc.want)
			}
		})
	}
}
