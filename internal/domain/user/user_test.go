package user_test

import (
	"testing"

	"github.com/taskforge/taskforge/internal/domain/user"
)

func TestCanAccess(t *testing.T) {
	tests := []struct {
		name    string
		u       user.User
		ownerID int64
		want    bool
	}{
		{name: "owner may access own resource", u: user.User{ID: 1, Role: user.RoleUser}, ownerID: 1, want: true},
		{name: "non-owner denied", u: user.User{ID: 1, Role: user.RoleUser}, ownerID: 2, want: false},
		{name: "admin overrides ownership", u: user.User{ID: 1, Role: user.RoleAdmin}, ownerID: 2, want: true},
		{name: "admin may access own resource", u: user.User{ID: 1, Role: user.RoleAdmin}, ownerID: 1, want: true},
		{name: "unknown role carries no permissions", u: user.User{ID: 1, Role: user.Role("superadmin")}, ownerID: 2, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.u.CanAccess(tc.ownerID); got != tc.want {
				t.Fatalf("CanAccess(%d) = %v, want %v", tc.ownerID, got, tc.want)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	if !user.RoleUser.Valid() || !user.RoleAdmin.Valid() {
		t.Fatalf("the two enumerated roles must be valid")
	}

	if user.Role("root").Valid() {
		t.Fatalf("roles outside the enumeration must be invalid")
	}
}
