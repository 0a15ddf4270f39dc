package auth

import (
	"context"
	"errors"

	"github.com/taskforge/taskforge/internal/domain/user"
	"github.com/taskforge/taskforge/internal/security"
)

var (
	// ErrUnauthenticated covers unknown email, wrong password, invalid
	// token and vanished user alike. Collapsing them closes the account
	// enumeration side channel.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInactive means the credentials were right but the account is
	// disabled. Kept separate so the API can answer 400 instead of 401.
	ErrInactive = errors.New("account inactive")
)

// UserStore is the slice of the credential store the authenticator needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type Authenticator struct {
	users UserStore
	jwt   *Manager
}

func NewAuthenticator(users UserStore, jwt *Manager) *Authenticator {
	return &Authenticator{users: users, jwt: jwt}
}

// ByPassword resolves email+password to a user record. It deliberately does
// not check is_active; callers gate on RequireActive so bad credentials and
// a disabled account stay distinguishable failure modes.
func (a *Authenticator) ByPassword(ctx context.Context, email, password string) (user.User, error) {
	u, err := a.users.GetByEmail(ctx, email)

	if err != nil {
		return user.User{}, ErrUnauthenticated
	}

	if !security.VerifyPassword(u.PasswordHash, password) {
		return user.User{}, ErrUnauthenticated
	}

	return u, nil
}

// ByToken resolves a bearer access token to the live user record. The user
// is re-fetched on every call: tokens carry identity, not a snapshot, so a
// role or active-flag change takes effect on the very next request.
func (a *Authenticator) ByToken(ctx context.Context, raw string) (user.User, error) {
	claims, err := a.jwt.VerifyAccessToken(raw)

	if err != nil {
		return user.User{}, ErrUnauthenticated
	}

	return a.userFromClaims(ctx, claims)
}

// ByRefreshToken is ByToken for refresh-kind tokens. Used only by the token
// exchange endpoint.
func (a *Authenticator) ByRefreshToken(ctx context.Context, raw string) (user.User, error) {
	claims, err := a.jwt.VerifyRefreshToken(raw)

	if err != nil {
		return user.User{}, ErrUnauthenticated
	}

	return a.userFromClaims(ctx, claims)
}

func (a *Authenticator) userFromClaims(ctx context.Context, claims *Claims) (user.User, error) {
	id, err := claims.UserID()

	if err != nil {
		return user.User{}, ErrUnauthenticated
	}

	u, err := a.users.GetByID(ctx, id)

	if err != nil {
		// deleted since the token was issued
		return user.User{}, ErrUnauthenticated
	}

	return u, nil
}

// RequireActive is the explicit gate between "resolved" and "authorized
// candidate" in the identity pipeline.
func RequireActive(u user.User) error {
	if !u.IsActive {
		return ErrInactive
	}
	return nil
}
