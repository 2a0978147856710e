package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/pms-auth-service/internal/docstore"
	"github.com/iliyamo/pms-auth-service/internal/identity"
)

// NewUser is what account creation needs once the email is proven.
type NewUser struct {
	Email       string
	Password    string
	DisplayName string
	FirstName   string
	LastName    string
}

func (u NewUser) displayName() string {
	if n := strings.TrimSpace(u.DisplayName); n != "" {
		return n
	}
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// Register creates the account and its canonical profile. An existing
// email fails with ErrConflict. The profile write is best-effort: the
// account exists either way and a later set-role rewrites the mirror.
func (s *AccountService) Register(ctx context.Context, u NewUser) (identity.Account, error) {
	email := normalizeEmail(u.Email)
	role := s.initialRole(email)
	a, err := s.ids.CreateUser(ctx, identity.NewAccount{
		Email:       email,
		Password:    u.Password,
		DisplayName: u.displayName(),
		Claims:      map[string]any{identity.ClaimAdmin: role.IsAdmin()},
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return identity.Account{}, ErrConflict
		}
		return identity.Account{}, err
	}
	if err := s.docs.Set(ctx, docstore.Doc(ProfilesCollection, a.UID), s.newProfile(a, u, role), true); err != nil {
		s.log.Warn(ctx, "register: profile write failed", "uid", a.UID, "err", err)
	}
	return a, nil
}

// Provision is the follow-up to an approved signup code: create the account
// if needed and upsert its profile. For an account that already exists only
// identifying and name fields are written, never the role.
func (s *AccountService) Provision(ctx context.Context, u NewUser) (identity.Account, error) {
	a, err := s.Register(ctx, u)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrConflict) {
		return identity.Account{}, err
	}
	a, err = s.ids.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return identity.Account{}, err
	}
	fields := map[string]any{
		"uid":       a.UID,
		"email":     normalizeEmail(a.Email),
		"updatedAt": s.now().UTC(),
	}
	addNames(fields, u)
	if err := s.docs.Set(ctx, docstore.Doc(ProfilesCollection, a.UID), fields, true); err != nil {
		return a, err
	}
	return a, nil
}

func (s *AccountService) initialRole(email string) Role {
	if s.cfg.AdminEmail != "" && email == s.cfg.AdminEmail {
		return RoleAdmin
	}
	return RoleUser
}

func (s *AccountService) newProfile(a identity.Account, u NewUser, r Role) map[string]any {
	now := s.now().UTC()
	fields := map[string]any{
		"uid":       a.UID,
		"email":     a.Email,
		"role":      string(r),
		"isAdmin":   r.IsAdmin(),
		"createdAt": now,
		"updatedAt": now,
	}
	addNames(fields, u)
	return fields
}

func addNames(fields map[string]any, u NewUser) {
	if n := u.displayName(); n != "" {
		fields["displayName"] = n
	}
	if n := strings.TrimSpace(u.FirstName); n != "" {
		fields["firstName"] = n
	}
	if n := strings.TrimSpace(u.LastName); n != "" {
		fields["lastName"] = n
	}
}
