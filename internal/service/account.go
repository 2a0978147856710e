package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/pms-auth-service/internal/docstore"
	"github.com/iliyamo/pms-auth-service/internal/identity"
	"github.com/iliyamo/pms-auth-service/internal/logging"
	"github.com/iliyamo/pms-auth-service/internal/queue"
)

// ProfilesCollection holds one canonical profile per account, keyed by uid.
// Older documents with generated ids may still carry uid/email fields.
const ProfilesCollection = "users"

// AccountConfig names the special addresses.
type AccountConfig struct {
	ProtectedEmail string // never demoted, never deleted
	AdminEmail     string // accounts created for this address start as admin
}

// AccountService runs role changes, deletions and account creation against
// the identity provider and mirrors the result into profile documents.
type AccountService struct {
	ids    identity.Provider
	docs   docstore.Store
	events EventPublisher
	log    logging.Logger
	cfg    AccountConfig
	now    func() time.Time
}

// NewAccountService wires the collaborators. events may be nil.
func NewAccountService(ids identity.Provider, docs docstore.Store, events EventPublisher, log logging.Logger, cfg AccountConfig) *AccountService {
	cfg.ProtectedEmail = normalizeEmail(cfg.ProtectedEmail)
	cfg.AdminEmail = normalizeEmail(cfg.AdminEmail)
	return &AccountService{ids: ids, docs: docs, events: events, log: log, cfg: cfg, now: time.Now}
}

// ResolveAccount looks the target up by uid, falling back to email when the
// uid is unknown and an email was supplied.
func (s *AccountService) ResolveAccount(ctx context.Context, uid, email string) (identity.Account, error) {
	uid = strings.TrimSpace(uid)
	email = normalizeEmail(email)
	if uid == "" && email == "" {
		return identity.Account{}, invalid("uid or email required")
	}
	if uid != "" {
		a, err := s.ids.GetUser(ctx, uid)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, identity.ErrUserNotFound) {
			return identity.Account{}, err
		}
		if email == "" {
			return identity.Account{}, ErrNotFound
		}
	}
	a, err := s.ids.GetUserByEmail(ctx, email)
	if errors.Is(err, identity.ErrUserNotFound) {
		return identity.Account{}, ErrNotFound
	}
	return a, err
}

func (s *AccountService) isProtected(a identity.Account) bool {
	return s.cfg.ProtectedEmail != "" && normalizeEmail(a.Email) == s.cfg.ProtectedEmail
}

// SetRole moves the account to role. Validation happens before any write;
// after the claim is set, a failing step is reported as *PartialFailure.
func (s *AccountService) SetRole(ctx context.Context, uid, email, role string) (identity.Account, Role, error) {
	r, err := ParseRole(role)
	if err != nil {
		return identity.Account{}, "", err
	}
	a, err := s.ResolveAccount(ctx, uid, email)
	if err != nil {
		return identity.Account{}, "", err
	}
	if s.isProtected(a) && r != RoleAdmin {
		return a, "", &forbidden{msg: "Protected admin cannot be demoted"}
	}

	if err := s.ids.SetCustomClaims(ctx, a.UID, mergeClaims(a.Claims, r)); err != nil {
		return a, "", &PartialFailure{Step: StepSetClaims, Err: err}
	}
	if err := s.ids.RevokeSessions(ctx, a.UID); err != nil {
		return a, "", &PartialFailure{Step: StepRevokeSessions, Err: err}
	}

	fields := s.roleFields(a, r)
	if err := s.docs.Set(ctx, docstore.Doc(ProfilesCollection, a.UID), fields, true); err != nil {
		return a, "", &PartialFailure{Step: StepWriteProfile, Err: err}
	}
	legacy, err := s.legacyProfiles(ctx, a)
	if err != nil {
		return a, "", &PartialFailure{Step: StepReconcileLegacy, Err: err}
	}
	if len(legacy) > 0 {
		b := s.docs.Batch()
		for _, ref := range legacy {
			b.Set(ref, fields, true)
		}
		if err := b.Commit(ctx); err != nil {
			return a, "", &PartialFailure{Step: StepReconcileLegacy, Err: err}
		}
	}

	s.publish(ctx, queue.EventRoleChanged, a, r)
	return a, r, nil
}

// DeleteUser removes the account from the identity provider, then makes a
// best-effort pass over its profile documents.
func (s *AccountService) DeleteUser(ctx context.Context, uid, email string) (identity.Account, error) {
	a, err := s.ResolveAccount(ctx, uid, email)
	if err != nil {
		return identity.Account{}, err
	}
	if s.isProtected(a) {
		return a, &forbidden{msg: "Protected admin cannot be deleted"}
	}
	if err := s.ids.DeleteUser(ctx, a.UID); err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		return a, err
	}

	refs := []docstore.Ref{docstore.Doc(ProfilesCollection, a.UID)}
	legacy, err := s.legacyProfiles(ctx, a)
	if err != nil {
		s.log.Warn(ctx, "delete-user: legacy profile lookup failed", "uid", a.UID, "err", err)
	}
	refs = append(refs, legacy...)
	b := s.docs.Batch()
	for _, ref := range refs {
		b.Delete(ref)
	}
	if err := b.Commit(ctx); err != nil {
		s.log.Warn(ctx, "delete-user: profile cleanup failed", "uid", a.UID, "docs", len(refs), "err", err)
	}

	s.publish(ctx, queue.EventAccountDeleted, a, "")
	return a, nil
}

// legacyProfiles finds profile documents other than the canonical one that
// carry the account's uid or email. The two lookups run concurrently.
func (s *AccountService) legacyProfiles(ctx context.Context, a identity.Account) ([]docstore.Ref, error) {
	var byUID, byEmail []docstore.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byUID, err = s.docs.QueryWhere(gctx, ProfilesCollection, "uid", a.UID)
		return err
	})
	if email := normalizeEmail(a.Email); email != "" {
		g.Go(func() error {
			var err error
			byEmail, err = s.docs.QueryWhere(gctx, ProfilesCollection, "email", email)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[string]bool{a.UID: true}
	var refs []docstore.Ref
	for _, d := range append(byUID, byEmail...) {
		if seen[d.Ref.ID] {
			continue
		}
		seen[d.Ref.ID] = true
		refs = append(refs, d.Ref)
	}
	return refs, nil
}

func (s *AccountService) roleFields(a identity.Account, r Role) map[string]any {
	return map[string]any{
		"uid":       a.UID,
		"email":     normalizeEmail(a.Email),
		"role":      string(r),
		"isAdmin":   r.IsAdmin(),
		"updatedAt": s.now().UTC(),
	}
}

func (s *AccountService) publish(ctx context.Context, typ string, a identity.Account, r Role) {
	if s.events == nil {
		return
	}
	ev := queue.AccountEvent{Type: typ, UID: a.UID, Email: a.Email, Role: string(r), At: s.now().UTC().Format(time.RFC3339)}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn(ctx, "account event not published", "type", typ, "uid", a.UID, "err", err)
	}
}

// mergeClaims keeps unrelated claims and sets admin for r.
func mergeClaims(cur map[string]any, r Role) map[string]any {
	out := make(map[string]any, len(cur)+1)
	for k, v := range cur {
		out[k] = v
	}
	out[identity.ClaimAdmin] = r.IsAdmin()
	return out
}

type forbidden struct{ msg string }

func (e *forbidden) Error() string        { return e.msg }
func (e *forbidden) Is(target error) bool { return target == ErrForbidden }

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
