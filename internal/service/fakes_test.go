package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/iliyamo/pms-auth-service/internal/docstore"
	"github.com/iliyamo/pms-auth-service/internal/identity"
	"github.com/iliyamo/pms-auth-service/internal/queue"
)

// fakeIdentity is an in-memory identity.Provider with per-operation error
// injection.
type fakeIdentity struct {
	mu       sync.Mutex
	accounts map[string]identity.Account
	passwds  map[string]string
	revoked  map[string]int
	seq      int

	getErr, claimsErr, revokeErr, deleteErr, createErr error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: map[string]identity.Account{}, passwds: map[string]string{}, revoked: map[string]int{}}
}

func (f *fakeIdentity) add(uid, email string, admin bool) identity.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := identity.Account{UID: uid, Email: email, Claims: map[string]any{identity.ClaimAdmin: admin}}
	f.accounts[uid] = a
	return a
}

func (f *fakeIdentity) get(uid string) (identity.Account, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[uid]
	return a, ok
}

func (f *fakeIdentity) GetUser(_ context.Context, uid string) (identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return identity.Account{}, f.getErr
	}
	a, ok := f.accounts[uid]
	if !ok {
		return identity.Account{}, identity.ErrUserNotFound
	}
	return a, nil
}

func (f *fakeIdentity) GetUserByEmail(_ context.Context, email string) (identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, strings.TrimSpace(email)) {
			return a, nil
		}
	}
	return identity.Account{}, identity.ErrUserNotFound
}

func (f *fakeIdentity) CreateUser(_ context.Context, in identity.NewAccount) (identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return identity.Account{}, f.createErr
	}
	for _, a := range f.accounts {
		if a.Email == in.Email {
			return identity.Account{}, identity.ErrEmailExists
		}
	}
	f.seq++
	a := identity.Account{UID: fmt.Sprintf("uid-%d", f.seq), Email: in.Email, DisplayName: in.DisplayName, Claims: in.Claims}
	f.accounts[a.UID] = a
	f.passwds[a.UID] = in.Password
	return a, nil
}

func (f *fakeIdentity) DeleteUser(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.accounts[uid]; !ok {
		return identity.ErrUserNotFound
	}
	delete(f.accounts, uid)
	return nil
}

func (f *fakeIdentity) SetCustomClaims(_ context.Context, uid string, claims map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimsErr != nil {
		return f.claimsErr
	}
	a, ok := f.accounts[uid]
	if !ok {
		return identity.ErrUserNotFound
	}
	a.Claims = claims
	f.accounts[uid] = a
	return nil
}

func (f *fakeIdentity) RevokeSessions(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked[uid]++
	return nil
}

// flakyDocs wraps docstore.Memory and fails selected operations.
type flakyDocs struct {
	*docstore.Memory
	setErr, queryErr, commitErr error
	queryField                  string // fail only queries on this field when set
}

func (d *flakyDocs) Set(ctx context.Context, ref docstore.Ref, fields map[string]any, merge bool) error {
	if d.setErr != nil {
		return d.setErr
	}
	return d.Memory.Set(ctx, ref, fields, merge)
}

func (d *flakyDocs) QueryWhere(ctx context.Context, coll, field string, value any) ([]docstore.Document, error) {
	if d.queryErr != nil && (d.queryField == "" || d.queryField == field) {
		return nil, d.queryErr
	}
	return d.Memory.QueryWhere(ctx, coll, field, value)
}

func (d *flakyDocs) Batch() docstore.Batch {
	return &flakyBatch{Batch: d.Memory.Batch(), err: d.commitErr}
}

type flakyBatch struct {
	docstore.Batch
	err error
}

func (b *flakyBatch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	return b.Batch.Commit(ctx)
}

type sentMail struct{ to, subject, body string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return m.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.AccountEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev queue.AccountEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

var errBoom = errors.New("boom")
