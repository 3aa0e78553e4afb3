package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"account-service/internal/data/entity"
	"account-service/internal/data/repository"
	"account-service/pkg/payment"

	"github.com/google/uuid"
)

// ==================== CLOCK ====================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ==================== USER REPOSITORY ====================

// fakeUserRepo keeps users in memory. Every conditional write is evaluated
// under the mutex, like a single UPDATE statement would be.
type fakeUserRepo struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	users map[uuid.UUID]entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]entity.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// byEmail is a test helper returning a copy of the stored row.
func (r *fakeUserRepo) byEmail(email string) *entity.User {
	u, _ := r.FindByEmail(context.Background(), email)
	if u == nil {
		panic(fmt.Sprintf("no user %s", email))
	}
	return u
}

func (r *fakeUserRepo) ConsumeVerification(_ context.Context, id uuid.UUID, codeHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.Verified || u.VerificationCodeHash == nil || *u.VerificationCodeHash != codeHash ||
		u.VerificationExpiresAt == nil || u.VerificationExpiresAt.Before(now) {
		return false, nil
	}

	u.Verified = true
	u.VerificationCodeHash = nil
	u.VerificationExpiresAt = nil
	u.UpdatedAt = now
	r.users[id] = u
	return true, nil
}

func (r *fakeUserRepo) SetResetToken(_ context.Context, id uuid.UUID, tokenHash string, expiresAt, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	u.ResetTokenHash = &tokenHash
	u.ResetExpiresAt = &expiresAt
	u.UpdatedAt = now
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) ConsumeReset(_ context.Context, id uuid.UUID, tokenHash, newPasswordHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash ||
		u.ResetExpiresAt == nil || u.ResetExpiresAt.Before(now) {
		return false, nil
	}

	u.PasswordHash = newPasswordHash
	u.ResetTokenHash = nil
	u.ResetExpiresAt = nil
	u.UpdatedAt = now
	r.users[id] = u
	return true, nil
}

func (r *fakeUserRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeUserRepo) SetProviderCustomer(_ context.Context, id uuid.UUID, customerID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.ProviderCustomerID != nil {
		return fmt.Errorf("user %s not found or customer already set", id)
	}
	u.ProviderCustomerID = &customerID
	u.UpdatedAt = now
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) MarkSubscriptionPending(_ context.Context, id uuid.UUID, reference string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.SubscriptionStatus != entity.SubscriptionInactive {
		return false, nil
	}
	u.SubscriptionStatus = entity.SubscriptionPending
	u.ProviderSubscriptionID = &reference
	u.UpdatedAt = now
	r.users[id] = u
	return true, nil
}

func (r *fakeUserRepo) ApplySubscriptionStatus(
	_ context.Context,
	id uuid.UUID,
	reference string,
	status entity.SubscriptionStatus,
	from []entity.SubscriptionStatus,
	now time.Time,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.ProviderSubscriptionID == nil || *u.ProviderSubscriptionID != reference ||
		!slices.Contains(from, u.SubscriptionStatus) {
		return false, nil
	}
	u.SubscriptionStatus = status
	u.UpdatedAt = now
	r.users[id] = u
	return true, nil
}

// WithinTx serialises transactions and restores the snapshot when fn fails.
func (r *fakeUserRepo) WithinTx(_ context.Context, fn func(repo repository.UserRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := make(map[uuid.UUID]entity.User, len(r.users))
	for id, u := range r.users {
		snapshot[id] = u
	}
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.users = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// ==================== SESSION REPOSITORY ====================

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]entity.Session
	users    *fakeUserRepo
	clock    *fakeClock
}

func newFakeSessionRepo(users *fakeUserRepo, clock *fakeClock) *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[uuid.UUID]entity.Session),
		users:    users,
		clock:    clock,
	}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.Token] = *session
	return nil
}

func (r *fakeSessionRepo) FindPrincipal(ctx context.Context, token uuid.UUID) (*entity.Principal, error) {
	r.mu.Lock()
	s, ok := r.sessions[token]
	r.mu.Unlock()

	if !ok || s.RevokedAt != nil || !s.ExpiresAt.After(r.clock.Now()) {
		return nil, nil
	}

	u, _ := r.users.FindByID(ctx, s.UserID)
	if u == nil {
		return nil, nil
	}
	return &entity.Principal{UserID: u.ID, Email: u.Email, Token: token.String()}, nil
}

func (r *fakeSessionRepo) Revoke(_ context.Context, token uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok || s.RevokedAt != nil {
		return repository.ErrSessionNotFound
	}
	now := r.clock.Now()
	s.RevokedAt = &now
	r.sessions[token] = s
	return nil
}

func (r *fakeSessionRepo) RevokeAllUserSessions(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for token, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			r.sessions[token] = s
		}
	}
	return nil
}

func (r *fakeSessionRepo) CleanExpiredSessions(context.Context) (int64, error) {
	return 0, nil
}

// ==================== CODES & NOTIFICATIONS ====================

// queuedCodes hands out predefined codes, then falls back to a counter.
type queuedCodes struct {
	mu    sync.Mutex
	queue []string
	next  int
}

func (q *queuedCodes) Next() (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.queue) > 0 {
		code := q.queue[0]
		q.queue = q.queue[1:]
		return code, nil
	}
	q.next++
	return fmt.Sprintf("%06d", 100000+q.next), nil
}

type sentCode struct {
	kind  string
	email string
	code  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	fail bool
	sent []sentCode
}

func (n *fakeNotifier) SendVerificationCode(_ context.Context, email, code string, _ time.Duration) error {
	return n.record("verification", email, code)
}

func (n *fakeNotifier) SendPasswordResetCode(_ context.Context, email, code string, _ time.Duration) error {
	return n.record("password_reset", email, code)
}

func (n *fakeNotifier) record(kind, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fail {
		return errors.New("smtp: connection refused")
	}
	n.sent = append(n.sent, sentCode{kind: kind, email: email, code: code})
	return nil
}

// lastCode returns the most recent code of kind sent to email.
func (n *fakeNotifier) lastCode(kind, email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind && n.sent[i].email == email {
			return n.sent[i].code
		}
	}
	return ""
}

// ==================== ATTEMPT LIMITER ====================

type fakeLimiter struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
}

func newFakeLimiter(max int) *fakeLimiter {
	return &fakeLimiter{max: max, failures: make(map[string]int)}
}

func (l *fakeLimiter) Locked(_ context.Context, scope, email string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[scope+":"+email] >= l.max, nil
}

func (l *fakeLimiter) RegisterFailure(_ context.Context, scope, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[scope+":"+email]++
	return nil
}

func (l *fakeLimiter) Reset(_ context.Context, scope, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, scope+":"+email)
	return nil
}

// ==================== PAYMENT PROVIDER ====================

type fakeProvider struct {
	mu sync.Mutex

	customerErr error
	checkoutErr error
	statusErr   error

	customers   []string
	checkouts   []string
	statusCalls int
	states      map[string]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{states: make(map[string]string)}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) CreateCustomer(_ context.Context, email, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.customerErr != nil {
		return "", p.customerErr
	}
	id := fmt.Sprintf("cus_%d", len(p.customers)+1)
	p.customers = append(p.customers, id)
	return id, nil
}

func (p *fakeProvider) CreateCheckout(_ context.Context, customerID, _ string, _ payment.Plan) (*payment.Checkout, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.checkoutErr != nil {
		return nil, p.checkoutErr
	}
	ref := fmt.Sprintf("cs_%d", len(p.checkouts)+1)
	p.checkouts = append(p.checkouts, ref)
	p.states[ref] = "open"
	return &payment.Checkout{
		ReferenceID: ref,
		RedirectURL: "https://pay.example.com/" + ref + "?customer=" + customerID,
	}, nil
}

func (p *fakeProvider) GetStatus(_ context.Context, referenceID string) (*payment.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.statusCalls++
	if p.statusErr != nil {
		return nil, p.statusErr
	}
	state, ok := p.states[referenceID]
	if !ok {
		return nil, fmt.Errorf("no such checkout %s", referenceID)
	}
	return &payment.Status{ReferenceID: referenceID, State: state}, nil
}

func (p *fakeProvider) setState(reference, state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[reference] = state
}

func (p *fakeProvider) counts() (customers, checkouts, statusCalls int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.customers), len(p.checkouts), p.statusCalls
}
