//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"shortlet-payments/internal/domain"
	"shortlet-payments/internal/domain/model"
	"shortlet-payments/internal/domain/ports/adapter"
	"shortlet-payments/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func now() time.Time { return time.Now().Truncate(time.Millisecond) }

func timePtr(t time.Time) *time.Time { return &t }

// =============================
// Repositories
// =============================

// ---- Mock PaymentIntentRepository ----

// MockIntentRepo keeps rows in memory and mirrors the conditional-write
// semantics of the SQL store: guarded status flips, optimistic locking,
// schema-gated reconcile writes. Func fields override individual methods.
type MockIntentRepo struct {
	mu   sync.Mutex
	rows map[string]*model.PaymentIntent // by id

	ListStaleInitiatedFunc func(ctx context.Context, mode repository.SchemaMode, staleBefore time.Time, limit int) ([]*model.PaymentIntent, error)
	ListNeedsReconcileFunc func(ctx context.Context, now time.Time, limit int) ([]*model.PaymentIntent, error)
	LockForReconcileFunc   func(ctx context.Context, id string, expectedAttempts int, lockUntil, now time.Time) (bool, error)
	MarkNeedsReconcileFunc func(ctx context.Context, id string, reason model.ReconcileReason) error

	Calls struct {
		Lock               int
		MarkFailed         int
		MarkNeedsReconcile int
		MarkSucceeded      int
		Clear              int
		ListStale          int
		ListNeeds          int
		ListSucceeded      int
		LastListLimit      int
	}
}

var _ repository.PaymentIntentRepository = (*MockIntentRepo)(nil)

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{rows: make(map[string]*model.PaymentIntent)}
}

func (m *MockIntentRepo) Put(p *model.PaymentIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.rows[p.ID] = &cp
}

func (m *MockIntentRepo) Get(id string) *model.PaymentIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (m *MockIntentRepo) Upsert(ctx context.Context, qx any, mode repository.SchemaMode, p *model.PaymentIntent) (*repository.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.BookingID == p.BookingID {
			if row.Status == model.PaymentStatusSucceeded {
				cp := *row
				return &repository.UpsertResult{Intent: &cp, AlreadySucceeded: true}, nil
			}
			row.Provider = p.Provider
			row.ProviderReference = p.ProviderReference
			row.Currency = p.Currency
			row.AmountTotalMinor = p.AmountTotalMinor
			row.UpdatedAt = now()
			cp := *row
			return &repository.UpsertResult{Intent: &cp}, nil
		}
	}
	cp := *p
	m.rows[p.ID] = &cp
	out := cp
	return &repository.UpsertResult{Intent: &out}, nil
}

func (m *MockIntentRepo) FindByID(ctx context.Context, qx any, mode repository.SchemaMode, id string) (*model.PaymentIntent, error) {
	if p := m.Get(id); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) FindByReference(ctx context.Context, qx any, mode repository.SchemaMode, provider model.Provider, reference string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Provider == provider && row.ProviderReference == reference {
			cp := *row
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) FindByBookingID(ctx context.Context, qx any, mode repository.SchemaMode, bookingID string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.BookingID == bookingID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) ListStaleInitiated(ctx context.Context, qx any, mode repository.SchemaMode, staleBefore time.Time, limit int) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	m.Calls.ListStale++
	m.Calls.LastListLimit = limit
	m.mu.Unlock()
	if m.ListStaleInitiatedFunc != nil {
		return m.ListStaleInitiatedFunc(ctx, mode, staleBefore, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentIntent
	for _, row := range m.rows {
		if row.Status == model.PaymentStatusInitiated && !row.CreatedAt.After(staleBefore) {
			cp := *row
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockIntentRepo) ListNeedsReconcile(ctx context.Context, qx any, ts time.Time, limit int) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	m.Calls.ListNeeds++
	m.mu.Unlock()
	if m.ListNeedsReconcileFunc != nil {
		return m.ListNeedsReconcileFunc(ctx, ts, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentIntent
	for _, row := range m.rows {
		if row.Status == model.PaymentStatusSucceeded && row.NeedsReconcile &&
			(row.ReconcileLockedUntil == nil || !row.ReconcileLockedUntil.After(ts)) {
			cp := *row
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockIntentRepo) ListSucceeded(ctx context.Context, qx any, limit int) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.ListSucceeded++
	var out []*model.PaymentIntent
	for _, row := range m.rows {
		if row.Status == model.PaymentStatusSucceeded {
			cp := *row
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockIntentRepo) ListFlagged(ctx context.Context, qx any, offset, limit int) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentIntent
	for _, row := range m.rows {
		if row.NeedsReconcile {
			cp := *row
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockIntentRepo) LockForReconcile(ctx context.Context, qx any, id string, expectedAttempts int, lockUntil, ts time.Time) (bool, error) {
	m.mu.Lock()
	m.Calls.Lock++
	m.mu.Unlock()
	if m.LockForReconcileFunc != nil {
		return m.LockForReconcileFunc(ctx, id, expectedAttempts, lockUntil, ts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	if row.VerifyAttempts != expectedAttempts {
		return false, nil
	}
	if row.ReconcileLockedUntil != nil && row.ReconcileLockedUntil.After(ts) {
		return false, nil
	}
	lu := lockUntil
	row.ReconcileLockedUntil = &lu
	row.VerifyAttempts++
	return true, nil
}

func (m *MockIntentRepo) MarkFailed(ctx context.Context, qx any, mode repository.SchemaMode, provider model.Provider, reference string, payload []byte, reason model.ReconcileReason, retryAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.MarkFailed++
	for _, row := range m.rows {
		if row.Provider == provider && row.ProviderReference == reference && row.Status != model.PaymentStatusSucceeded {
			row.Status = model.PaymentStatusFailed
			if payload != nil {
				row.ProviderPayload = payload
			}
			if mode == repository.SchemaModeReconcile {
				row.NeedsReconcile = false
				row.ReconcileReason = reason
				row.ReconcileLockedUntil = retryAt
			}
			row.LastVerifiedAt = timePtr(now())
			row.UpdatedAt = now()
		}
	}
	return nil
}

func (m *MockIntentRepo) MarkNeedsReconcile(ctx context.Context, qx any, id string, reason model.ReconcileReason, lockUntil time.Time, payload []byte) error {
	m.mu.Lock()
	m.Calls.MarkNeedsReconcile++
	m.mu.Unlock()
	if m.MarkNeedsReconcileFunc != nil {
		return m.MarkNeedsReconcileFunc(ctx, id, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	row.NeedsReconcile = true
	row.ReconcileReason = reason
	lu := lockUntil
	row.ReconcileLockedUntil = &lu
	if payload != nil {
		row.ProviderPayload = payload
	}
	row.UpdatedAt = now()
	return nil
}

func (m *MockIntentRepo) MarkSucceeded(ctx context.Context, qx any, mode repository.SchemaMode, provider model.Provider, reference string, payload []byte, externalTxID string) (*repository.MarkSucceededResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.MarkSucceeded++
	for _, row := range m.rows {
		if row.Provider != provider || row.ProviderReference != reference {
			continue
		}
		if row.Status == model.PaymentStatusSucceeded {
			cp := *row
			return &repository.MarkSucceededResult{Intent: &cp, AlreadySucceeded: true}, nil
		}
		row.Status = model.PaymentStatusSucceeded
		if externalTxID != "" {
			row.ProviderTxID = externalTxID
		}
		if payload != nil {
			row.ProviderPayload = payload
		}
		if mode == repository.SchemaModeReconcile {
			row.NeedsReconcile = false
			row.ReconcileReason = ""
			row.ReconcileLockedUntil = nil
		}
		row.LastVerifiedAt = timePtr(now())
		row.UpdatedAt = now()
		cp := *row
		return &repository.MarkSucceededResult{Intent: &cp}, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) ClearReconcileState(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Clear++
	if row, ok := m.rows[id]; ok {
		row.NeedsReconcile = false
		row.ReconcileReason = ""
		row.ReconcileLockedUntil = nil
		row.UpdatedAt = now()
	}
	return nil
}

// ---- Mock BookingRepository ----

type MockBookingRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Booking

	FindByIDFunc func(ctx context.Context, id string) (*model.Booking, error)

	Calls struct {
		Transition int
	}
}

var _ repository.BookingRepository = (*MockBookingRepo)(nil)

func NewMockBookingRepo() *MockBookingRepo {
	return &MockBookingRepo{rows: make(map[string]*model.Booking)}
}

func (m *MockBookingRepo) Put(b *model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.rows[b.ID] = &cp
}

func (m *MockBookingRepo) Get(id string) *model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.rows[id]; ok {
		cp := *b
		return &cp
	}
	return nil
}

func (m *MockBookingRepo) FindByID(ctx context.Context, qx any, id string) (*model.Booking, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	if b := m.Get(id); b != nil {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockBookingRepo) TransitionFromPendingPayment(ctx context.Context, qx any, id string, target model.BookingStatus, paymentReference string, expiresAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Transition++
	row, ok := m.rows[id]
	if !ok || row.Status != model.BookingStatusPendingPayment {
		return false, nil
	}
	row.Status = target
	row.PaymentReference = paymentReference
	row.ExpiresAt = expiresAt
	row.UpdatedAt = now()
	return true, nil
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately without a real transaction unless a
// custom WithTxFunc is assigned.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock ProviderVerifier ----

type MockVerifier struct {
	mu       sync.Mutex
	provider model.Provider

	VerifyFunc func(ctx context.Context, reference string) (*adapter.VerificationResult, error)

	Calls struct {
		Verify []string
	}
}

var _ adapter.ProviderVerifier = (*MockVerifier)(nil)

func NewMockVerifier(p model.Provider) *MockVerifier {
	return &MockVerifier{provider: p}
}

func (m *MockVerifier) Name() model.Provider { return m.provider }

func (m *MockVerifier) Verify(ctx context.Context, reference string) (*adapter.VerificationResult, error) {
	m.mu.Lock()
	m.Calls.Verify = append(m.Calls.Verify, reference)
	m.mu.Unlock()
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, reference)
	}
	return &adapter.VerificationResult{OK: false, Status: "pending"}, nil
}

func (m *MockVerifier) VerifyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls.Verify)
}

// ---- Mock SchemaDetector ----

type MockProbe struct {
	Mode repository.SchemaMode
	Err  error
}

func (m *MockProbe) Detect(ctx context.Context) (repository.SchemaMode, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Mode, nil
}

// ---- Mock EventPublisher ----

type MockPublisher struct {
	mu       sync.Mutex
	Subjects []string
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subjects = append(m.Subjects, subject)
	return nil
}

func (m *MockPublisher) Close() {}

func (m *MockPublisher) Published(subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.Subjects {
		if s == subject {
			n++
		}
	}
	return n
}
