package leads

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReconcileCreateThenUpdate(t *testing.T) {
	repo := NewInMemoryRepository()
	r := NewReconciler(repo)
	ctx := context.Background()

	res, err := r.Reconcile(ctx, ContactRecord{Email: "ana@example.com", Name: "Ana", Source: "landing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeCreated {
		t.Fatalf("expected created, got %s", res.Outcome)
	}

	res, err = r.Reconcile(ctx, ContactRecord{Email: "ana@example.com", Name: "Ana Gómez", Source: "landing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeUpdated {
		t.Fatalf("expected updated, got %s", res.Outcome)
	}
	if res.Patch.Name == nil || *res.Patch.Name != "Ana Gómez" {
		t.Fatalf("expected name in patch, got %+v", res.Patch)
	}

	stored, err := repo.FindByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Name != "Ana Gómez" {
		t.Fatalf("expected stored name from second submission, got %q", stored.Name)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected one lead, got %d", repo.Len())
	}
}

func TestReconcileUpdateCarriesNewUpdatedAt(t *testing.T) {
	repo := NewInMemoryRepository()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return created }
	r := NewReconciler(repo)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, ContactRecord{Email: "clock@example.com", Name: "Ana"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	later := created.Add(48 * time.Hour)
	repo.now = func() time.Time { return later }
	res, err := r.Reconcile(ctx, ContactRecord{Email: "clock@example.com", Name: "Ana María"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeUpdated {
		t.Fatalf("expected updated, got %s", res.Outcome)
	}
	if !res.Lead.UpdatedAt.Equal(later) {
		t.Fatalf("expected result updated_at %s, got %s", later, res.Lead.UpdatedAt)
	}
	if !res.Lead.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at to stay %s, got %s", created, res.Lead.CreatedAt)
	}

	stored, _ := repo.FindByEmail(ctx, "clock@example.com")
	if !stored.UpdatedAt.Equal(res.Lead.UpdatedAt) {
		t.Fatalf("result updated_at %s disagrees with stored %s", res.Lead.UpdatedAt, stored.UpdatedAt)
	}
}

func TestReconcileIdenticalResubmissionIsUnchanged(t *testing.T) {
	repo := NewInMemoryRepository()
	r := NewReconciler(repo)
	ctx := context.Background()
	rec := ContactRecord{Email: "a@b.co", Name: "A", City: "Cali", Phone: "3001234567", Source: "landing"}

	if _, err := r.Reconcile(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, _ := repo.FindByEmail(ctx, rec.Email)

	res, err := r.Reconcile(ctx, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %s", res.Outcome)
	}
	after, _ := repo.FindByEmail(ctx, rec.Email)
	if *before != *after {
		t.Fatalf("expected no mutation, before=%+v after=%+v", before, after)
	}
}

func TestReconcileNeverOverwritesWithEmptiness(t *testing.T) {
	repo := NewInMemoryRepository()
	r := NewReconciler(repo)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, ContactRecord{Email: "a@b.co", Name: "A", City: "Cali", Phone: "3001234567", Source: "landing"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := r.Reconcile(ctx, ContactRecord{Email: "a@b.co", Role: "Cocinero", Source: "landing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeUpdated {
		t.Fatalf("expected updated, got %s", res.Outcome)
	}
	stored, _ := repo.FindByEmail(ctx, "a@b.co")
	if stored.Name != "A" || stored.City != "Cali" || stored.Phone != "3001234567" || stored.Role != "Cocinero" {
		t.Fatalf("unexpected merge result %+v", stored)
	}
}

func TestDiffOnlyIncludesChangedPresentFields(t *testing.T) {
	existing := &StoredLead{Name: "A", City: "Cali", Source: "landing"}
	p := Diff(existing, ContactRecord{Name: "A", City: "Bogotá", Phone: "3001234567", Source: "landing"})
	if p.Name != nil || p.Source != nil || p.Role != nil || p.Message != nil {
		t.Fatalf("unexpected fields in patch %+v", p)
	}
	if p.City == nil || *p.City != "Bogotá" || p.Phone == nil || *p.Phone != "3001234567" {
		t.Fatalf("expected city and phone in patch, got %+v", p)
	}
	cols, vals := p.Columns()
	if len(cols) != 2 || cols[0] != "city" || vals[1] != "3001234567" {
		t.Fatalf("unexpected columns %v %v", cols, vals)
	}
}

type stubStore struct {
	findErr   error
	found     *StoredLead
	insertErr error
	updateErr error
	updates   int
}

func (s *stubStore) FindByEmail(context.Context, string) (*StoredLead, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.found == nil {
		return nil, ErrLeadNotFound
	}
	return s.found, nil
}

func (s *stubStore) Insert(_ context.Context, rec ContactRecord) (*StoredLead, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	return &StoredLead{ID: "new", Email: rec.Email}, nil
}

func (s *stubStore) Update(context.Context, string, Patch) (time.Time, error) {
	s.updates++
	return time.Time{}, s.updateErr
}

func TestReconcileLookupFailureIsStoreUnavailable(t *testing.T) {
	r := NewReconciler(&stubStore{findErr: errors.New("connection refused")})
	_, err := r.Reconcile(context.Background(), ContactRecord{Email: "a@b.co"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestReconcileInsertFailureIsWriteFailed(t *testing.T) {
	r := NewReconciler(&stubStore{insertErr: errors.New("disk full")})
	_, err := r.Reconcile(context.Background(), ContactRecord{Email: "a@b.co"})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

func TestReconcileUpdateFailureIsWriteFailed(t *testing.T) {
	store := &stubStore{found: &StoredLead{ID: "1", Email: "a@b.co"}, updateErr: errors.New("timeout")}
	r := NewReconciler(store)
	_, err := r.Reconcile(context.Background(), ContactRecord{Email: "a@b.co", Name: "A"})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if store.updates != 1 {
		t.Fatalf("expected one update attempt, got %d", store.updates)
	}
}

func TestReconcileUniqueViolationWithoutRowIsWriteFailed(t *testing.T) {
	r := NewReconciler(&stubStore{insertErr: ErrUniqueViolation})
	_, err := r.Reconcile(context.Background(), ContactRecord{Email: "a@b.co"})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

// racingStore holds the first two lookups until both have run, so both callers
// see the email as absent and race on Insert.
type racingStore struct {
	*InMemoryRepository
	calls   atomic.Int32
	barrier sync.WaitGroup
}

func (s *racingStore) FindByEmail(ctx context.Context, email string) (*StoredLead, error) {
	if s.calls.Add(1) <= 2 {
		s.barrier.Done()
		s.barrier.Wait()
	}
	return s.InMemoryRepository.FindByEmail(ctx, email)
}

func TestReconcileConcurrentFirstSubmissions(t *testing.T) {
	store := &racingStore{InMemoryRepository: NewInMemoryRepository()}
	store.barrier.Add(2)
	r := NewReconciler(store)

	recs := []ContactRecord{
		{Email: "race@example.com", Name: "First", Source: "landing"},
		{Email: "race@example.com", Name: "Second", Source: "landing"},
	}
	outcomes := make([]Outcome, len(recs))
	errs := make([]error, len(recs))

	var wg sync.WaitGroup
	for i := range recs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Reconcile(context.Background(), recs[i])
			errs[i] = err
			if res != nil {
				outcomes[i] = res.Outcome
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	created := 0
	for _, o := range outcomes {
		switch o {
		case OutcomeCreated:
			created++
		case OutcomeUpdated, OutcomeUnchanged:
		default:
			t.Fatalf("unexpected outcome %q", o)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one created, got outcomes %v", outcomes)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored lead, got %d", store.Len())
	}
}
