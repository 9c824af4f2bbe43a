package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface the Reconciler needs. Implementations must
// enforce uniqueness of the lowercased email and report collisions on Insert as
// ErrUniqueViolation.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*StoredLead, error)
	Insert(ctx context.Context, rec ContactRecord) (*StoredLead, error)
	// Update writes patch and returns the lead's new updated_at.
	Update(ctx context.Context, id string, patch Patch) (time.Time, error)
}

// Lister is implemented by stores that can serve the admin listing.
type Lister interface {
	List(ctx context.Context, filter ListFilter) ([]*StoredLead, error)
	GetByID(ctx context.Context, id string) (*StoredLead, error)
}

// InMemoryRepository keeps leads in process memory. Used in development and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	leads   map[string]*StoredLead
	byEmail map[string]string
	now     func() time.Time
}

var (
	_ Store  = (*InMemoryRepository)(nil)
	_ Lister = (*InMemoryRepository)(nil)
)

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads:   make(map[string]*StoredLead),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// FindByEmail returns a copy of the lead for email or ErrLeadNotFound.
func (r *InMemoryRepository) FindByEmail(ctx context.Context, email string) (*StoredLead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrLeadNotFound
	}
	lead := *r.leads[id]
	return &lead, nil
}

// Insert stores a new lead, failing with ErrUniqueViolation when the email exists.
func (r *InMemoryRepository) Insert(ctx context.Context, rec ContactRecord) (*StoredLead, error) {
	email := NormalizeEmail(rec.Email)
	now := r.now()
	lead := &StoredLead{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      rec.Name,
		City:      rec.City,
		Role:      rec.Role,
		Phone:     rec.Phone,
		Message:   rec.Message,
		Source:    rec.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[email]; exists {
		return nil, ErrUniqueViolation
	}
	r.leads[lead.ID] = lead
	r.byEmail[email] = lead.ID

	out := *lead
	return &out, nil
}

// Update applies patch to the lead with id.
func (r *InMemoryRepository) Update(ctx context.Context, id string, patch Patch) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok {
		return time.Time{}, ErrLeadNotFound
	}
	patch.ApplyTo(lead)
	lead.UpdatedAt = r.now()
	return lead.UpdatedAt, nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*StoredLead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	out := *lead
	return &out, nil
}

// List returns leads newest first.
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*StoredLead, error) {
	r.mu.RLock()
	all := make([]*StoredLead, 0, len(r.leads))
	for _, lead := range r.leads {
		cp := *lead
		all = append(all, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if filter.Offset >= len(all) {
		return []*StoredLead{}, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

// Len returns the number of stored leads.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.leads)
}
