package leads

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var reconcileTracer = otel.Tracer("leadcapture.internal.leads.reconcile")

// Reconciler decides whether a submission creates a lead, updates one, or changes
// nothing. It keeps no state between calls; concurrent first submissions for one
// email are settled by the store's unique constraint.
type Reconciler struct {
	store Store
}

// NewReconciler wires a reconciler to store.
func NewReconciler(store Store) *Reconciler {
	if store == nil {
		panic("leads: store required")
	}
	return &Reconciler{store: store}
}

// Reconcile persists rec. Errors wrap ErrStoreUnavailable or ErrWriteFailed.
func (r *Reconciler) Reconcile(ctx context.Context, rec ContactRecord) (*Result, error) {
	ctx, span := reconcileTracer.Start(ctx, "leads.reconcile")
	defer span.End()

	res, err := r.reconcile(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("leads.outcome", string(res.Outcome)))
	return res, nil
}

func (r *Reconciler) reconcile(ctx context.Context, rec ContactRecord) (*Result, error) {
	existing, err := r.store.FindByEmail(ctx, rec.Email)
	switch {
	case err == nil:
		return r.merge(ctx, existing, rec)
	case !errors.Is(err, ErrLeadNotFound):
		return nil, fmt.Errorf("%w: lookup: %v", ErrStoreUnavailable, err)
	}

	created, err := r.store.Insert(ctx, rec)
	if err == nil {
		return &Result{Outcome: OutcomeCreated, Lead: created}, nil
	}
	if !errors.Is(err, ErrUniqueViolation) {
		return nil, fmt.Errorf("%w: insert: %v", ErrWriteFailed, err)
	}

	// Lost the race with a concurrent insert of the same email.
	existing, err = r.store.FindByEmail(ctx, rec.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup after conflict: %v", ErrWriteFailed, err)
	}
	return r.merge(ctx, existing, rec)
}

func (r *Reconciler) merge(ctx context.Context, existing *StoredLead, rec ContactRecord) (*Result, error) {
	patch := Diff(existing, rec)
	if patch.Empty() {
		return &Result{Outcome: OutcomeUnchanged, Lead: existing}, nil
	}
	updatedAt, err := r.store.Update(ctx, existing.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("%w: update: %v", ErrWriteFailed, err)
	}
	updated := *existing
	patch.ApplyTo(&updated)
	if !updatedAt.IsZero() {
		updated.UpdatedAt = updatedAt
	}
	return &Result{Outcome: OutcomeUpdated, Lead: &updated, Patch: patch}, nil
}

// Diff returns the fields rec supplies that differ from existing. Absent fields in
// rec never clear stored values.
func Diff(existing *StoredLead, rec ContactRecord) Patch {
	var p Patch
	pick := func(incoming, stored string) *string {
		if incoming == "" || incoming == stored {
			return nil
		}
		v := incoming
		return &v
	}
	p.Name = pick(rec.Name, existing.Name)
	p.City = pick(rec.City, existing.City)
	p.Role = pick(rec.Role, existing.Role)
	p.Phone = pick(rec.Phone, existing.Phone)
	p.Message = pick(rec.Message, existing.Message)
	p.Source = pick(rec.Source, existing.Source)
	return p
}
