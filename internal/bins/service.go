package bins

import (
	"context"
	"fmt"

	"github.com/cleancity/wastetrack/internal/validation"
)

// Service provides business logic for the bin registry.
type Service struct {
	repo Repository
}

// NewService constructs a bin service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns every bin newest first.
func (s *Service) List(ctx context.Context) ([]Bin, error) {
	return s.repo.List(ctx)
}

// Create validates and stores a bin. Capacity defaults to medium.
func (s *Service) Create(ctx context.Context, in Input) (Bin, error) {
	norm, errs := in.Normalize()
	if !errs.Empty() {
		return Bin{}, errs
	}
	return s.repo.Insert(ctx, norm.apply(Bin{}))
}

// Update validates and overwrites a bin.
func (s *Service) Update(ctx context.Context, id string, in Input) (Bin, error) {
	norm, errs := in.Normalize()
	if !errs.Empty() {
		return Bin{}, errs
	}
	return s.repo.Update(ctx, norm.apply(Bin{ID: id}))
}

// Delete removes a bin.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Import validates every entry first and stores the whole list atomically.
// Field errors are keyed by list position, e.g. "2.area".
func (s *Service) Import(ctx context.Context, inputs []Input) (int, error) {
	errs := validation.Errors{}
	batch := make([]Bin, 0, len(inputs))
	for i, in := range inputs {
		norm, fieldErrs := in.Normalize()
		for field, msg := range fieldErrs {
			errs.Add(fmt.Sprintf("%d.%s", i+1, field), msg)
		}
		batch = append(batch, norm.apply(Bin{}))
	}
	if !errs.Empty() {
		return 0, errs
	}
	if len(batch) == 0 {
		return 0, nil
	}
	return s.repo.InsertBatch(ctx, batch)
}
