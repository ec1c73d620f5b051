package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moneta/internal/core"
)

// CategoryResolver maps a predicted label to a persisted category,
// creating one when no match exists.
type CategoryResolver struct {
	categories CategoryRepo
}

func NewCategoryResolver(categories CategoryRepo) *CategoryResolver {
	return &CategoryResolver{categories: categories}
}

// Resolve finds the category for a predicted label by case-insensitive
// exact name match plus exact type match. Labels are normalized to
// lower case before lookup and storage; a blank label falls back to the
// sentinel so every transaction ends up categorized.
func (r *CategoryResolver) Resolve(ctx context.Context, label string, t core.TransactionType) (core.Category, error) {
	if !t.Valid() {
		return core.Category{}, core.ErrInvalidTransactionType
	}
	name := strings.ToLower(strings.TrimSpace(label))
	if name == "" {
		name = SentinelLabel
	}

	cat, err := r.categories.FindByNameAndType(ctx, name, t)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, core.ErrCategoryNotFound) {
		return core.Category{}, fmt.Errorf("look up category %q: %w", name, err)
	}

	created, err := r.categories.Create(ctx, core.Category{
		Name:        name,
		Type:        t,
		Description: fmt.Sprintf("Automatically created for %s transactions", t),
	})
	if err != nil {
		// A concurrent resolve may have created it first; the unique key
		// on (lower(name), type) makes the re-lookup authoritative.
		if cat, lookupErr := r.categories.FindByNameAndType(ctx, name, t); lookupErr == nil {
			return cat, nil
		}
		return core.Category{}, fmt.Errorf("create category %q: %w", name, err)
	}
	return created, nil
}
