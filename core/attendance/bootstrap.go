package attendance

import (
	"context"

	"github.com/pkg/errors"
)

// EnsureInitialized writes the sentinel record when the collection is empty,
// so that tooling which needs an existing collection can see it.
func EnsureInitialized(ctx context.Context, repo Repository) (bool, error) {
	empty, err := repo.IsEmpty(ctx)
	if err != nil {
		return false, errors.Wrap(err, "checking attendance collection")
	}
	if !empty {
		return false, nil
	}
	if err := repo.AddSentinel(ctx); err != nil {
		return false, errors.Wrap(err, "adding sentinel record")
	}
	return true, nil
}
