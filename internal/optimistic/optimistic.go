// Package optimistic is the shared transaction-like helper for local-first
// mutations: apply a change to the reactive cache immediately, run the remote
// call, and restore the pre-mutation snapshot exactly if the remote call
// fails. All entity services share this one implementation instead of
// carrying near-duplicate rollback code.
package optimistic

import (
	"context"

	"github.com/dailysync/keeper/internal/store"
)

// Mutate applies `apply` to the cache optimistically, then runs `remote`.
// remote may return a reconcile function which is applied on success, used to
// fold server-assigned fields (id, timestamps) back into local state. On
// error the snapshot taken before `apply` is restored and the error returned.
//
// remote == nil means local-only mode: the optimistic state is final.
func Mutate[T any](
	ctx context.Context,
	cache *store.Cache[[]T],
	apply func(prev []T) []T,
	remote func(ctx context.Context) (reconcile func(cur []T) []T, err error),
) error {
	snapshot := cache.Get()
	cache.Set(ctx, apply)

	if remote == nil {
		return nil
	}

	reconcile, err := remote(ctx)
	if err != nil {
		// Restore the exact pre-mutation list so the caller's view matches
		// what was actually saved.
		cache.SetValue(ctx, snapshot)
		return err
	}
	if reconcile != nil {
		cache.Set(ctx, reconcile)
	}
	return nil
}
