package workcache

import (
	"bytes"
	"context"

	"golang.org/x/sync/errgroup"

	"esvc/internal/ehash"
	"esvc/internal/graph"
)

// CheckPairwiseMergeable reports whether every pair of the given frontier
// hashes, each replayed independently from ∅ on its own cloned cache,
// produces payload stores that agree wherever they overlap — the
// necessary precondition for the frontiers to be mergeable without a
// conflict. Ported from original_source/.../workcache.rs's
// check_if_mergable, whose rayon into_par_iter pairwise scan spec.md §5
// calls out explicitly as the one place true parallel execution is
// required rather than merely permitted.
func (wc *WorkCache) CheckPairwiseMergeable(ctx context.Context, frontiers []ehash.Hash) (bool, error) {
	if len(frontiers) < 2 {
		return true, nil
	}

	stores := make([]map[string][]byte, len(frontiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range frontiers {
		i, h := i, h
		g.Go(func() error {
			clone := wc.Clone()
			targets := map[ehash.Hash]graph.IncludeSpec{h: graph.IncludeAll}
			if _, _, err := clone.RunForeachRecursively(targets); err != nil {
				return err
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			clone.mu.Lock()
			stores[i] = clone.store
			clone.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	for i := 0; i < len(stores); i++ {
		for j := i + 1; j < len(stores); j++ {
			if !storesAgree(stores[i], stores[j]) {
				return false, nil
			}
		}
	}
	return true, nil
}

// storesAgree reports whether two cache stores assign the same payload
// to every key present in both. Disjoint keys are not a disagreement:
// two frontiers naturally populate different subsets of the closure.
func storesAgree(a, b map[string][]byte) bool {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for k, v := range small {
		if ov, ok := large[k]; ok && !bytes.Equal(v, ov) {
			return false
		}
	}
	return true
}
