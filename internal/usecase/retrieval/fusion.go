package retrieval

import (
	"sort"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

// pruneThreshold drops weak tails after fusion; hits below it are usually
// irrelevant. fallbackTopN guarantees some context survives when every hit is
// weak.
const (
	pruneThreshold = 0.35
	fallbackTopN   = 3
)

// normalizeCollection min-max rescales one collection's raw scores to [0,1]
// using only that collection's result distribution. Raw similarity scales are
// backend- and collection-dependent, so cross-collection fusion is only
// meaningful after this rescaling. A zero range (all scores tied) substitutes
// 1.0 to avoid division by zero, mapping every hit to 0.
func normalizeCollection(hits []domain.Hit) []domain.Hit {
	if len(hits) == 0 {
		return hits
	}

	lo, hi := hits[0].RawScore(), hits[0].RawScore()
	for _, h := range hits[1:] {
		if h.RawScore() < lo {
			lo = h.RawScore()
		}
		if h.RawScore() > hi {
			hi = h.RawScore()
		}
	}

	rng := hi - lo
	if rng == 0 {
		rng = 1.0
	}

	out := make([]domain.Hit, len(hits))
	for i, h := range hits {
		out[i] = h.WithNormScore((h.RawScore() - lo) / rng)
	}
	return out
}

// fuse concatenates per-collection normalized hits, sorts them descending by
// (normalized score, raw score), and prunes the weak tail. Raw score breaks
// ties between hits whose normalized scores collide (a collection returning
// fewer than 2 distinct scores produces such collisions). When pruning would
// empty the set, the top fallbackTopN of the sorted list survive instead, so
// a caller always gets some context when any hits exist at all.
func fuse(perCollection [][]domain.Hit) []domain.Hit {
	var all []domain.Hit
	for _, hits := range perCollection {
		all = append(all, normalizeCollection(hits)...)
	}
	if len(all) == 0 {
		return nil
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].NormScore() != all[j].NormScore() {
			return all[i].NormScore() > all[j].NormScore()
		}
		return all[i].RawScore() > all[j].RawScore()
	})

	pruned := all[:0:len(all)]
	for _, h := range all {
		if h.NormScore() >= pruneThreshold {
			pruned = append(pruned, h)
		}
	}
	if len(pruned) == 0 {
		n := fallbackTopN
		if len(all) < n {
			n = len(all)
		}
		return all[:n]
	}
	return pruned
}
