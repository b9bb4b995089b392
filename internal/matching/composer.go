package matching

import (
	"cmp"
	"slices"
	"strings"
)

// Compose builds the final result. A nil failure with a non-empty ranking
// keeps the model's order; anything else falls back to HeuristicRanking.
// Either way the result holds min(K, pool) ids.
func Compose(req *MatchRequest, ranked []string, failure error) Result {
	limit := req.Limit()
	if limit <= 0 {
		return Result{Matches: []string{}, Source: SourceHeuristic}
	}

	if failure != nil || len(ranked) == 0 {
		return Result{Matches: HeuristicRanking(req)[:limit], Source: SourceHeuristic}
	}

	inPool := make(map[string]struct{}, len(req.Candidates))
	for _, c := range req.Candidates {
		inPool[c.ID] = struct{}{}
	}

	matches := make([]string, 0, limit)
	used := make(map[string]struct{}, limit)
	for _, id := range ranked {
		if len(matches) == limit {
			break
		}
		if _, ok := inPool[id]; !ok {
			continue
		}
		if _, dup := used[id]; dup {
			continue
		}
		used[id] = struct{}{}
		matches = append(matches, id)
	}

	if len(matches) == 0 {
		return Result{Matches: HeuristicRanking(req)[:limit], Source: SourceHeuristic}
	}

	padded := 0
	if len(matches) < limit {
		for _, id := range HeuristicRanking(req) {
			if len(matches) == limit {
				break
			}
			if _, dup := used[id]; dup {
				continue
			}
			used[id] = struct{}{}
			matches = append(matches, id)
			padded++
		}
	}

	return Result{Matches: matches, Source: SourceModel, Padded: padded}
}

// HeuristicRanking orders the whole pool without the model: candidates whose
// niche matches the campaign come first, then higher follower counts, then
// pool order.
func HeuristicRanking(req *MatchRequest) []string {
	niches := campaignNiches(req.Campaign)

	type scored struct {
		id        string
		match     bool
		followers int64
	}

	pool := make([]scored, len(req.Candidates))
	for i, c := range req.Candidates {
		_, match := niches[normalizeNiche(c.Niche)]
		pool[i] = scored{id: c.ID, match: match && c.Niche != "", followers: c.Followers}
	}

	slices.SortStableFunc(pool, func(a, b scored) int {
		if a.match != b.match {
			if a.match {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.followers, a.followers)
	})

	ids := make([]string, len(pool))
	for i, s := range pool {
		ids[i] = s.id
	}
	return ids
}

func campaignNiches(c Campaign) map[string]struct{} {
	niches := make(map[string]struct{}, len(c.Tags)+1)
	for _, n := range append([]string{c.Niche}, c.Tags...) {
		if n = normalizeNiche(n); n != "" {
			niches[n] = struct{}{}
		}
	}
	return niches
}

func normalizeNiche(n string) string {
	return strings.ToLower(strings.TrimSpace(n))
}
