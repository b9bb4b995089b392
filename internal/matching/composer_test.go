package matching

import (
	"errors"
	"slices"
	"testing"
)

func fitnessRequest(k int) *MatchRequest {
	return &MatchRequest{
		Campaign: Campaign{Title: "t", Description: "d", Niche: "fitness"},
		Candidates: []Candidate{
			{ID: "a", Niche: "fitness", Followers: 1000},
			{ID: "b", Niche: "beauty", Followers: 5000},
			{ID: "c", Niche: "fitness", Followers: 3000},
		},
		K: k,
	}
}

func TestHeuristicRanking(t *testing.T) {
	tests := []struct {
		name string
		req  *MatchRequest
		want []string
	}{
		{
			name: "niche first then followers",
			req:  fitnessRequest(3),
			want: []string{"c", "a", "b"},
		},
		{
			name: "niche match ignores case and spaces",
			req: &MatchRequest{
				Campaign: Campaign{Niche: " Fitness "},
				Candidates: []Candidate{
					{ID: "big", Niche: "travel", Followers: 9000},
					{ID: "fit", Niche: "FITNESS", Followers: 10},
				},
				K: 2,
			},
			want: []string{"fit", "big"},
		},
		{
			name: "tags count as niches",
			req: &MatchRequest{
				Campaign: Campaign{Niche: "fitness", Tags: []string{"wellness"}},
				Candidates: []Candidate{
					{ID: "x", Niche: "gaming", Followers: 100},
					{ID: "y", Niche: "wellness", Followers: 1},
				},
				K: 2,
			},
			want: []string{"y", "x"},
		},
		{
			name: "ties keep pool order",
			req: &MatchRequest{
				Campaign: Campaign{Niche: "food"},
				Candidates: []Candidate{
					{ID: "1", Niche: "food", Followers: 50},
					{ID: "2", Niche: "food", Followers: 50},
					{ID: "3", Followers: 50},
					{ID: "4", Followers: 50},
				},
				K: 4,
			},
			want: []string{"1", "2", "3", "4"},
		},
		{
			name: "empty niches never match",
			req: &MatchRequest{
				Campaign: Campaign{},
				Candidates: []Candidate{
					{ID: "small", Followers: 1},
					{ID: "large", Followers: 2},
				},
				K: 2,
			},
			want: []string{"large", "small"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HeuristicRanking(tc.req); !slices.Equal(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestComposeFallsBackOnFailure(t *testing.T) {
	res := Compose(fitnessRequest(2), nil, ErrParseFailure)

	if res.Source != SourceHeuristic {
		t.Fatalf("expected heuristic source, got %s", res.Source)
	}
	if !slices.Equal(res.Matches, []string{"c", "a"}) {
		t.Fatalf("unexpected matches: %v", res.Matches)
	}
}

func TestComposeUsesModelRanking(t *testing.T) {
	res := Compose(fitnessRequest(2), []string{"b", "a", "c"}, nil)

	if res.Source != SourceModel {
		t.Fatalf("expected model source, got %s", res.Source)
	}
	if !slices.Equal(res.Matches, []string{"b", "a"}) {
		t.Fatalf("unexpected matches: %v", res.Matches)
	}
	if res.Padded != 0 {
		t.Fatalf("expected no padding, got %d", res.Padded)
	}
}

func TestComposePadsShortModelRanking(t *testing.T) {
	res := Compose(fitnessRequest(3), []string{"b"}, nil)

	if res.Source != SourceModel {
		t.Fatalf("expected model source, got %s", res.Source)
	}
	if !slices.Equal(res.Matches, []string{"b", "c", "a"}) {
		t.Fatalf("unexpected matches: %v", res.Matches)
	}
	if res.Padded != 2 {
		t.Fatalf("expected 2 padded ids, got %d", res.Padded)
	}
}

func TestComposeGuardsPoolMembership(t *testing.T) {
	res := Compose(fitnessRequest(2), []string{"ghost", "a", "a"}, nil)

	if !slices.Equal(res.Matches, []string{"a", "c"}) {
		t.Fatalf("unexpected matches: %v", res.Matches)
	}

	onlyGhosts := Compose(fitnessRequest(2), []string{"ghost"}, nil)
	if onlyGhosts.Source != SourceHeuristic || !slices.Equal(onlyGhosts.Matches, []string{"c", "a"}) {
		t.Fatalf("expected heuristic fallback, got %+v", onlyGhosts)
	}
}

func TestComposeClampsToPool(t *testing.T) {
	res := Compose(fitnessRequest(5), nil, errors.New("model down"))
	if len(res.Matches) != 3 {
		t.Fatalf("expected 3 matches, got %v", res.Matches)
	}
}

func TestComposeEmptyPool(t *testing.T) {
	req := &MatchRequest{Campaign: Campaign{Niche: "fitness"}, K: 5}

	for _, res := range []Result{
		Compose(req, []string{"a"}, nil),
		Compose(req, nil, ErrParseFailure),
	} {
		if res.Matches == nil || len(res.Matches) != 0 {
			t.Fatalf("expected empty non-nil matches, got %#v", res.Matches)
		}
	}
}
