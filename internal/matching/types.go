package matching

// Campaign is the brief candidates are ranked against.
type Campaign struct {
	ID           string   `json:"id,omitempty" mapstructure:"id"`
	Title        string   `json:"title" mapstructure:"title" validate:"required"`
	Description  string   `json:"description" mapstructure:"description" validate:"required"`
	Niche        string   `json:"niche,omitempty" mapstructure:"niche"`
	Tags         []string `json:"tags,omitempty" mapstructure:"tags"`
	Locations    []string `json:"locations,omitempty" mapstructure:"locations"`
	Budget       float64  `json:"budget,omitempty" mapstructure:"budget" validate:"gte=0"`
	ContentTypes []string `json:"content_types,omitempty" mapstructure:"content_types"`
}

// Candidate is one influencer in the pool.
type Candidate struct {
	ID             string  `json:"id" mapstructure:"id" validate:"required"`
	Name           string  `json:"name,omitempty" mapstructure:"name"`
	Niche          string  `json:"niche,omitempty" mapstructure:"niche"`
	Followers      int64   `json:"followers" mapstructure:"followers" validate:"gte=0"`
	EngagementRate float64 `json:"engagement_rate,omitempty" mapstructure:"engagement_rate"`
	Location       string  `json:"location,omitempty" mapstructure:"location"`
	Bio            string  `json:"bio,omitempty" mapstructure:"bio"`
}

// RawRequest is the decoded but unvalidated request body.
type RawRequest struct {
	Campaign   any
	Candidates any
	K          *int
}

// MatchRequest is a normalized request: candidates are unique by id and keep
// their original order.
type MatchRequest struct {
	Campaign   Campaign
	Candidates []Candidate
	K          int
}

// IDs returns the candidate ids in pool order.
func (r *MatchRequest) IDs() []string {
	ids := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		ids[i] = c.ID
	}
	return ids
}

// Limit is min(K, pool size).
func (r *MatchRequest) Limit() int {
	return min(r.K, len(r.Candidates))
}

// Source tells where a ranking came from.
type Source string

const (
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
)

// Result is the ranked shortlist.
type Result struct {
	Matches []string
	Source  Source
	// Dropped counts duplicate candidates removed during normalization.
	Dropped int
	// Padded counts ids appended from the heuristic to a short model ranking.
	Padded int
}
