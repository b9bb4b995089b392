package matching

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "embed"
)

//go:embed prompt.md
var promptTemplate string

// BuildPrompt renders the model instruction for req. Identical requests give
// byte-identical prompts; candidates keep the pool order.
func BuildPrompt(req *MatchRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("match request is required")
	}

	campaignJSON, err := json.MarshalIndent(req.Campaign, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal campaign payload: %w", err)
	}

	candidates := req.Candidates
	if candidates == nil {
		candidates = []Candidate{}
	}
	candidatesJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates payload: %w", err)
	}

	r := strings.NewReplacer(
		"{{K}}", strconv.Itoa(req.Limit()),
		"{{POOL_SIZE}}", strconv.Itoa(len(candidates)),
		"{{CAMPAIGN_JSON}}", string(campaignJSON),
		"{{CANDIDATES_JSON}}", string(candidatesJSON),
	)

	return r.Replace(promptTemplate), nil
}
