package matching

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// DefaultK is used when neither the request nor the configuration set K.
const DefaultK = 5

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeStats describes what normalization did to the pool.
type NormalizeStats struct {
	Initial int
	Dropped int
	Left    int
}

// Normalize validates raw input and builds a MatchRequest. Duplicate
// candidate ids keep their first occurrence. The raw values are not modified.
func Normalize(raw RawRequest, defaultK int) (*MatchRequest, NormalizeStats, error) {
	if defaultK <= 0 {
		defaultK = DefaultK
	}

	k := defaultK
	if raw.K != nil {
		k = *raw.K
	}
	if k <= 0 {
		return nil, NormalizeStats{}, invalid("k", "must be greater than zero, got %d", k)
	}

	campaign, err := normalizeCampaign(raw.Campaign)
	if err != nil {
		return nil, NormalizeStats{}, err
	}

	items, ok := raw.Candidates.([]any)
	if !ok {
		if raw.Candidates == nil {
			return nil, NormalizeStats{}, invalid("candidates", "is required")
		}
		return nil, NormalizeStats{}, invalid("candidates", "must be an array of objects")
	}

	stats := NormalizeStats{Initial: len(items)}
	seen := make(map[string]struct{}, len(items))
	candidates := make([]Candidate, 0, len(items))

	for i, item := range items {
		candidate, err := normalizeCandidate(i, item)
		if err != nil {
			return nil, NormalizeStats{}, err
		}

		if _, dup := seen[candidate.ID]; dup {
			stats.Dropped++
			continue
		}
		seen[candidate.ID] = struct{}{}
		candidates = append(candidates, candidate)
	}
	stats.Left = len(candidates)

	return &MatchRequest{Campaign: campaign, Candidates: candidates, K: k}, stats, nil
}

func normalizeCampaign(raw any) (Campaign, error) {
	var campaign Campaign

	fields, ok := raw.(map[string]any)
	if !ok {
		if raw == nil {
			return campaign, invalid("campaign", "is required")
		}
		return campaign, invalid("campaign", "must be an object")
	}

	if err := decode(fields, &campaign); err != nil {
		return campaign, invalid("campaign", "%s", err)
	}

	campaign.ID = strings.TrimSpace(campaign.ID)
	campaign.Title = strings.TrimSpace(campaign.Title)
	campaign.Description = strings.TrimSpace(campaign.Description)
	campaign.Niche = strings.TrimSpace(campaign.Niche)
	campaign.Tags = compact(campaign.Tags)
	campaign.Locations = compact(campaign.Locations)
	campaign.ContentTypes = compact(campaign.ContentTypes)

	if err := validate.Struct(campaign); err != nil {
		return campaign, validationError("campaign", err)
	}

	return campaign, nil
}

func normalizeCandidate(index int, raw any) (Candidate, error) {
	var candidate Candidate
	field := fmt.Sprintf("candidates[%d]", index)

	fields, ok := raw.(map[string]any)
	if !ok {
		return candidate, invalid(field, "must be an object")
	}

	if err := decode(fields, &candidate); err != nil {
		return candidate, invalid(field, "%s", err)
	}

	candidate.ID = strings.TrimSpace(candidate.ID)
	candidate.Niche = strings.TrimSpace(candidate.Niche)

	if err := validate.Struct(candidate); err != nil {
		return candidate, validationError(field, err)
	}

	return candidate, nil
}

// decode copies a JSON object into target, accepting loosely typed scalars
// such as "followers": "1200" or a numeric id.
func decode(input map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func validationError(prefix string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid(prefix, "%s", err)
	}

	fe := verrs[0]
	field := prefix + "." + fe.Field()
	switch fe.Tag() {
	case "required":
		return invalid(field, "is required")
	case "gte":
		return invalid(field, "must be at least %s", fe.Param())
	default:
		return invalid(field, "failed %s check", fe.Tag())
	}
}

func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
