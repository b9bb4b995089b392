package matching

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseRanking pulls a ranking out of free-form model output. Only ids from
// pool survive, each once, in the model's order, at most k of them
// (k <= 0 means no limit).
//
// JSON arrays are tried in the order they appear; the first one that names
// at least one pool id wins. When no array decodes as-is, the text from the
// first '[' is repaired and decoded once more.
func ParseRanking(raw string, pool []string, k int) ([]string, error) {
	valid := make(map[string]struct{}, len(pool))
	for _, id := range pool {
		valid[id] = struct{}{}
	}

	arrays := extractArrays(raw)
	if len(arrays) == 0 {
		if repaired, ok := repairArray(raw); ok {
			arrays = append(arrays, repaired)
		}
	}
	if len(arrays) == 0 {
		return nil, fmt.Errorf("%w: no json array found", ErrParseFailure)
	}

	for _, items := range arrays {
		kept := filterIDs(items, valid, k)
		if len(kept) > 0 {
			return kept, nil
		}
	}

	if len(pool) == 0 {
		return []string{}, nil
	}

	return nil, fmt.Errorf("%w: output names no candidate from the pool", ErrParseFailure)
}

// extractArrays decodes every top-level JSON array embedded in text.
func extractArrays(text string) [][]any {
	var arrays [][]any

	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(text[i:]))
		dec.UseNumber()

		var items []any
		if err := dec.Decode(&items); err != nil {
			continue
		}

		arrays = append(arrays, items)
		// Skip past the decoded array so nested arrays are not picked up again.
		i += int(dec.InputOffset()) - 1
	}

	return arrays
}

func repairArray(text string) ([]any, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return nil, false
	}

	segment := text[start:]
	if end := strings.LastIndexByte(segment, ']'); end >= 0 {
		segment = segment[:end+1]
	}

	fixed, err := jsonrepair.JSONRepair(segment)
	if err != nil {
		return nil, false
	}

	dec := json.NewDecoder(strings.NewReader(fixed))
	dec.UseNumber()

	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, false
	}

	return items, true
}

func filterIDs(items []any, valid map[string]struct{}, k int) []string {
	kept := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		if k > 0 && len(kept) == k {
			break
		}

		id, ok := tokenID(item)
		if !ok {
			continue
		}
		if _, ok := valid[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		kept = append(kept, id)
	}

	return kept
}

// tokenID accepts "id", 42 and {"id": "id"} shaped elements.
func tokenID(item any) (string, bool) {
	switch v := item.(type) {
	case string:
		id := strings.TrimSpace(v)
		return id, id != ""
	case json.Number:
		return v.String(), true
	case map[string]any:
		if inner, ok := v["id"]; ok {
			if _, nested := inner.(map[string]any); !nested {
				return tokenID(inner)
			}
		}
	}
	return "", false
}
