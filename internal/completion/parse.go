package completion

import (
	"encoding/json"
	"regexp"
	"strings"

	apperrors "act-reconciliation-service/pkg/errors"
)

var (
	fencedRe   = regexp.MustCompile("(?is)```(?:json)?\\s*([\\s\\S]*?)```")
	thinkRe    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fragmentRe = regexp.MustCompile(`\{[^{}]*\}`)
)

// ArrayResult is the tagged outcome of parsing a completion response.
// Recovered marks a degraded parse assembled from individually
// well-formed object fragments; consumers must treat missing fields as
// absent either way, never as a hard error.
type ArrayResult struct {
	Items     []json.RawMessage
	Recovered bool
}

// ParseArray extracts a JSON array of objects from free-form
// completion text. The array may be wrapped in a fenced code block or
// surrounded by commentary; parsing locates the outermost bracket pair
// first and falls back to scanning for object fragments when
// whole-array parsing fails.
func ParseArray(text string) (*ArrayResult, error) {
	cleaned := strings.TrimSpace(thinkRe.ReplaceAllString(text, ""))
	if m := fencedRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start != -1 && end > start {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &items); err == nil {
			return &ArrayResult{Items: items}, nil
		}
	}

	var items []json.RawMessage
	for _, frag := range fragmentRe.FindAllString(cleaned, -1) {
		if json.Valid([]byte(frag)) {
			items = append(items, json.RawMessage(frag))
		}
	}
	if len(items) == 0 {
		return nil, apperrors.ExternalError(apperrors.CodeUnparseableResponse, "",
			nil).WithContext("responsePrefix", truncate(cleaned, 150))
	}
	return &ArrayResult{Items: items, Recovered: true}, nil
}

// Decode unmarshals every item into T, silently skipping malformed
// entries. An entry missing expected fields decodes to zero values.
func Decode[T any](result *ArrayResult) []T {
	if result == nil {
		return nil
	}
	out := make([]T, 0, len(result.Items))
	for _, raw := range result.Items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		out = append(out, item)
	}
	return out
}
