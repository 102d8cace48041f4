package llm

import (
	"encoding/json"

	"github.com/joescharf/repolens/internal/apperr"
	"github.com/joescharf/repolens/internal/models"
)

// ExtractJSON scans raw for the first balanced {...} span and parses it.
// Provider responses sometimes wrap the object in prose or fencing, so the
// scan ignores everything outside the span. Braces inside JSON strings are
// tracked so they never unbalance the count.
func ExtractJSON(raw string) (json.RawMessage, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				span := raw[start : i+1]
				if !json.Valid([]byte(span)) {
					return nil, apperr.ErrMalformedPayload
				}
				return json.RawMessage(span), nil
			}
		}
	}
	return nil, apperr.ErrNoStructuredPayload
}

// clampScore forces a score into [0, 100].
func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// ParseFileAnalysis extracts the structured analysis from a raw provider
// response. Missing categories are filled with neutral results so the
// report shape is always complete; scores are clamped into range.
func ParseFileAnalysis(raw string) (*models.FileAnalysis, error) {
	span, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var fa models.FileAnalysis
	if err := json.Unmarshal(span, &fa); err != nil {
		return nil, apperr.ErrMalformedPayload.Wrap(err)
	}

	fa.Overall = clampScore(fa.Overall)
	if fa.Categories == nil {
		fa.Categories = make(map[models.Category]models.CategoryResult, len(models.Categories))
	}
	for _, cat := range models.Categories {
		result, ok := fa.Categories[cat]
		if !ok {
			fa.Categories[cat] = models.CategoryResult{Score: fa.Overall, Issues: []string{}, Recommendations: []string{}}
			continue
		}
		result.Score = clampScore(result.Score)
		if result.Issues == nil {
			result.Issues = []string{}
		}
		if result.Recommendations == nil {
			result.Recommendations = []string{}
		}
		fa.Categories[cat] = result
	}
	return &fa, nil
}
