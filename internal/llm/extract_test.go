package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/repolens/internal/apperr"
	"github.com/joescharf/repolens/internal/models"
)

func TestExtractJSON(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		span, err := ExtractJSON(`{"overall": 80}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"overall": 80}`, string(span))
	})

	t.Run("object wrapped in prose", func(t *testing.T) {
		raw := "Here is the analysis:\n```json\n{\"overall\": 72, \"nested\": {\"a\": 1}}\n```\nHope that helps!"
		span, err := ExtractJSON(raw)
		require.NoError(t, err)
		assert.JSONEq(t, `{"overall": 72, "nested": {"a": 1}}`, string(span))
	})

	t.Run("braces inside strings do not unbalance", func(t *testing.T) {
		raw := `{"issue": "unmatched { in string", "ok": true}`
		span, err := ExtractJSON(raw)
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(span))
	})

	t.Run("no object", func(t *testing.T) {
		_, err := ExtractJSON("the model refused to answer")
		assert.ErrorIs(t, err, apperr.ErrNoStructuredPayload)
	})

	t.Run("unterminated object", func(t *testing.T) {
		_, err := ExtractJSON(`{"overall": 80`)
		assert.ErrorIs(t, err, apperr.ErrNoStructuredPayload)
	})

	t.Run("balanced but invalid", func(t *testing.T) {
		_, err := ExtractJSON(`{overall: 80}`)
		assert.ErrorIs(t, err, apperr.ErrMalformedPayload)
	})
}

func TestParseFileAnalysis(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		raw := `{
			"overall": 85,
			"categories": {
				"structure": {"score": 90, "issues": ["too deep"], "recommendations": ["flatten"]},
				"naming": {"score": 80, "issues": [], "recommendations": []},
				"errorHandling": {"score": 85, "issues": [], "recommendations": []},
				"documentation": {"score": 70, "issues": [], "recommendations": []},
				"testing": {"score": 75, "issues": [], "recommendations": []}
			}
		}`
		fa, err := ParseFileAnalysis(raw)
		require.NoError(t, err)
		assert.Equal(t, 85, fa.Overall)
		assert.Equal(t, 90, fa.Categories[models.CategoryStructure].Score)
		assert.Equal(t, []string{"too deep"}, fa.Categories[models.CategoryStructure].Issues)
	})

	t.Run("missing categories are filled", func(t *testing.T) {
		fa, err := ParseFileAnalysis(`{"overall": 60}`)
		require.NoError(t, err)
		require.Len(t, fa.Categories, len(models.Categories))
		for _, cat := range models.Categories {
			assert.Equal(t, 60, fa.Categories[cat].Score)
			assert.NotNil(t, fa.Categories[cat].Issues)
			assert.NotNil(t, fa.Categories[cat].Recommendations)
		}
	})

	t.Run("scores clamp into range", func(t *testing.T) {
		raw := `{"overall": 140, "categories": {"naming": {"score": -5}}}`
		fa, err := ParseFileAnalysis(raw)
		require.NoError(t, err)
		assert.Equal(t, 100, fa.Overall)
		assert.Equal(t, 0, fa.Categories[models.CategoryNaming].Score)
	})
}

func TestBuildPrompt(t *testing.T) {
	system, user := buildPrompt("src/app.ts", "const x = 1")

	assert.Contains(t, system, `"overall"`)
	for _, cat := range models.Categories {
		assert.Contains(t, system, string(cat))
	}
	assert.Contains(t, user, "src/app.ts")
	assert.Contains(t, user, "const x = 1")
}

func TestIsOverrideKey(t *testing.T) {
	assert.True(t, IsOverrideKey("sk-ant-abc123"))
	assert.False(t, IsOverrideKey("sk-openai-abc"))
	assert.False(t, IsOverrideKey(""))
}
