package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/repolens/internal/models"
)

const demoSample = `// helper utilities
func Add(a, b int) (int, error) {
	if err := validate(a); err != nil {
		return 0, err
	}
	return a + b, nil
}
`

func TestDemoAnalyzerShape(t *testing.T) {
	demo := NewDemoAnalyzer()

	fa, err := demo.AnalyzeFile(context.Background(), "util.go", demoSample, "")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, fa.Overall, 0)
	assert.LessOrEqual(t, fa.Overall, 100)
	require.Len(t, fa.Categories, len(models.Categories))
	for _, cat := range models.Categories {
		result := fa.Categories[cat]
		assert.GreaterOrEqual(t, result.Score, 0, cat)
		assert.LessOrEqual(t, result.Score, 100, cat)
		assert.NotNil(t, result.Issues, cat)
		assert.NotNil(t, result.Recommendations, cat)
	}
}

func TestDemoAnalyzerDeterministic(t *testing.T) {
	demo := NewDemoAnalyzer()

	first, err := demo.AnalyzeFile(context.Background(), "util.go", demoSample, "")
	require.NoError(t, err)
	second, err := demo.AnalyzeFile(context.Background(), "util.go", demoSample, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDemoAnalyzerSignals(t *testing.T) {
	demo := NewDemoAnalyzer()
	ctx := context.Background()

	t.Run("missing error handling lowers the band", func(t *testing.T) {
		with, err := demo.AnalyzeFile(ctx, "a.js", "function f() { try { g() } catch (e) {} }", "")
		require.NoError(t, err)
		without, err := demo.AnalyzeFile(ctx, "b.js", "function f() { g() }", "")
		require.NoError(t, err)

		assert.Greater(t,
			with.Categories[models.CategoryErrorHandling].Score,
			without.Categories[models.CategoryErrorHandling].Score)
		assert.NotEmpty(t, without.Categories[models.CategoryErrorHandling].Issues)
	})

	t.Run("comments raise documentation", func(t *testing.T) {
		with, err := demo.AnalyzeFile(ctx, "a.py", "# docs\ndef f():\n    pass", "")
		require.NoError(t, err)
		without, err := demo.AnalyzeFile(ctx, "b.py", "def f():\n    pass", "")
		require.NoError(t, err)

		assert.Greater(t,
			with.Categories[models.CategoryDocumentation].Score,
			without.Categories[models.CategoryDocumentation].Score)
	})

	t.Run("long files score below short ones", func(t *testing.T) {
		long := strings.Repeat("x = 1\n", 700)
		short := "x = 1\n"

		longFA, err := demo.AnalyzeFile(ctx, "long.py", long, "")
		require.NoError(t, err)
		shortFA, err := demo.AnalyzeFile(ctx, "short.py", short, "")
		require.NoError(t, err)

		assert.Less(t, longFA.Overall, shortFA.Overall)
		assert.NotEmpty(t, longFA.Categories[models.CategoryStructure].Issues)
	})
}
