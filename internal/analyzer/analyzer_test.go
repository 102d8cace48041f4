package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/repolens/internal/apperr"
	"github.com/joescharf/repolens/internal/cache"
	"github.com/joescharf/repolens/internal/github"
	"github.com/joescharf/repolens/internal/models"
)

// fakeGitHub serves a canned tree and contents, counting calls.
type fakeGitHub struct {
	tree      []models.TreeEntry
	contents  map[string]string
	failPaths map[string]error
	treeCalls int
	fetched   []string
}

func (f *fakeGitHub) ListTree(_ context.Context, _ github.RepoRef) ([]models.TreeEntry, error) {
	f.treeCalls++
	return f.tree, nil
}

func (f *fakeGitHub) FetchFileContent(_ context.Context, _ github.RepoRef, path string) (string, error) {
	f.fetched = append(f.fetched, path)
	if err, ok := f.failPaths[path]; ok {
		return "", err
	}
	return f.contents[path], nil
}

func (f *fakeGitHub) CheckQuota(_ context.Context) (*models.QuotaStatus, error) {
	return &models.QuotaStatus{Limit: 5000, Remaining: 4999, ResetAt: time.Now()}, nil
}

// fakeAnalyzer returns a fixed per-path score.
type fakeAnalyzer struct {
	scores map[string]int
	issues map[string][]string
	calls  int
}

func (f *fakeAnalyzer) AnalyzeFile(_ context.Context, path, _, _ string) (*models.FileAnalysis, error) {
	f.calls++
	fa := &models.FileAnalysis{
		Overall:    f.scores[path],
		Categories: make(map[models.Category]models.CategoryResult),
	}
	for _, cat := range models.Categories {
		fa.Categories[cat] = models.CategoryResult{Score: f.scores[path], Issues: []string{}, Recommendations: []string{}}
	}
	if issues, ok := f.issues[path]; ok {
		fa.Categories[models.CategoryStructure] = models.CategoryResult{
			Score: f.scores[path], Issues: issues, Recommendations: []string{},
		}
	}
	return fa, nil
}

func sourceEntry(path string, size int64) models.TreeEntry {
	return models.TreeEntry{Path: path, Kind: models.TreeEntryFile, SizeBytes: size, ContentID: path}
}

func newTestService(gh *fakeGitHub, fa *fakeAnalyzer) *Service {
	return NewService(gh, fa, fa, cache.New(), WithPacing(0))
}

func threeFileRepo() (*fakeGitHub, *fakeAnalyzer) {
	gh := &fakeGitHub{
		tree: []models.TreeEntry{
			sourceEntry("main.go", 500),
			sourceEntry("src/a.go", 300),
			sourceEntry("src/b.go", 200),
			{Path: "README.md", Kind: models.TreeEntryFile, SizeBytes: 100},
		},
		contents: map[string]string{
			"main.go": "package main", "src/a.go": "package a", "src/b.go": "package b",
		},
	}
	fa := &fakeAnalyzer{scores: map[string]int{"main.go": 80, "src/a.go": 72, "src/b.go": 65}}
	return gh, fa
}

func TestAnalyzeReport(t *testing.T) {
	gh, fa := threeFileRepo()
	svc := newTestService(gh, fa)
	limit := 10

	report, err := svc.Analyze(context.Background(), Request{RepoURL: "o/r", FileLimit: &limit})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.FilesAnalyzed)
	assert.Equal(t, 3, report.Summary.TotalCodeFiles)
	assert.Equal(t, 10, report.Summary.RequestedFileLimit)
	// round(mean(80, 72, 65)) = round(72.33) = 72
	assert.Equal(t, 72, report.Summary.OverallQuality)
	assert.Equal(t, 72, report.Quality.Score)
	assert.NotEmpty(t, report.Summary.Timestamp)

	paths := make([]string, len(report.Files))
	for i, f := range report.Files {
		paths[i] = f.File
	}
	assert.ElementsMatch(t, []string{"main.go", "src/a.go", "src/b.go"}, paths)
}

func TestAnalyzeEmptyRepo(t *testing.T) {
	gh := &fakeGitHub{tree: nil}
	svc := newTestService(gh, &fakeAnalyzer{})

	report, err := svc.Analyze(context.Background(), Request{RepoURL: "o/empty"})
	require.NoError(t, err)
	assert.Zero(t, report.Summary.FilesAnalyzed)
	assert.Zero(t, report.Summary.OverallQuality)
	assert.Empty(t, report.Files)
	assert.Empty(t, report.Quality.TopIssues)
}

func TestAnalyzeSwallowsPerFileFailures(t *testing.T) {
	gh, fa := threeFileRepo()
	gh.failPaths = map[string]error{"src/a.go": apperr.ErrNotFound}
	svc := newTestService(gh, fa)

	report, err := svc.Analyze(context.Background(), Request{RepoURL: "o/r"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.FilesAnalyzed)
	// round(mean(80, 65)) = 73
	assert.Equal(t, 73, report.Summary.OverallQuality)
}

func TestOversizedFileSkippedWithoutFetch(t *testing.T) {
	gh, fa := threeFileRepo()
	gh.tree = append(gh.tree, sourceEntry("src/huge.go", github.MaxFileSize+1))
	svc := newTestService(gh, fa)

	report, err := svc.Analyze(context.Background(), Request{RepoURL: "o/r"})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.FilesAnalyzed)
	assert.NotContains(t, gh.fetched, "src/huge.go")
}

func TestAnalyzeCacheHit(t *testing.T) {
	gh, fa := threeFileRepo()
	svc := newTestService(gh, fa)

	first, err := svc.Analyze(context.Background(), Request{RepoURL: "o/r"})
	require.NoError(t, err)

	second, err := svc.Analyze(context.Background(), Request{RepoURL: "o/r"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, gh.treeCalls)
	assert.Equal(t, 3, fa.calls)

	t.Run("different limit misses", func(t *testing.T) {
		limit := 2
		_, err := svc.Analyze(context.Background(), Request{RepoURL: "o/r", FileLimit: &limit})
		require.NoError(t, err)
		assert.Equal(t, 2, gh.treeCalls)
	})
}

func TestAnalyzeExplicitPaths(t *testing.T) {
	gh, fa := threeFileRepo()
	svc := newTestService(gh, fa)

	report, err := svc.Analyze(context.Background(), Request{
		RepoURL:   "o/r",
		FilePaths: []string{"src/b.go", "does/not/exist.go"},
	})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "src/b.go", report.Files[0].File)
}

func TestAnalyzeValidation(t *testing.T) {
	svc := newTestService(&fakeGitHub{}, &fakeAnalyzer{})

	_, err := svc.Analyze(context.Background(), Request{RepoURL: ""})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Analyze(context.Background(), Request{RepoURL: "%%%"})
	assert.ErrorIs(t, err, apperr.ErrInvalidReference)
}

func TestTopIssuesTruncation(t *testing.T) {
	gh, fa := threeFileRepo()
	many := make([]string, 8)
	for i := range many {
		many[i] = "issue"
	}
	fa.issues = map[string][]string{"main.go": many, "src/a.go": many}
	svc := newTestService(gh, fa)

	report, err := svc.Analyze(context.Background(), Request{RepoURL: "o/r"})
	require.NoError(t, err)
	assert.Equal(t, 16, report.Quality.IssueCount)
	assert.Len(t, report.Quality.TopIssues, 10)
	// Issues accumulate in analysis order: all of the first file's before
	// the second file's.
	assert.Equal(t, "main.go", report.Quality.TopIssues[0].File)
}

func TestStreamEventOrder(t *testing.T) {
	gh, fa := threeFileRepo()
	svc := newTestService(gh, fa)

	var events []Event
	for e := range svc.Stream(context.Background(), Request{RepoURL: "o/r"}) {
		events = append(events, e)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, StageValidation, events[0].Stage)
	assert.Equal(t, StageComplete, events[len(events)-1].Stage)

	prev := 0
	sawAnalyzing := false
	for _, e := range events {
		assert.GreaterOrEqual(t, e.Progress, prev, "progress must not decrease")
		prev = e.Progress
		if e.Stage == StageAnalyzingFile {
			sawAnalyzing = true
			assert.Positive(t, e.Current)
			assert.Equal(t, 3, e.Total)
		}
	}
	assert.True(t, sawAnalyzing)

	final := events[len(events)-1]
	report, ok := final.Data.(*models.AnalysisReport)
	require.True(t, ok)
	assert.Equal(t, 3, report.Summary.FilesAnalyzed)
}

func TestStreamCachedRun(t *testing.T) {
	gh, fa := threeFileRepo()
	svc := newTestService(gh, fa)

	_, err := svc.Analyze(context.Background(), Request{RepoURL: "o/r"})
	require.NoError(t, err)

	var last Event
	for e := range svc.Stream(context.Background(), Request{RepoURL: "o/r"}) {
		last = e
	}
	assert.Equal(t, StageCached, last.Stage)
	assert.Equal(t, 1, gh.treeCalls)
}

func TestStreamFileError(t *testing.T) {
	gh, fa := threeFileRepo()
	gh.failPaths = map[string]error{"src/a.go": apperr.ErrNotFound}
	svc := newTestService(gh, fa)

	stages := map[Stage]bool{}
	for e := range svc.Stream(context.Background(), Request{RepoURL: "o/r"}) {
		stages[e.Stage] = true
	}
	assert.True(t, stages[StageFileError])
	assert.True(t, stages[StageComplete])
}

func TestStreamErrorTerminal(t *testing.T) {
	svc := newTestService(&fakeGitHub{}, &fakeAnalyzer{})

	var events []Event
	for e := range svc.Stream(context.Background(), Request{RepoURL: "%%%"}) {
		events = append(events, e)
	}
	final := events[len(events)-1]
	assert.Equal(t, StageError, final.Stage)
	data, ok := final.Data.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "INVALID_REFERENCE", data["code"])
}

func TestCancellationAbandonsRun(t *testing.T) {
	gh, fa := threeFileRepo()
	c := cache.New()
	svc := NewService(gh, fa, fa, c, WithPacing(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range svc.Stream(ctx, Request{RepoURL: "o/r"}) {
		}
	}()
	// Let the first file start, then disconnect.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Less(t, fa.calls, 3)
	assert.Zero(t, c.Len(), "no partial result is cached")
}

func TestNormalizeFileLimit(t *testing.T) {
	n := func(v int) *int { return &v }

	assert.Equal(t, DefaultFileLimit, NormalizeFileLimit(nil))
	assert.Equal(t, MinFileLimit, NormalizeFileLimit(n(0)))
	assert.Equal(t, MinFileLimit, NormalizeFileLimit(n(-3)))
	assert.Equal(t, MaxFileLimit, NormalizeFileLimit(n(999)))
	assert.Equal(t, 25, NormalizeFileLimit(n(25)))
}

func TestParseFileLimit(t *testing.T) {
	assert.Equal(t, DefaultFileLimit, ParseFileLimit(""))
	assert.Equal(t, DefaultFileLimit, ParseFileLimit("lots"))
	assert.Equal(t, 5, ParseFileLimit(" 5 "))
	assert.Equal(t, MaxFileLimit, ParseFileLimit("100"))
}
