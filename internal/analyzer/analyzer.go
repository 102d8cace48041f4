// Package analyzer orchestrates one repository analysis: reference parse,
// tree fetch, file selection, per-file provider calls, aggregation, and
// report caching, with progress events emitted at every transition.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/repolens/internal/apperr"
	"github.com/joescharf/repolens/internal/cache"
	"github.com/joescharf/repolens/internal/github"
	"github.com/joescharf/repolens/internal/llm"
	"github.com/joescharf/repolens/internal/models"
	"github.com/joescharf/repolens/internal/selection"
)

// File-limit bounds. Out-of-range limits clamp; a missing limit defaults.
const (
	DefaultFileLimit = 10
	MinFileLimit     = 1
	MaxFileLimit     = 50
	MaxExplicitPaths = 50
)

// defaultPacing is the delay between provider calls, a backpressure
// choice that respects the provider's per-key throughput.
const defaultPacing = 500 * time.Millisecond

// Request describes one analysis run.
type Request struct {
	RepoURL   string   `json:"repoUrl"`
	APIKey    string   `json:"apiKey,omitempty"`
	FileLimit *int     `json:"fileLimit,omitempty"`
	FilePaths []string `json:"filePaths,omitempty"`
}

// Service runs analysis requests. All collaborators are injected so tests
// can swap any of them.
type Service struct {
	github   github.Client
	standard llm.Analyzer // used when no override credential is supplied
	live     llm.Analyzer // used for override-credential calls
	cache    *cache.Cache
	pacing   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPacing overrides the inter-file delay (tests set zero).
func WithPacing(d time.Duration) ServiceOption {
	return func(s *Service) { s.pacing = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock used for report timestamps. Tests only.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the orchestrator. standard is the analyzer for
// unauthenticated calls (live when a system credential exists, demo
// otherwise); live handles override-credential calls.
func NewService(gh github.Client, standard, live llm.Analyzer, c *cache.Cache, opts ...ServiceOption) *Service {
	s := &Service{
		github:   gh,
		standard: standard,
		live:     live,
		cache:    c,
		pacing:   defaultPacing,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeFileLimit clamps a caller-supplied limit into range,
// substituting the default when absent.
func NormalizeFileLimit(limit *int) int {
	if limit == nil {
		return DefaultFileLimit
	}
	if *limit < MinFileLimit {
		return MinFileLimit
	}
	if *limit > MaxFileLimit {
		return MaxFileLimit
	}
	return *limit
}

// ParseFileLimit converts a free-form string (query parameter, tool
// argument) into a file limit, defaulting on non-numeric input.
func ParseFileLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultFileLimit
	}
	return NormalizeFileLimit(&n)
}

// cacheKey fingerprints the semantically relevant request fields.
func cacheKey(ref github.RepoRef, limit int, paths []string) string {
	if len(paths) > 0 {
		return cache.Key("report", ref.String(), "paths", strings.Join(paths, "\x00"))
	}
	return cache.Key("report", ref.String(), strconv.Itoa(limit))
}

// newRunID mints a ULID for log correlation.
func newRunID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Analyze runs the pipeline without streaming.
func (s *Service) Analyze(ctx context.Context, req Request) (*models.AnalysisReport, error) {
	return s.run(ctx, req, nil)
}

// Stream runs the pipeline and emits progress events on the returned
// channel. The channel closes after the terminal complete, cached, or
// error event. Cancelling ctx abandons remaining work; no partial result
// is cached.
func (s *Service) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 8)
	go func() {
		defer close(events)
		emit := func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}
		report, err := s.run(ctx, req, emit)
		switch {
		case err != nil:
			emit(Event{
				Stage:    StageError,
				Message:  apperr.MessageOf(err),
				Progress: progressDone,
				Data:     map[string]string{"code": apperr.CodeOf(err)},
			})
		case report != nil:
			// run already emitted complete or cached with the report.
		}
	}()
	return events
}

// run executes the pipeline. emit may be nil for synchronous callers.
// A single file's failure is logged, reported as file_error, and
// swallowed; only failures outside the per-file loop abort the run.
func (s *Service) run(ctx context.Context, req Request, emit func(Event)) (*models.AnalysisReport, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	runID := newRunID()
	log := s.logger.With("run", runID)

	// Validating
	emit(Event{Stage: StageValidation, Message: "Validating request", Progress: progressValidation})
	if strings.TrimSpace(req.RepoURL) == "" {
		return nil, apperr.ErrValidation.WithMessage("repoUrl is required")
	}
	if len(req.FilePaths) > MaxExplicitPaths {
		return nil, apperr.ErrValidation.WithMessage("filePaths exceeds the maximum of %d entries", MaxExplicitPaths)
	}
	limit := NormalizeFileLimit(req.FileLimit)

	// ReferenceResolved
	emit(Event{Stage: StageParsing, Message: "Parsing repository reference", Progress: progressParsing})
	ref, err := github.ParseRepoURL(req.RepoURL)
	if err != nil {
		return nil, err
	}

	// CacheCheck
	key := cacheKey(ref, limit, req.FilePaths)
	if v, ok := s.cache.Get(key); ok {
		report := v.(*models.AnalysisReport)
		log.Info("cache hit", "repo", ref.String(), "limit", limit)
		emit(Event{Stage: StageCached, Message: "Serving cached report", Progress: progressDone, Data: report})
		return report, nil
	}

	// TreeFetched
	emit(Event{Stage: StageFetchingTree, Message: fmt.Sprintf("Fetching file tree for %s", ref), Progress: progressTree})
	tree, err := s.github.ListTree(ctx, ref)
	if err != nil {
		return nil, err
	}
	sourceFiles := github.FilterSourceFiles(tree)
	emit(Event{
		Stage:    StageTreeFetched,
		Message:  fmt.Sprintf("Found %d source files", len(sourceFiles)),
		Progress: progressTreeDone,
		Data:     map[string]int{"totalFiles": len(tree), "codeFiles": len(sourceFiles)},
	})

	// FilesSelected
	var selected []models.ScoredFile
	if len(req.FilePaths) > 0 {
		var missing []string
		selected, missing = selection.SelectByExplicitPaths(sourceFiles, req.FilePaths)
		for _, p := range missing {
			log.Warn("requested path not found in repository", "repo", ref.String(), "path", p)
		}
	} else {
		selected = selection.SelectImportant(sourceFiles, limit)
	}
	emit(Event{
		Stage:    StageAnalysisStarting,
		Message:  fmt.Sprintf("Analyzing %d files", len(selected)),
		Progress: analysisFloor,
		Total:    len(selected),
	})

	// AnalyzingFiles
	provider := s.standard
	if req.APIKey != "" {
		provider = s.live
	}
	type fileResult struct {
		path     string
		analysis *models.FileAnalysis
	}
	results := make([]fileResult, 0, len(selected))
	for i, file := range selected {
		if err := ctx.Err(); err != nil {
			log.Info("run cancelled", "repo", ref.String(), "analyzed", len(results))
			return nil, err
		}
		if i > 0 && s.pacing > 0 {
			select {
			case <-time.After(s.pacing):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		emit(Event{
			Stage:    StageAnalyzingFile,
			Message:  fmt.Sprintf("Analyzing %s", file.Path),
			Progress: fileProgress(i+1, len(selected)),
			Current:  i + 1,
			Total:    len(selected),
		})

		analysis, err := s.analyzeOne(ctx, provider, ref, file, req.APIKey)
		if err != nil {
			// Per-file failures are routine: omit the file and move on.
			log.Warn("file analysis failed", "repo", ref.String(), "path", file.Path, "error", err)
			emit(Event{
				Stage:    StageFileError,
				Message:  fmt.Sprintf("Skipping %s: %s", file.Path, apperr.MessageOf(err)),
				Progress: fileProgress(i+1, len(selected)),
				Current:  i + 1,
				Total:    len(selected),
			})
			continue
		}
		results = append(results, fileResult{path: file.Path, analysis: analysis})
	}

	// ReportGenerated
	emit(Event{Stage: StageGeneratingReport, Message: "Generating report", Progress: progressReport})
	report := &models.AnalysisReport{
		Summary: models.ReportSummary{
			FilesAnalyzed:      len(results),
			RequestedFileLimit: limit,
			TotalCodeFiles:     len(sourceFiles),
			Timestamp:          s.now().UTC().Format(time.RFC3339),
		},
		Files: make([]models.ReportFile, 0, len(results)),
	}

	sum := 0
	var issues []models.ReportIssue
	issueCount := 0
	for _, r := range results {
		sum += r.analysis.Overall
		report.Files = append(report.Files, models.ReportFile{File: r.path, Score: r.analysis.Overall})
		for _, cat := range models.Categories {
			for _, issue := range r.analysis.Categories[cat].Issues {
				issueCount++
				if len(issues) < 10 {
					issues = append(issues, models.ReportIssue{File: r.path, Issue: issue})
				}
			}
		}
	}
	if len(results) > 0 {
		report.Summary.OverallQuality = (sum + len(results)/2) / len(results)
	}
	if issues == nil {
		issues = []models.ReportIssue{}
	}
	report.Quality = models.ReportQuality{
		Score:      report.Summary.OverallQuality,
		IssueCount: issueCount,
		TopIssues:  issues,
	}

	// Cached, then Complete
	s.cache.Set(key, report, cache.ReportTTL)
	log.Info("analysis complete", "repo", ref.String(), "files", len(results), "quality", report.Summary.OverallQuality)
	emit(Event{Stage: StageComplete, Message: "Analysis complete", Progress: progressDone, Data: report})
	return report, nil
}

// analyzeOne fetches one file's content and runs it through the provider.
// The size ceiling is enforced against the tree-reported size so an
// oversized file costs no content request.
func (s *Service) analyzeOne(ctx context.Context, provider llm.Analyzer, ref github.RepoRef, file models.ScoredFile, overrideKey string) (*models.FileAnalysis, error) {
	if file.SizeBytes > github.MaxFileSize {
		return nil, apperr.ErrFileTooLarge.WithMessage("%s is %d bytes, ceiling is %d", file.Path, file.SizeBytes, github.MaxFileSize)
	}
	content, err := s.github.FetchFileContent(ctx, ref, file.Path)
	if err != nil {
		return nil, err
	}
	return provider.AnalyzeFile(ctx, file.Path, content, overrideKey)
}

// QuotaStatus exposes the content source's own remote rate limit.
func (s *Service) QuotaStatus(ctx context.Context) (*models.QuotaStatus, error) {
	return s.github.CheckQuota(ctx)
}
