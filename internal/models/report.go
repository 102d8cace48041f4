package models

import "time"

// Category identifies one axis of a file's quality assessment.
type Category string

const (
	CategoryStructure     Category = "structure"
	CategoryNaming        Category = "naming"
	CategoryErrorHandling Category = "errorHandling"
	CategoryDocumentation Category = "documentation"
	CategoryTesting       Category = "testing"
)

// Categories lists every assessment axis in report order.
var Categories = []Category{
	CategoryStructure,
	CategoryNaming,
	CategoryErrorHandling,
	CategoryDocumentation,
	CategoryTesting,
}

// CategoryResult holds the score and findings for one category of one file.
type CategoryResult struct {
	Score           int      `json:"score" yaml:"score"`
	Issues          []string `json:"issues" yaml:"issues"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// FileAnalysis is the provider's assessment of a single file.
type FileAnalysis struct {
	Overall    int                         `json:"overall" yaml:"overall"`
	Categories map[Category]CategoryResult `json:"categories" yaml:"categories"`
}

// ReportSummary carries run-level aggregates.
type ReportSummary struct {
	FilesAnalyzed      int    `json:"filesAnalyzed" yaml:"filesAnalyzed"`
	OverallQuality     int    `json:"overallQuality" yaml:"overallQuality"`
	RequestedFileLimit int    `json:"requestedFileLimit" yaml:"requestedFileLimit"`
	TotalCodeFiles     int    `json:"totalCodeFiles" yaml:"totalCodeFiles"`
	Timestamp          string `json:"timestamp" yaml:"timestamp"`
}

// ReportIssue ties a quality finding back to the file it came from.
type ReportIssue struct {
	File  string `json:"file" yaml:"file"`
	Issue string `json:"issue" yaml:"issue"`
}

// ReportQuality aggregates findings across all analyzed files.
type ReportQuality struct {
	Score      int           `json:"score" yaml:"score"`
	IssueCount int           `json:"issueCount" yaml:"issueCount"`
	TopIssues  []ReportIssue `json:"topIssues" yaml:"topIssues"`
}

// ReportFile is one analyzed file's entry in the report.
type ReportFile struct {
	File  string `json:"file" yaml:"file"`
	Score int    `json:"score" yaml:"score"`
}

// AnalysisReport is the terminal artifact of one orchestration run.
type AnalysisReport struct {
	Summary ReportSummary `json:"summary" yaml:"summary"`
	Quality ReportQuality `json:"quality" yaml:"quality"`
	Files   []ReportFile  `json:"files" yaml:"files"`
}

// TreeEntryKind distinguishes blobs from everything else in a git tree.
type TreeEntryKind string

const (
	TreeEntryFile  TreeEntryKind = "file"
	TreeEntryOther TreeEntryKind = "other"
)

// TreeEntry is one entry of a repository tree listing.
type TreeEntry struct {
	Path      string
	Kind      TreeEntryKind
	SizeBytes int64
	ContentID string // git blob SHA
}

// ScoredFile is a TreeEntry ranked by the selection heuristic.
type ScoredFile struct {
	TreeEntry
	Score float64
}

// QuotaStatus reports the result of an admission check or a quota probe.
type QuotaStatus struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}
