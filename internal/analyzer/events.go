package analyzer

// Stage names one step of the analysis pipeline as seen by a streaming
// client. Values are wire-stable.
type Stage string

const (
	StageConnected        Stage = "connected"
	StageValidation       Stage = "validation"
	StageParsing          Stage = "parsing"
	StageFetchingTree     Stage = "fetching_tree"
	StageTreeFetched      Stage = "tree_fetched"
	StageAnalysisStarting Stage = "analysis_starting"
	StageAnalyzingFile    Stage = "analyzing_file"
	StageFileError        Stage = "file_error"
	StageGeneratingReport Stage = "generating_report"
	StageComplete         Stage = "complete"
	StageCached           Stage = "cached"
	StageError            Stage = "error"
)

// Event is one progress notification. Progress is 0-100 and never
// decreases within a run. Current/Total are set for per-file stages.
// The last event of a run is always complete, cached, or error.
type Event struct {
	Stage    Stage  `json:"stage"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
	Current  int    `json:"current,omitempty"`
	Total    int    `json:"total,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// Fixed progress values for the linear stages. The analyzing_file loop
// interpolates between analysisFloor and analysisCeil.
const (
	progressValidation = 5
	progressParsing    = 10
	progressTree       = 20
	progressTreeDone   = 30
	analysisFloor      = 35
	analysisCeil       = 90
	progressReport     = 95
	progressDone       = 100
)

// fileProgress maps position i of n (1-based) into the analysis band.
func fileProgress(i, n int) int {
	if n <= 0 {
		return analysisFloor
	}
	return analysisFloor + (analysisCeil-analysisFloor)*(i-1)/n
}
