package model

import "time"

// RunStatus tracks the level-score job state machine:
// pending -> running -> completed, or running -> failed.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the run can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// CandidateLevel is one dimension subset under evaluation as a forecasting
// granularity.
type CandidateLevel struct {
	ID           string  `json:"id"`
	Dimensions   []Level `json:"dimensions"`
	Combinations int     `json:"combinations"`
}

// LevelScore is the scored outcome for one candidate level.
type LevelScore struct {
	LevelID      string  `json:"level_id"`
	Dimensions   []Level `json:"dimensions"`
	CoV          float64 `json:"cov"`
	Combinations int     `json:"combinations"`
	Score        float64 `json:"score"`

	// Normalized ranking components, filled when the run completes.
	CovScore        float64 `json:"cov_score,omitempty"`
	ComplexityScore float64 `json:"complexity_score,omitempty"`
	FinalScore      float64 `json:"final_score,omitempty"`
}

// LevelScoreRun is the resumable scoring job record. It is mutated only by
// chunk-processing calls and is terminal once completed or failed.
type LevelScoreRun struct {
	ID                    string           `json:"id"`
	Status                RunStatus        `json:"status"`
	Levels                []CandidateLevel `json:"levels"`
	CurrentIndex          int              `json:"current_index"`
	ProcessedLevels       int              `json:"processed_levels"`
	TotalLevels           int              `json:"total_levels"`
	ProcessedCombinations int              `json:"processed_combinations"`
	TotalCombinations     int              `json:"total_combinations"`
	Results               []LevelScore     `json:"results"`
	LastMessage           string           `json:"last_message,omitempty"`
	Error                 string           `json:"error,omitempty"`
	StartedAt             time.Time        `json:"started_at"`
	FinishedAt            *time.Time       `json:"finished_at,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate registry state through
// returned runs.
func (r *LevelScoreRun) Clone() *LevelScoreRun {
	cp := *r
	cp.Levels = make([]CandidateLevel, len(r.Levels))
	copy(cp.Levels, r.Levels)
	cp.Results = make([]LevelScore, len(r.Results))
	copy(cp.Results, r.Results)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
