// Package model defines the domain types shared across the search pipeline.
package model

import (
	"time"
)

// SearchStatus is the lifecycle status of a search session.
type SearchStatus string

const (
	StatusCreated    SearchStatus = "created"
	StatusProcessing SearchStatus = "processing"
	StatusCompleted  SearchStatus = "completed"
	StatusFailed     SearchStatus = "failed"
	StatusTimedOut   SearchStatus = "timed_out"
	StatusCancelled  SearchStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s SearchStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// ResponseState tells the caller where the returned data came from.
type ResponseState string

const (
	ResponseLive         ResponseState = "live"
	ResponseCached       ResponseState = "cached"
	ResponseDegraded     ResponseState = "degraded"
	ResponseEmptyFailure ResponseState = "empty_failure"
)

// Stage identifies one step of the pipeline state machine.
type Stage string

const (
	StageValidate Stage = "validate"
	StagePrepare  Stage = "prepare"
	StageExecute  Stage = "execute"
	StageFilter   Stage = "filter"
	StageEnrich   Stage = "enrich"
	StageGenerate Stage = "generate"
	StagePersist  Stage = "persist"
)

// Stages lists the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageValidate, StagePrepare, StageExecute, StageFilter, StageEnrich, StageGenerate, StagePersist}
}

// SearchParams are the user-supplied search parameters.
type SearchParams struct {
	Sector   string   `json:"sector"`
	Regions  []string `json:"regions,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	DateFrom string   `json:"date_from,omitempty"` // YYYY-MM-DD
	DateTo   string   `json:"date_to,omitempty"`   // YYYY-MM-DD
}

// SearchSession is the persisted record of one search's lifecycle. A session
// row exists for every search that consumed quota, regardless of outcome.
type SearchSession struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Params        SearchParams  `json:"params"`
	Status        SearchStatus  `json:"status"`
	PipelineStage Stage         `json:"pipeline_stage,omitempty"`
	ErrorCode     ErrorCode     `json:"error_code,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ResponseState ResponseState `json:"response_state,omitempty"`
	ItemsTotal    int           `json:"items_total"`
	ItemsRelevant int           `json:"items_relevant"`
	Summary       string        `json:"summary,omitempty"`
	ExcelPath     string        `json:"excel_path,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	DurationMS    int64         `json:"duration_ms,omitempty"`
}

// SessionPatch is a partial update to a session row. Only non-nil fields are
// written; the persistence layer never touches the rest.
type SessionPatch struct {
	Status        *SearchStatus
	PipelineStage *Stage
	ErrorCode     *ErrorCode
	ErrorMessage  *string
	ResponseState *ResponseState
	ItemsTotal    *int
	ItemsRelevant *int
	Summary       *string
	ExcelPath     *string
	CompletedAt   *time.Time
	DurationMS    *int64
}

// Empty reports whether the patch carries no fields.
func (p SessionPatch) Empty() bool {
	return p.Status == nil && p.PipelineStage == nil && p.ErrorCode == nil &&
		p.ErrorMessage == nil && p.ResponseState == nil && p.ItemsTotal == nil &&
		p.ItemsRelevant == nil && p.Summary == nil && p.ExcelPath == nil &&
		p.CompletedAt == nil && p.DurationMS == nil
}

// StatusPatch is shorthand for a patch that only moves the status.
func StatusPatch(status SearchStatus) SessionPatch {
	return SessionPatch{Status: &status}
}

// StagePatch marks the stage reached while keeping the session processing.
func StagePatch(stage Stage) SessionPatch {
	status := StatusProcessing
	return SessionPatch{Status: &status, PipelineStage: &stage}
}

// PlanCapabilities is the opaque capability object supplied by the billing
// collaborator. The core consumes it; it never computes it.
type PlanCapabilities struct {
	UserID          string `json:"user_id"`
	MaxLookbackDays int    `json:"max_lookback_days"`
	ExcelAllowed    bool   `json:"excel_allowed"`
	QuotaRemaining  int    `json:"quota_remaining"`
}

// Feedback is a user verdict on one returned item, persisted for offline
// analysis only. It never feeds back into live classification.
type Feedback struct {
	UserID    string    `json:"user_id"`
	SearchID  string    `json:"search_id"`
	ItemID    string    `json:"item_id"`
	Verdict   string    `json:"verdict"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
