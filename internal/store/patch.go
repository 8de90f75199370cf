package store

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/licitaradar/radar/internal/model"
)

// patchBuilder turns a SessionPatch into an UPDATE statement that sets only
// the fields present in the patch. Terminal statuses are guarded in SQL so a
// late fire-and-forget update can never revert a finished session.
func patchBuilder(id string, patch model.SessionPatch, format sq.PlaceholderFormat) (string, []any, error) {
	b := sq.Update("search_sessions").PlaceholderFormat(format)

	if patch.Status != nil {
		b = b.Set("status", string(*patch.Status))
		// Status transitions are monotonic: once terminal, a session is never
		// rewritten, not even by another terminal status.
		b = b.Where(sq.Expr("status IN (?, ?)",
			string(model.StatusCreated), string(model.StatusProcessing)))
	}
	if patch.PipelineStage != nil {
		b = b.Set("pipeline_stage", string(*patch.PipelineStage))
	}
	if patch.ErrorCode != nil {
		b = b.Set("error_code", string(*patch.ErrorCode))
	}
	if patch.ErrorMessage != nil {
		b = b.Set("error_message", *patch.ErrorMessage)
	}
	if patch.ResponseState != nil {
		b = b.Set("response_state", string(*patch.ResponseState))
	}
	if patch.ItemsTotal != nil {
		b = b.Set("items_total", *patch.ItemsTotal)
	}
	if patch.ItemsRelevant != nil {
		b = b.Set("items_relevant", *patch.ItemsRelevant)
	}
	if patch.Summary != nil {
		b = b.Set("summary", *patch.Summary)
	}
	if patch.ExcelPath != nil {
		b = b.Set("excel_path", *patch.ExcelPath)
	}
	if patch.CompletedAt != nil {
		b = b.Set("completed_at", *patch.CompletedAt)
	}
	if patch.DurationMS != nil {
		b = b.Set("duration_ms", *patch.DurationMS)
	}

	b = b.Set("updated_at", time.Now().UTC()).Where(sq.Eq{"id": id})
	return b.ToSql()
}
