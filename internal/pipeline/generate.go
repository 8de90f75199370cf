package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/model"
)

// Artifact sub-statuses reported in llm_status and excel_status.
const (
	artifactOK         = "ok"
	artifactProcessing = "processing"
	artifactFailed     = "failed"
	artifactSkipped    = "skipped"
	artifactDegraded   = "degraded"
)

// generate produces the summary and the Excel workbook. With a job
// runner the work is deferred and the result returns early carrying
// "processing" sub-statuses; without one it runs inline so the caller
// still gets the artifacts, just slower.
func (o *Orchestrator) generate(ctx context.Context, sc *searchContext) error {
	excelWanted := sc.caps.ExcelAllowed && o.deps.ExcelWriter != nil
	if !excelWanted {
		sc.result.ExcelStatus = artifactSkipped
	}
	// An llm_status of "degraded" from the filter stage survives; the
	// caller must know arbitration ran in fallback mode.
	degraded := sc.result.LLMStatus == artifactDegraded
	summaryWanted := o.deps.Summarizer != nil
	if !summaryWanted && !degraded {
		sc.result.LLMStatus = artifactSkipped
	}

	if o.deps.Runner == nil {
		return o.generateInline(ctx, sc, summaryWanted, excelWanted)
	}

	if summaryWanted {
		o.enqueue(sc, model.JobSummary)
	}
	if excelWanted {
		o.enqueue(sc, model.JobExcel)
	}
	return nil
}

// enqueue hands one artifact job to the runner. The worker can start
// before Enqueue returns, so the processing sub-status is written
// first, under the same lock the job handler takes; the handler is the
// only writer afterwards.
func (o *Orchestrator) enqueue(sc *searchContext, jobType model.JobType) {
	o.setArtifactStatus(sc, jobType, artifactProcessing)

	sc.async.Add(1)
	if err := o.deps.Runner.Enqueue(model.Job{SessionID: sc.session.ID, Type: jobType}); err != nil {
		sc.async.Done()
		o.logger.Warn("job enqueue failed",
			zap.String("session_id", sc.session.ID),
			zap.String("type", string(jobType)),
			zap.Error(err))
		o.setArtifactStatus(sc, jobType, artifactFailed)
	}
}

func (o *Orchestrator) setArtifactStatus(sc *searchContext, jobType model.JobType, status string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	switch jobType {
	case model.JobSummary:
		if sc.result.LLMStatus == artifactDegraded && status == artifactProcessing {
			return
		}
		sc.result.LLMStatus = status
	case model.JobExcel:
		sc.result.ExcelStatus = status
	}
}

// generateInline is the degraded-but-correct fallback: bounded by the
// artifact generators' own timeouts, never indefinitely blocking.
func (o *Orchestrator) generateInline(ctx context.Context, sc *searchContext, summaryWanted, excelWanted bool) error {
	if summaryWanted {
		summary, err := o.deps.Summarizer.Summarize(ctx, sc.session.Params, sc.result)
		if err != nil {
			o.logger.Warn("inline summary failed", zap.String("session_id", sc.session.ID), zap.Error(err))
			sc.result.LLMStatus = artifactFailed
		} else {
			sc.session.Summary = summary
			if sc.result.LLMStatus != artifactDegraded {
				sc.result.LLMStatus = artifactOK
			}
			o.deps.Tracker.Update(sc.session.ID, model.SessionPatch{Summary: &summary})
		}
	}
	if excelWanted {
		path, err := o.deps.ExcelWriter.Write(*sc.session, sc.result)
		if err != nil {
			o.logger.Warn("inline excel failed", zap.String("session_id", sc.session.ID), zap.Error(err))
			sc.result.ExcelStatus = artifactFailed
		} else {
			sc.session.ExcelPath = path
			sc.result.ExcelStatus = artifactOK
			o.deps.Tracker.Update(sc.session.ID, model.SessionPatch{ExcelPath: &path})
		}
	}
	return nil
}

// persist writes the terminal session fields through the same tracker
// path every other stage uses, then schedules the terminal event for
// when all detached work has landed.
func (o *Orchestrator) persist(_ context.Context, sc *searchContext) error {
	sc.mu.Lock()
	now := o.nowFunc()
	duration := now.Sub(sc.start).Milliseconds()
	status := model.StatusCompleted
	stage := model.StagePersist
	total := len(sc.raw)
	relevant := len(sc.result.Items)
	patch := model.SessionPatch{
		Status:        &status,
		PipelineStage: &stage,
		ResponseState: &sc.result.ResponseState,
		ItemsTotal:    &total,
		ItemsRelevant: &relevant,
		CompletedAt:   &now,
		DurationMS:    &duration,
	}
	snapshot := sc.result
	sessionID := sc.session.ID
	sc.mu.Unlock()

	o.deps.Tracker.Update(sessionID, patch)
	if o.deps.Results != nil {
		o.deps.Results.Put(snapshot)
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.SearchFinished(status)
	}

	o.detached.Add(1)
	go func() {
		defer o.detached.Done()
		sc.async.Wait()
		o.deps.Bus.PublishComplete(sessionID, relevant)
		o.pending.Delete(sessionID)
	}()
	return nil
}

func (o *Orchestrator) runSummaryJob(ctx context.Context, job model.Job) error {
	sc, ok := o.loadContext(job.SessionID)
	if !ok {
		return eris.Errorf("pipeline: no in-flight search %s", job.SessionID)
	}
	defer sc.async.Done()

	sc.mu.Lock()
	params := sc.session.Params
	snapshot := sc.result
	sc.mu.Unlock()

	summary, err := o.deps.Summarizer.Summarize(ctx, params, snapshot)

	sc.mu.Lock()
	if err != nil {
		sc.result.LLMStatus = artifactFailed
	} else {
		sc.session.Summary = summary
		if sc.result.LLMStatus != artifactDegraded {
			sc.result.LLMStatus = artifactOK
		}
	}
	updated := sc.result
	sc.mu.Unlock()

	if o.deps.Results != nil {
		o.deps.Results.Put(updated)
	}
	if err != nil {
		return eris.Wrap(err, "pipeline: summary job")
	}
	o.deps.Tracker.Update(job.SessionID, model.SessionPatch{Summary: &summary})
	return nil
}

func (o *Orchestrator) runExcelJob(ctx context.Context, job model.Job) error {
	sc, ok := o.loadContext(job.SessionID)
	if !ok {
		return eris.Errorf("pipeline: no in-flight search %s", job.SessionID)
	}
	defer sc.async.Done()

	sc.mu.Lock()
	sess := *sc.session
	snapshot := sc.result
	sc.mu.Unlock()

	path, err := o.deps.ExcelWriter.Write(sess, snapshot)

	sc.mu.Lock()
	if err != nil {
		sc.result.ExcelStatus = artifactFailed
	} else {
		sc.session.ExcelPath = path
		sc.result.ExcelStatus = artifactOK
	}
	updated := sc.result
	sc.mu.Unlock()

	if o.deps.Results != nil {
		o.deps.Results.Put(updated)
	}
	if err != nil {
		return eris.Wrap(err, "pipeline: excel job")
	}
	o.deps.Tracker.Update(job.SessionID, model.SessionPatch{ExcelPath: &path})
	return nil
}
