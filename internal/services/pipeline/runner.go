// Package pipeline drives the pre-market and post-market report workflows
// for a batch of funds. Each fund moves through collecting data, building
// context, generating and writing; a failure at any stage ends that fund's
// run without affecting the others.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/common"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
	"github.com/ternarybob/fundlens/internal/services/report"
	"github.com/ternarybob/fundlens/internal/services/workers"
)

const (
	reasonCancelled     = "cancelled"
	reasonNotConfigured = "fund not configured"
)

// Options tune batch execution.
type Options struct {
	// Concurrency is the number of funds processed at once. 1 or less is sequential.
	Concurrency     int
	Location        *time.Location
	MarketCloseHour int
	Now             func() time.Time
}

// Runner executes report batches.
type Runner struct {
	funds    interfaces.FundRegistry
	builder  interfaces.ContextBuilder
	llm      interfaces.LLMService
	writer   interfaces.ReportWriter
	delivery interfaces.ReportDelivery
	opts     Options
	logger   arbor.ILogger
}

// NewRunner creates a pipeline runner. delivery may be nil.
func NewRunner(
	funds interfaces.FundRegistry,
	builder interfaces.ContextBuilder,
	llmService interfaces.LLMService,
	writer interfaces.ReportWriter,
	delivery interfaces.ReportDelivery,
	opts Options,
	logger arbor.ILogger,
) *Runner {
	if opts.Location == nil {
		opts.Location = time.FixedZone("CST", 8*3600)
	}
	if opts.MarketCloseHour <= 0 {
		opts.MarketCloseHour = 15
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		funds:    funds,
		builder:  builder,
		llm:      llmService,
		writer:   writer,
		delivery: delivery,
		opts:     opts,
		logger:   logger,
	}
}

// RunReport produces one report per fund code, or for every configured
// fund when codes is empty. The returned outcomes are in input order and
// every fund is attempted regardless of earlier failures.
func (r *Runner) RunReport(ctx context.Context, mode models.ReportType, codes []string) []models.Outcome {
	if len(codes) == 0 {
		for _, f := range r.funds.All() {
			codes = append(codes, f.Code)
		}
	}

	runID := common.NewRunID()
	date := common.AnalysisDate(mode == models.ReportPost, r.opts.Now(), r.opts.Location, r.opts.MarketCloseHour)

	r.logger.Info().
		Str("run_id", runID).
		Str("mode", string(mode)).
		Str("date", date.Format("2006-01-02")).
		Int("funds", len(codes)).
		Msg("Report batch started")

	outcomes := make([]models.Outcome, len(codes))
	run := func(ctx context.Context, i int) {
		outcomes[i] = r.runCode(ctx, mode, codes[i], date, runID)
	}

	if r.opts.Concurrency <= 1 || len(codes) <= 1 {
		for i := range codes {
			run(ctx, i)
		}
	} else {
		pool := workers.NewPool(ctx, r.opts.Concurrency, r.logger)
		pool.Start()
		for i := range codes {
			i := i
			err := pool.Submit(func(ctx context.Context) error {
				run(ctx, i)
				if f := outcomes[i].Failure; f != nil {
					return f
				}
				return nil
			})
			if err != nil {
				outcomes[i] = failed(codes[i], models.StageCollectingData, reasonCancelled, err)
			}
		}
		pool.Wait()
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.OK() {
			succeeded++
		}
	}
	r.logger.Info().
		Str("run_id", runID).
		Int("succeeded", succeeded).
		Int("failed", len(outcomes)-succeeded).
		Msg("Report batch finished")

	return outcomes
}

func (r *Runner) runCode(ctx context.Context, mode models.ReportType, code string, date time.Time, runID string) models.Outcome {
	fund, ok := r.funds.Get(code)
	if !ok {
		r.logger.Error().Str("fund", code).Msg("Fund not configured")
		return failed(code, models.StageCollectingData, reasonNotConfigured, nil)
	}
	return r.runFund(ctx, fund, mode, date, runID)
}

// fundRun tracks the current stage of one fund's pipeline.
type fundRun struct {
	fund   models.FundSpec
	mode   models.ReportType
	stage  models.Stage
	logger arbor.ILogger
}

func (f *fundRun) enter(stage models.Stage) {
	f.stage = stage
	f.logger.Debug().
		Str("fund", f.fund.Code).
		Str("mode", string(f.mode)).
		Str("stage", string(stage)).
		Msg("Stage entered")
}

func (r *Runner) runFund(ctx context.Context, fund models.FundSpec, mode models.ReportType, date time.Time, runID string) (out models.Outcome) {
	run := &fundRun{fund: fund, mode: mode, logger: r.logger}

	fail := func(reason string, err error) models.Outcome {
		if ctx.Err() != nil {
			reason = reasonCancelled
			if err == nil {
				err = ctx.Err()
			}
		}
		r.logger.Error().
			Str("fund", fund.Code).
			Str("mode", string(mode)).
			Str("stage", string(run.stage)).
			Str("reason", reason).
			Err(err).
			Msg("Report failed")
		return failed(fund.Code, run.stage, reason, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("fund", fund.Code).
				Str("stack", string(debug.Stack())).
				Msg("Panic in report pipeline")
			out = fail(fmt.Sprintf("panic: %v", rec), nil)
		}
	}()

	run.enter(models.StageCollectingData)
	if err := ctx.Err(); err != nil {
		return fail(reasonCancelled, err)
	}
	data, err := r.builder.Collect(ctx, fund, mode, date)
	if err != nil {
		return fail(err.Error(), err)
	}

	run.enter(models.StageBuildingContext)
	rc := r.builder.Assemble(data)

	run.enter(models.StageGenerating)
	text, err := r.llm.Generate(ctx, SystemPrompt(fund, mode, date), rc)
	if err != nil {
		return fail(err.Error(), err)
	}
	if strings.TrimSpace(text) == "" {
		return fail("empty model output", nil)
	}

	run.enter(models.StageWriting)
	if err := ctx.Err(); err != nil {
		return fail(reasonCancelled, err)
	}
	result := &models.ReportResult{
		RunID:       runID,
		Type:        mode,
		FundCode:    fund.Code,
		FundName:    fund.Name,
		Date:        date,
		GeneratedAt: r.opts.Now(),
		RawOutput:   text,
		Sentiment:   report.ExtractSentiment(text),
		Sections:    rc.Included,
		Dropped:     rc.Dropped,
		Omitted:     rc.Omitted,
		StaleData:   rc.StaleData,
	}
	path, err := r.writer.Write(result, rc)
	if err != nil {
		return fail(err.Error(), err)
	}
	result.Path = path

	r.deliver(ctx, result, rc)

	run.enter(models.StageDone)
	return models.Outcome{FundCode: fund.Code, Result: result}
}

// deliver is best effort: the report is already written.
func (r *Runner) deliver(ctx context.Context, result *models.ReportResult, rc *models.ReportContext) {
	if r.delivery == nil {
		return
	}
	markdown, err := report.Render(result, rc)
	if err == nil {
		err = r.delivery.Deliver(ctx, result, markdown)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("fund", result.FundCode).Msg("Report delivery failed")
	}
}

func failed(code string, stage models.Stage, reason string, err error) models.Outcome {
	return models.Outcome{
		FundCode: code,
		Failure: &models.FailureRecord{
			FundCode: code,
			Stage:    stage,
			Reason:   reason,
			Err:      err,
		},
	}
}

// Failed returns the failure records of outcomes.
func Failed(outcomes []models.Outcome) []*models.FailureRecord {
	var out []*models.FailureRecord
	for _, o := range outcomes {
		if o.Failure != nil {
			out = append(out, o.Failure)
		}
	}
	return out
}
