package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/fundlens/internal/app"
	"github.com/ternarybob/fundlens/internal/models"
)

// runSchedule runs report batches on the configured cron expressions until
// ctx is cancelled. A batch still running when its next tick fires is not
// started twice.
func runSchedule(ctx context.Context, application *app.App, codes []string) error {
	config := application.Config
	logger := application.Logger

	if err := config.ValidateSchedule(); err != nil {
		return err
	}

	c := cron.New(
		cron.WithLocation(config.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	jobs := []struct {
		mode models.ReportType
		expr string
	}{
		{models.ReportPre, config.Schedule.Pre},
		{models.ReportPost, config.Schedule.Post},
	}

	registered := 0
	for _, job := range jobs {
		if job.expr == "" {
			continue
		}
		mode := job.mode
		if _, err := c.AddFunc(job.expr, func() {
			outcomes := application.RunReport(ctx, mode, codes)
			summarize(logger, outcomes)
		}); err != nil {
			return fmt.Errorf("failed to schedule %s reports: %w", mode, err)
		}
		registered++
		logger.Info().Str("mode", string(mode)).Str("cron", job.expr).Msg("Report scheduled")
	}
	if registered == 0 {
		return fmt.Errorf("no schedule configured")
	}

	c.Start()
	<-ctx.Done()

	logger.Info().Msg("Stopping scheduler")
	<-c.Stop().Done()
	return nil
}
