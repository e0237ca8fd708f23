package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/specialistvlad/taskgrid/internal/conflict"
	"github.com/specialistvlad/taskgrid/internal/ctxlog"
	"github.com/specialistvlad/taskgrid/internal/resolver"
)

// Report is the JSON document a run writes to the output writer.
type Report struct {
	Plan      *resolver.Result        `json:"plan"`
	Conflicts []conflict.Conflict     `json:"conflicts"`
	Batch     conflict.BatchResult    `json:"batch"`
	Stats     resolver.Stats          `json:"stats"`
	Engine    conflict.Metrics        `json:"engine"`
	History   []conflict.HistoryEntry `json:"history"`
}

// Run detects and resolves conflicts, resolves the execution plan and writes
// the report. The health check server, when enabled, lives for the duration
// of the run.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.cfg.HealthcheckPort > 0 {
		a.healthCheckServer(ctx)
	}

	if a.resolver.Stats().Nodes == 0 {
		a.logger.Warn("No tasks found in grid, resolution not required.")
	}

	if _, err := a.engine.DetectConflicts(ctx); err != nil {
		return fmt.Errorf("conflict detection failed: %w", err)
	}
	batch := a.engine.ResolveAllConflicts(ctx)
	if batch.Total > 0 {
		a.logger.Info("Conflict resolution finished.", "resolved", batch.Resolved, "failed", batch.Failed, "total", batch.Total)
	}

	plan, err := a.resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}
	a.logger.Info("Execution plan resolved.", "strategy", plan.Strategy, "levels", len(plan.Levels), "node_count", plan.NodeCount)

	conflicts := a.engine.Conflicts()
	if conflicts == nil {
		conflicts = []conflict.Conflict{}
	}
	report := Report{
		Plan:      plan,
		Conflicts: conflicts,
		Batch:     batch,
		Stats:     a.resolver.Stats(),
		Engine:    a.engine.Metrics(),
		History:   a.engine.History(),
	}
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if a.cfg.ExportPath != "" {
		if err := a.export(); err != nil {
			return err
		}
		a.logger.Info("Snapshot exported.", "path", a.cfg.ExportPath)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) export() error {
	data, err := a.resolver.ExportJSON()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(a.cfg.ExportPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
