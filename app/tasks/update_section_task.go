package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heymamamama/podkop/app/config"
	"github.com/heymamamama/podkop/app/database"
	"github.com/heymamamama/podkop/app/subscription"
)

// UpdateSectionTask refreshes one section's subscription cache and records
// the outcome in the update journal. Journal write failures are logged but
// never fail the task: the cache update already happened.
type UpdateSectionTask struct {
	Task
	Section    *config.Section
	service    *subscription.Service
	updateRepo database.UpdateRepository
}

func NewUpdateSectionTask(section *config.Section, service *subscription.Service,
	updateRepo database.UpdateRepository) *UpdateSectionTask {
	return &UpdateSectionTask{
		Task:       NewTask(TaskTypeUpdateSection, section.Name),
		Section:    section,
		service:    service,
		updateRepo: updateRepo,
	}
}

func (t *UpdateSectionTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.service.UpdateSection(ctx, t.Section)
	if err != nil {
		t.record(database.UpdateRecord{
			Section: t.SectionName,
			URL:     result.URL,
			Error:   err.Error(),
		})
		return fmt.Errorf("failed to update section: %w", err)
	}

	if result.Skipped {
		slog.Debug("Section has no subscription, nothing to update", "section", t.SectionName)
		return nil
	}

	t.record(database.UpdateRecord{
		Section: t.SectionName,
		URL:     result.URL,
		Kind:    string(result.Kind),
		Bytes:   result.Bytes,
	})

	slog.Info("Task completed",
		"type", "UpdateSection",
		"section", t.SectionName,
		"duration", t.GetDuration(),
		"kind", string(result.Kind),
		"bytes", result.Bytes)

	return nil
}

func (t *UpdateSectionTask) record(record database.UpdateRecord) {
	if t.updateRepo == nil {
		return
	}
	if _, err := t.updateRepo.RecordUpdate(record); err != nil {
		slog.Warn("Failed to record update in journal", "section", t.SectionName, "error", err)
	}
}
