package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heymamamama/podkop/app/cache"
	"github.com/heymamamama/podkop/app/config"
	"github.com/heymamamama/podkop/app/database"
	"github.com/heymamamama/podkop/app/subscription"
	"github.com/heymamamama/podkop/app/tasks"
)

func NewHandler(configCache *config.ConfigCache, service *subscription.Service,
	store *cache.Store, updateRepo database.UpdateRepository,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		configCache: configCache,
		service:     service,
		store:       store,
		updateRepo:  updateRepo,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"sections":  h.configCache.GetSectionCount(),
	}

	if count, err := h.updateRepo.GetUpdateCount(); err == nil {
		health["recorded_updates"] = count
	}

	c.JSON(http.StatusOK, health)
}

// GetSectionTags serves the filtered tag list for a section's subscription.
func (h *Handler) GetSectionTags(c *gin.Context) {
	section, ok := h.section(c)
	if !ok {
		return
	}

	url := section.Option(config.OptionSubscriptionURL)
	if url == "" {
		c.JSON(http.StatusOK, gin.H{"section": section.Name, "tags": []string{}, "total": 0})
		return
	}

	tags, err := h.service.ListOutboundTags(c.Request.Context(), url,
		section.OptionDefault(config.OptionSubscriptionType, subscription.TypeAuto),
		h.service.SectionFilters(section))
	if err != nil {
		slog.Error("Subscription query failed", "operation", "list_tags", "section", section.Name, "url", url, "error", err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"section": section.Name, "tags": tags, "total": len(tags)})
}

// GetSectionOutbounds serves the filtered outbound objects with all their
// original fields. Legacy subscriptions yield an empty list.
func (h *Handler) GetSectionOutbounds(c *gin.Context) {
	section, ok := h.section(c)
	if !ok {
		return
	}

	url := section.Option(config.OptionSubscriptionURL)
	if url == "" {
		c.JSON(http.StatusOK, gin.H{"section": section.Name, "outbounds": []subscription.Outbound{}, "total": 0})
		return
	}

	outbounds, err := h.service.ListOutboundObjects(c.Request.Context(), url,
		section.OptionDefault(config.OptionSubscriptionType, subscription.TypeAuto),
		h.service.SectionFilters(section))
	if err != nil {
		slog.Error("Subscription query failed", "operation", "list_outbounds", "section", section.Name, "url", url, "error", err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"section": section.Name, "outbounds": outbounds, "total": len(outbounds)})
}

// GetSectionLinks serves the filtered raw connection links, always treating
// the subscription as legacy-encoded.
func (h *Handler) GetSectionLinks(c *gin.Context) {
	section, ok := h.section(c)
	if !ok {
		return
	}

	url := section.Option(config.OptionSubscriptionURL)
	if url == "" {
		c.JSON(http.StatusOK, gin.H{"section": section.Name, "links": []string{}, "total": 0})
		return
	}

	links, err := h.service.ListRawLinks(c.Request.Context(), url, h.service.SectionFilters(section))
	if err != nil {
		slog.Error("Subscription query failed", "operation", "list_links", "section", section.Name, "url", url, "error", err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"section": section.Name, "links": links, "total": len(links)})
}

// GetSectionSelected serves the section's manually pinned tags verbatim.
func (h *Handler) GetSectionSelected(c *gin.Context) {
	section, ok := h.section(c)
	if !ok {
		return
	}

	selected := h.service.SelectedOutbounds(section)
	c.JSON(http.StatusOK, gin.H{"section": section.Name, "selected": selected, "total": len(selected)})
}

func (h *Handler) APIListSections(c *gin.Context) {
	sections := h.configCache.GetSections()

	items := make([]map[string]interface{}, 0, len(sections))
	for _, section := range sections {
		info := map[string]interface{}{
			"name":              section.Name,
			"type":              section.Type,
			"subscription_url":  section.Option(config.OptionSubscriptionURL),
			"subscription_type": section.OptionDefault(config.OptionSubscriptionType, subscription.TypeAuto),
			"has_subscription":  section.HasSubscription(),
		}

		if filters := h.service.SectionFilters(section); len(filters) > 0 {
			info["filters"] = filters
		}
		if selected := h.service.SelectedOutbounds(section); len(selected) > 0 {
			info["selected"] = selected
		}

		if last, err := h.updateRepo.GetLastUpdate(section.Name); err == nil && last != nil {
			info["last_update"] = map[string]interface{}{
				"kind":       last.Kind,
				"bytes":      last.Bytes,
				"error":      last.Error,
				"created_at": last.CreatedAt,
			}
		}

		items = append(items, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sections": items,
		"total":    len(items),
	})
}

func (h *Handler) APIUpdateSection(c *gin.Context) {
	section, ok := h.section(c)
	if !ok {
		return
	}

	if err := h.configCache.Reload(); err != nil {
		slog.Error("Error reloading configuration", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	section, err := h.configCache.GetSection(section.Name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Section removed from configuration"})
		return
	}

	task := tasks.NewUpdateSectionTask(section, h.service, h.updateRepo)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing update task", "section", section.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue update task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Update task enqueued successfully",
		"section": section.Name,
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
	})
}

func (h *Handler) APIListUpdates(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	updates, err := h.updateRepo.GetRecentUpdates(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_updates", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updates": updates, "total": len(updates)})
}

// APIClearCache removes one cached document when a url query parameter is
// given, or every cached document otherwise.
func (h *Handler) APIClearCache(c *gin.Context) {
	url := c.Query("url")

	var err error
	cleared := "all"
	if url != "" {
		err = h.store.Clear(url)
		cleared = url
	} else {
		err = h.store.ClearAll()
	}
	if err != nil {
		slog.Error("Cache clear failed", "url", url, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": cleared})
}

func (h *Handler) section(c *gin.Context) (*config.Section, bool) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing section name parameter"})
		return nil, false
	}

	section, err := h.configCache.GetSection(name)
	if err != nil {
		slog.Error("Configuration section not found", "section", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Section not found"})
		return nil, false
	}
	return section, true
}

func statusForError(err error) int {
	var typeErr *subscription.UnsupportedTypeError
	if errors.As(err, &typeErr) {
		return http.StatusBadRequest
	}

	var fetchErr *subscription.FetchError
	var decodeErr *subscription.DecodeError
	if errors.As(err, &fetchErr) || errors.As(err, &decodeErr) {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
