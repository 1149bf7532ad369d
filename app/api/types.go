package api

import (
	"github.com/heymamamama/podkop/app/cache"
	"github.com/heymamamama/podkop/app/config"
	"github.com/heymamamama/podkop/app/database"
	"github.com/heymamamama/podkop/app/subscription"
	"github.com/heymamamama/podkop/app/tasks"
)

type Handler struct {
	configCache *config.ConfigCache
	service     *subscription.Service
	store       *cache.Store
	updateRepo  database.UpdateRepository
	scheduler   tasks.TaskSchedulerInterface
}
