package notification

import (
	"github.com/emadn88/elmcorner/internal/notification/repository"
	"github.com/emadn88/elmcorner/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
