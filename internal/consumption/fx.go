package consumption

import (
	"github.com/emadn88/elmcorner/internal/consumption/repository"
	"github.com/emadn88/elmcorner/internal/consumption/service"
	"go.uber.org/fx"
)

var Module = fx.Module("consumption.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
