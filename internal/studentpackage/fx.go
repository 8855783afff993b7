package studentpackage

import (
	"github.com/emadn88/elmcorner/internal/studentpackage/repository"
	"github.com/emadn88/elmcorner/internal/studentpackage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("studentpackage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
