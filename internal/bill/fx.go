package bill

import (
	"github.com/emadn88/elmcorner/internal/bill/repository"
	"github.com/emadn88/elmcorner/internal/bill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bill.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
