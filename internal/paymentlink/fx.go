package paymentlink

import (
	"github.com/emadn88/elmcorner/internal/paymentlink/repository"
	"github.com/emadn88/elmcorner/internal/paymentlink/service"
	"go.uber.org/fx"
)

var Module = fx.Module("paymentlink.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
