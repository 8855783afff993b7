package payment

import (
	"github.com/emadn88/elmcorner/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.payment",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Gateway {
	if !cfg.Midtrans.Enabled || cfg.Midtrans.ServerKey == "" {
		log.Info("midtrans disabled, using hosted bill page")
		return HostedGateway{}
	}
	return NewMidtrans(cfg.Midtrans.ServerKey, cfg.Midtrans.Production)
}
