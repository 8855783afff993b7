package whatsapp

import (
	"github.com/emadn88/elmcorner/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.whatsapp",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	wa := cfg.WhatsApp
	if !wa.Enabled || wa.AccessToken == "" || wa.PhoneNumberID == "" {
		log.Info("whatsapp delivery disabled, using no-op provider")
		return &NoOpProvider{}
	}
	return NewCloudAPI(Config{
		BaseURL:       wa.BaseURL,
		PhoneNumberID: wa.PhoneNumberID,
		AccessToken:   wa.AccessToken,
		Timeout:       wa.Timeout,
	}, nil)
}
