package salary

import (
	"github.com/emadn88/elmcorner/internal/salary/service"
	"go.uber.org/fx"
)

var Module = fx.Module("salary.service",
	fx.Provide(service.New),
)
