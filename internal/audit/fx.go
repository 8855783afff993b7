package audit

import (
	"github.com/emadn88/elmcorner/internal/audit/repository"
	"github.com/emadn88/elmcorner/internal/audit/service"
	"go.uber.org/fx"
)

// Module records the activity feed written by package, class, bill and
// notification operations.
var Module = fx.Module("audit",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
