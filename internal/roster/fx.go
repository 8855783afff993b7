package roster

import (
	"github.com/emadn88/elmcorner/internal/roster/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("roster",
	fx.Provide(repository.Provide),
)
