package enrollment

import (
	"github.com/smallbiznis/revrec/internal/enrollment/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("enrollment.repository",
	fx.Provide(repository.Provide),
)
