package recognition

import (
	"github.com/smallbiznis/revrec/internal/config"
	"github.com/smallbiznis/revrec/internal/ratelimit"
	"github.com/smallbiznis/revrec/internal/recognition/domain"
	"github.com/smallbiznis/revrec/internal/recognition/repository"
	"github.com/smallbiznis/revrec/internal/recognition/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recognition.service",
	fx.Provide(
		func(holder *config.RecognitionConfigHolder) config.RecognitionSource { return holder },
		func(guard *ratelimit.ReplayGuard) domain.ReplayLock { return guard },
		repository.Provide,
		service.NewService,
		func(svc domain.Service) domain.Handler { return svc },
	),
)
