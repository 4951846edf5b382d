package ratelimit

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewReplayGuard),
	fx.Invoke(func(lc fx.Lifecycle, guard *ReplayGuard) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return guard.Close()
			},
		})
	}),
)
