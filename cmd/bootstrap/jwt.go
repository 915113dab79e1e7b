package bootstrap

import (
	"time"

	"expertbooking/internal/handler/middleware"
	"expertbooking/internal/pkg/config"
	"expertbooking/internal/pkg/jwt"

	"go.uber.org/fx"
)

var JWTModule = fx.Module("jwt",
	fx.Provide(
		fx.Annotate(
			NewJWTService,
			fx.As(new(middleware.TokenValidator)),
		),
	),
)

func NewJWTService(cfg config.Config) *jwt.Service {
	return jwt.NewService(cfg.JWT.Secret, 24*time.Hour)
}
