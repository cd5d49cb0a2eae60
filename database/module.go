package database

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideDatabase),
)

func WithModelsOption(models ...any) fx.Option {
	return fx.Supply(WithModels(models...))
}
