//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/enginedb/internal/config"
	"github.com/zeusync/enginedb/internal/core/rehydrate"
)

func InitializeApp(cfg config.Config, reg rehydrate.Registry) (*App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
