package modules

import (
	"github.com/loadwise/loadwise/modules/loads"
	"github.com/loadwise/loadwise/pkg/application"
)

var BuiltInModules = []application.Module{
	loads.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
