package modules

import (
	"github.com/pipetrak/pipetrak/modules/piping"
	"github.com/pipetrak/pipetrak/pkg/application"
)

var BuiltInModules = []application.Module{
	piping.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range append(BuiltInModules, externalModules...) {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
