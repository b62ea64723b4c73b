package builtin

import (
	"github.com/michaellans/Badger/internal/generator"
	"github.com/michaellans/Badger/internal/plugin"
	"github.com/michaellans/Badger/internal/vocs"
)

var randomSearchPlugin = &plugin.GeneratorPlugin{
	Fields: []plugin.Field{{Name: "seed", Type: "int"}},
	New: func(v *vocs.VOCS, params map[string]any) (generator.Generator, error) {
		g, err := generator.NewRandom(v, params)
		if err != nil {
			return nil, err
		}
		return g, nil
	},
}
