package scrape

import "reflect"

// Symbols exports this package to a yaegi interpreter, in the layout produced
// by `yaegi extract`.
var Symbols = map[string]map[string]reflect.Value{
	ImportPath + "/scrape": {
		// constants and variables
		"DefaultBatchSize": reflect.ValueOf(DefaultBatchSize),
		"ErrMissingLink":   reflect.ValueOf(&ErrMissingLink).Elem(),
		"ErrMissingTitle":  reflect.ValueOf(&ErrMissingTitle).Elem(),
		"ImportPath":       reflect.ValueOf(ImportPath),

		// functions
		"AnchorTitle": reflect.ValueOf(AnchorTitle),
		"Clean":       reflect.ValueOf(Clean),
		"FindDate":    reflect.ValueOf(FindDate),
		"FirstAttr":   reflect.ValueOf(FirstAttr),
		"FirstLink":   reflect.ValueOf(FirstLink),
		"FirstText":   reflect.ValueOf(FirstText),
		"NewResult":   reflect.ValueOf(NewResult),
		"Recovered":   reflect.ValueOf(Recovered),
		"Resolve":     reflect.ValueOf(Resolve),

		// types
		"Element": reflect.ValueOf((*Element)(nil)),
		"Options": reflect.ValueOf((*Options)(nil)),
		"Page":    reflect.ValueOf((*Page)(nil)),
		"Record":  reflect.ValueOf((*Record)(nil)),
		"Result":  reflect.ValueOf((*Result)(nil)),
		"Warning": reflect.ValueOf((*Warning)(nil)),
	},
}
