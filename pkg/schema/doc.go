// Package schema validates the params of host-defined action types.
//
// A Schema maps param names to types. Params are validated after binding
// resolution, so values are what the expression evaluator produces: strings,
// float64 numbers, bools, []any and map[string]any.
//
//	track := schema.Schema{
//	    "event": schema.String(),
//	    "value": schema.Optional(schema.Float()),
//	    "tags":  schema.Slice(schema.String()),
//	}
//
// Schemas can also be written as type strings, which is how page tooling and
// JSON configuration declare them:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "event": "string",
//	    "value": "float?",
//	    "tags":  "[string]",
//	})
package schema
