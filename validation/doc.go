// Package validation checks configuration structs before a step starts.
//
// Struct tags are checked with go-playground/validator; field names in
// messages use the mapstructure key so they match the configuration file.
// Two custom tags are registered:
//
//	intorvar  an integer, or text containing a ${VAR} / %%VAR%% reference
//	duration  a value accepted by time.ParseDuration
//
// Cross-field rules are collected programmatically:
//
//	v := validation.New()
//	v.Unique("parameters.variable", names)
//	v.Custom(size >= 0, "grouping.size", "must not be negative")
//	if err := v.Validate(); err != nil { ... }
package validation
