// Package validation checks request and configuration values before they
// reach a limiter, cache or provider.
//
// Struct tags cover request and config types:
//
//	type Request struct {
//	    AudioPath string `json:"path" validate:"required"`
//	}
//	err := validation.Validate(req)
//
// A Validator collects checks that tags cannot express:
//
//	v := validation.New()
//	v.Required("job_id", id).OneOf("format", format, []string{"text", "json"})
//	err := v.Validate()
//
// Both paths return an INVALID_INPUT AppError whose "fields" detail lists
// every failing field.
package validation
