package provider

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/automeet/errors"
)

// DecodeSettings fills out from a factory settings map using its
// `mapstructure` tags. Strings are converted to numbers, booleans and
// durations, so values that arrive from environment variables decode the
// same as YAML values. Errors are CONFIG_INVALID under field.
func DecodeSettings(field string, settings map[string]any, out any) error {
	if len(settings) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.ConfigInvalid(field, err.Error())
	}
	if err := dec.Decode(settings); err != nil {
		return errors.ConfigInvalid(field, err.Error())
	}
	return nil
}
