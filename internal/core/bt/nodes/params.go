package nodes

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// decode fills out from raw template params. Scalars are converted loosely so
// YAML and JSON sources behave the same, but unknown keys are an error.
func decode(kind string, params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err = dec.Decode(params); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadParams, kind, err)
	}
	return nil
}
