package registry

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Args holds the free-form keyword arguments a config entry passes to a
// component constructor.
type Args map[string]any

// Decode copies the arguments into out, a pointer to an options struct with
// yaml tags. Keys that out does not declare are rejected.
func (a Args) Decode(out any) error {
	if len(a) == 0 {
		return nil
	}
	data, err := yaml.Marshal(map[string]any(a))
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}
