package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"pawpal/internal/care"
	"pawpal/internal/config"
)

// LoadOwnerFile reads an owner record from JSON or YAML. Tasks without an id
// get a fresh one; unknown keys are rejected.
func LoadOwnerFile(path string) (*care.Owner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := config.ToJSON(path, raw)
	if err != nil {
		return nil, err
	}
	var o care.Owner
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range o.Tasks {
		if strings.TrimSpace(o.Tasks[i].ID) == "" {
			o.Tasks[i].ID = care.NewTaskID()
		}
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &o, nil
}
