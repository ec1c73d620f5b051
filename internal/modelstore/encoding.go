package modelstore

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"moneta/internal/classifier"
)

// formatVersion is bumped whenever the on-disk layout changes shape.
const formatVersion = 1

type document struct {
	Version int                 `yaml:"version"`
	Model   classifier.Snapshot `yaml:"model"`
}

// Encode serializes a model to its versioned textual form. yaml.v3 emits
// map keys in sorted order, so the same model always encodes to the same
// bytes.
func Encode(m *classifier.Model) ([]byte, error) {
	doc := document{Version: formatVersion, Model: m.Snapshot()}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	return data, nil
}

// Decode parses a serialized model. Empty input, unknown versions, YAML
// errors and inconsistent counts all report ErrCorrupt.
func Decode(data []byte) (*classifier.Model, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty artifact", ErrCorrupt)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, doc.Version)
	}
	m, err := classifier.FromSnapshot(doc.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if m.Empty() {
		return nil, fmt.Errorf("%w: artifact holds no trained documents", ErrCorrupt)
	}
	return m, nil
}
