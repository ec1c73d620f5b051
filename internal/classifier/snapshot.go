package classifier

import "fmt"

// Snapshot is the serializable state of a model: enough to reconstruct
// prediction probabilities exactly. Derived tables (vocabulary, per-label
// word totals) are rebuilt on restore.
type Snapshot struct {
	Documents int                       `yaml:"documents"`
	Labels    map[string]int            `yaml:"labels"`
	Words     map[string]map[string]int `yaml:"words"`
}

func (m *Model) Snapshot() Snapshot {
	s := Snapshot{
		Documents: m.docs,
		Labels:    make(map[string]int, len(m.labels)),
		Words:     make(map[string]map[string]int, len(m.words)),
	}
	for label, n := range m.labels {
		s.Labels[label] = n
	}
	for label, counts := range m.words {
		cp := make(map[string]int, len(counts))
		for word, n := range counts {
			cp[word] = n
		}
		s.Words[label] = cp
	}
	return s
}

// FromSnapshot rebuilds a model from serialized state, validating that the
// counts are internally consistent.
func FromSnapshot(s Snapshot) (*Model, error) {
	if s.Documents < 0 {
		return nil, fmt.Errorf("negative document count %d", s.Documents)
	}
	sum := 0
	for label, n := range s.Labels {
		if n <= 0 {
			return nil, fmt.Errorf("label %q has invalid document count %d", label, n)
		}
		sum += n
	}
	if sum != s.Documents {
		return nil, fmt.Errorf("label counts sum to %d, want %d documents", sum, s.Documents)
	}

	m := New()
	m.docs = s.Documents
	for label, n := range s.Labels {
		m.labels[label] = n
	}
	for label, counts := range s.Words {
		if _, ok := m.labels[label]; !ok {
			return nil, fmt.Errorf("word table for unknown label %q", label)
		}
		cp := make(map[string]int, len(counts))
		for word, n := range counts {
			if n <= 0 {
				return nil, fmt.Errorf("word %q under label %q has invalid count %d", word, label, n)
			}
			cp[word] = n
			m.wordTotals[label] += n
			m.vocab[word] = struct{}{}
		}
		m.words[label] = cp
	}
	return m, nil
}
