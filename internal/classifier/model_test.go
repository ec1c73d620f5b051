package classifier

import (
	"fmt"
	"testing"
)

func trainedModel() *Model {
	m := New()
	m.Train("supermarket food shopping expense", "groceries")
	m.Train("weekly grocery run expense", "groceries")
	m.Train("monthly salary payment income", "salary")
	m.Train("salary bonus transfer income", "salary")
	return m
}

func TestPredict(t *testing.T) {
	m := trainedModel()

	cases := []struct {
		text string
		want string
	}{
		{"supermarket shopping expense", "groceries"},
		{"grocery expense", "groceries"},
		{"salary income", "salary"},
		{"monthly payment income", "salary"},
	}
	for _, tc := range cases {
		got, ok := m.Predict(tc.text)
		if !ok {
			t.Fatalf("Predict(%q) returned no label", tc.text)
		}
		if got != tc.want {
			t.Errorf("Predict(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestPredict_EmptyModel(t *testing.T) {
	if _, ok := New().Predict("anything at all"); ok {
		t.Error("empty model must not produce a label")
	}
}

func TestPredict_NoTokens(t *testing.T) {
	m := trainedModel()
	if _, ok := m.Predict("  ...  "); ok {
		t.Error("token-free text must not produce a label")
	}
}

func TestPredict_Deterministic(t *testing.T) {
	m := New()
	// Two labels with identical statistics; the winner must be stable.
	m.Train("alpha beta", "one")
	m.Train("alpha beta", "two")

	first, ok := m.Predict("alpha")
	if !ok {
		t.Fatal("expected a prediction")
	}
	for i := 0; i < 50; i++ {
		got, _ := m.Predict("alpha")
		if got != first {
			t.Fatalf("prediction flapped on iteration %d: %q vs %q", i, got, first)
		}
	}
}

func TestTrain_IgnoresEmptyInput(t *testing.T) {
	m := New()
	m.Train("", "label")
	m.Train("some text", "")
	if !m.Empty() {
		t.Errorf("documents = %d, want empty model", m.Documents())
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  Lunch at CAFÉ ", "expense")
	want := "lunch at café expense"
	if got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestLabelsAndDocuments(t *testing.T) {
	m := trainedModel()
	if m.Labels() != 2 {
		t.Errorf("labels = %d, want 2", m.Labels())
	}
	if m.Documents() != 4 {
		t.Errorf("documents = %d, want 4", m.Documents())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := trainedModel()
	restored, err := FromSnapshot(m.Snapshot())
	if err != nil {
		t.Fatalf("restore snapshot: %v", err)
	}

	if restored.Labels() != m.Labels() || restored.Documents() != m.Documents() {
		t.Fatalf("restored model shape differs: %d/%d vs %d/%d",
			restored.Labels(), restored.Documents(), m.Labels(), m.Documents())
	}
	for _, text := range []string{"grocery shopping expense", "salary income", "unrelated words"} {
		wantLabel, wantOK := m.Predict(text)
		gotLabel, gotOK := restored.Predict(text)
		if wantLabel != gotLabel || wantOK != gotOK {
			t.Errorf("Predict(%q) diverged after restore: (%q,%v) vs (%q,%v)",
				text, gotLabel, gotOK, wantLabel, wantOK)
		}
	}
}

func TestFromSnapshot_RejectsInconsistentCounts(t *testing.T) {
	cases := []struct {
		name string
		s    Snapshot
	}{
		{"mismatched totals", Snapshot{Documents: 5, Labels: map[string]int{"a": 1}}},
		{"negative documents", Snapshot{Documents: -1}},
		{"zero label count", Snapshot{Documents: 0, Labels: map[string]int{"a": 0}}},
		{"orphan word table", Snapshot{
			Documents: 1,
			Labels:    map[string]int{"a": 1},
			Words:     map[string]map[string]int{"b": {"x": 1}},
		}},
		{"negative word count", Snapshot{
			Documents: 1,
			Labels:    map[string]int{"a": 1},
			Words:     map[string]map[string]int{"a": {"x": -2}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromSnapshot(tc.s); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestIncrementalLearning(t *testing.T) {
	m := New()
	m.Train("coffee beans espresso", "coffee")
	if got, _ := m.Predict("espresso shot"); got != "coffee" {
		t.Fatalf("got %q", got)
	}

	// New labels can appear at any point.
	for i := 0; i < 3; i++ {
		m.Train(fmt.Sprintf("train ticket ride %d", i), "transport")
	}
	if got, _ := m.Predict("train ticket"); got != "transport" {
		t.Errorf("got %q, want transport", got)
	}
	if got, _ := m.Predict("espresso beans"); got != "coffee" {
		t.Errorf("got %q, want coffee", got)
	}
}
