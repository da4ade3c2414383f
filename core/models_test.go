package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "short text", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestPartition_Counts(t *testing.T) {
	p := Partition{
		Name: PartitionTrain,
		Examples: []LabeledExample{
			{Text: "a", Label: true},
			{Text: "b", Label: false},
			{Text: "c", Label: true},
		},
	}

	if got := p.Len(); got != 3 {
		t.Errorf("Partition.Len() = %d, want 3", got)
	}
	if got := p.Positives(); got != 2 {
		t.Errorf("Partition.Positives() = %d, want 2", got)
	}
}

func TestPseudoLabeledExample_Labeled(t *testing.T) {
	p := PseudoLabeledExample{Text: "graph theory lecture", Label: true}
	got := p.Labeled()
	if got.Text != p.Text || got.Label != p.Label {
		t.Errorf("PseudoLabeledExample.Labeled() = %+v, want text %q label %v", got, p.Text, p.Label)
	}
}
