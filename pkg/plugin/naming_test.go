package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveImplementationName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"synth-notes-generator", "SynthNotesGeneratorAgent"},
		{"foo-bar", "FooBarAgent"},
		{"research-agent", "ResearchAgent"},
		{"reporter", "ReporterAgent"},
		{"github-PM", "GithubPmAgent"},
		{"double--dash", "DoubleDashAgent"},
		{"", "Agent"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveImplementationName(tt.id))
		})
	}
}
