package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "neural networks", "neural networks"},
		{"case folded", "Neural Networks", "neural networks"},
		{"punctuation stripped", "networks, neural!", "networks neural"},
		{"abbreviation periods folded", "U.S.A.", "usa"},
		{"hyphen becomes space", "self-attention", "self attention"},
		{"slash becomes space", "encoder/decoder", "encoder decoder"},
		{"whitespace collapsed", "  deep   learning\t", "deep learning"},
		{"digits kept", "GPT-2", "gpt 2"},
		{"empty", "", ""},
		{"only punctuation", "?!...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeName_CaseVariantsCollide(t *testing.T) {
	variants := []string{"Neural Networks", "neural networks", "NEURAL NETWORKS", "Neural  Networks"}
	for _, v := range variants {
		assert.Equal(t, "neural networks", NormalizeName(v))
	}
}
