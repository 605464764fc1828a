package prompter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"sure\n", false},
		{"y", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := New(strings.NewReader(tt.input), &out)
		got, err := p.Confirm("Delete notification?")
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
		assert.Equal(t, "Delete notification? (y/n) ", out.String())
	}
}

func TestConfirmWithoutInput(t *testing.T) {
	p := New(strings.NewReader(""), &bytes.Buffer{})
	_, err := p.Confirm("Clear all?")
	assert.Error(t, err)
}

func TestSecretFallsBackWhenNotATerminal(t *testing.T) {
	p := New(strings.NewReader("token-123\n"), &bytes.Buffer{})
	assert.False(t, p.Interactive())

	got, err := p.Secret("Access token: ")
	require.NoError(t, err)
	assert.Equal(t, "token-123", got)
}
