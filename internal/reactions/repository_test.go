package reactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeEmoji(t *testing.T) {
	cases := []struct {
		name  string
		emoji string
		want  string
	}{
		{"thumbs up", "👍", "0001f44d"},
		{"heart with variation selector", "❤️", "2764fe0f"},
		{"ascii passes through", "ok", "ok"},
		{"fire", "🔥", "0001f525"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EscapeEmoji(tc.emoji))
		})
	}
}

func TestEscapeEmojiIsStable(t *testing.T) {
	// Escaping an already escaped key does not change it further.
	once := EscapeEmoji("🎉")
	assert.Equal(t, once, EscapeEmoji(once))
}
