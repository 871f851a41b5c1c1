package notifications

import (
	"testing"

	"github.com/chatly-hq/chatly/internal/messages"
	"github.com/stretchr/testify/assert"
)

func TestNotificationBody(t *testing.T) {
	cases := []struct {
		name string
		msg  *messages.Message
		want string
	}{
		{
			"plain text",
			&messages.Message{Type: messages.TypeText, Text: "hello there"},
			"hello there",
		},
		{
			"tenor gif",
			&messages.Message{Type: messages.TypeText, Text: `<img src=https://media.tenor.com/abc/tenor.gif>`},
			"Sent a GIF",
		},
		{
			"file uses basename",
			&messages.Message{Type: messages.TypeFile, File: "/files/reports/q3-summary.pdf"},
			"📄 Sent a file - q3-summary.pdf",
		},
		{
			"image",
			&messages.Message{Type: messages.TypeImage, File: "/files/cat.png"},
			"📷 Sent a photo",
		},
		{
			"poll",
			&messages.Message{Type: messages.TypePoll},
			"📊 Sent a poll",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NotificationBody(tc.msg))
		})
	}
}
