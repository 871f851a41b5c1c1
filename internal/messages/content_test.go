package messages

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProjectContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello", "hello"},
		{"paragraphs become lines", "<p>one</p><p>two</p>", "one\ntwo"},
		{"empty list items are stripped", "<ul><li><br></li><li>item</li></ul>", "item"},
		{"only empty list items project to nothing", "<li><br></li>", ""},
		{"trailing whitespace is dropped", "<p>text </p>", "text"},
		{"nested markup flattens", "<div><p><strong>bold</strong> rest</p></div>", "bold rest"},
		{"whitespace only", "   \n\t ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProjectContent(tt.in))
		})
	}
}

func TestExtractMentions(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	doc := func(nodes string) json.RawMessage {
		return json.RawMessage(`{"content":[{"type":"paragraph","content":[` + nodes + `]}]}`)
	}
	mention := func(id uuid.UUID) string {
		return `{"type":"userMention","attrs":{"id":"` + id.String() + `"}}`
	}

	t.Run("collects in first-seen order", func(t *testing.T) {
		got := ExtractMentions(doc(mention(a) + "," + mention(b)))
		assert.Equal(t, []uuid.UUID{a, b}, got)
	})

	t.Run("deduplicates", func(t *testing.T) {
		got := ExtractMentions(doc(mention(a) + "," + mention(a)))
		assert.Equal(t, []uuid.UUID{a}, got)
	})

	t.Run("ignores other node types and bad ids", func(t *testing.T) {
		nodes := `{"type":"text"},{"type":"userMention","attrs":{"id":"not-a-uuid"}},` + mention(b)
		assert.Equal(t, []uuid.UUID{b}, ExtractMentions(doc(nodes)))
	})

	t.Run("malformed document yields nothing", func(t *testing.T) {
		assert.Nil(t, ExtractMentions(json.RawMessage(`{"content":`)))
		assert.Nil(t, ExtractMentions(nil))
		assert.Nil(t, ExtractMentions(json.RawMessage(`{"content":[]}`)))
	})
}
