package messages

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// blockTags end a line when flattening rich text, so "<p>a</p><p>b</p>"
// projects to "a\nb" rather than "ab".
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true,
	"ul": true, "ol": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true,
}

// ProjectContent flattens rich HTML text into the plain-text projection
// stored alongside it. Empty list items some editors leave behind are
// stripped first; trailing whitespace never survives.
func ProjectContent(rawText string) string {
	cleaned := strings.ReplaceAll(rawText, "<li><br></li>", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(cleaned))
	if err != nil {
		return strings.TrimRight(cleaned, " \t\r\n")
	}

	var b strings.Builder
	flatten(doc, &b)
	return strings.TrimRight(b.String(), " \t\r\n")
}

func flatten(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		flatten(c, b)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
}

// richNode is one node of the structured editor document that accompanies a
// rich-text message.
type richNode struct {
	Type    string `json:"type"`
	Attrs   struct {
		ID string `json:"id"`
	} `json:"attrs"`
	Content []richNode `json:"content"`
}

type richDocument struct {
	Content []richNode `json:"content"`
}

// ExtractMentions pulls mentioned user ids out of the structured content,
// de-duplicated and in first-seen order. Only the first top-level block is
// scanned; a malformed document yields no mentions rather than an error.
func ExtractMentions(structuredContent json.RawMessage) []uuid.UUID {
	if len(structuredContent) == 0 {
		return nil
	}

	var doc richDocument
	if err := json.Unmarshal(structuredContent, &doc); err != nil {
		return nil
	}
	if len(doc.Content) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]bool)
	var mentions []uuid.UUID
	for _, node := range doc.Content[0].Content {
		if node.Type != "userMention" {
			continue
		}
		id, err := uuid.Parse(node.Attrs.ID)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		mentions = append(mentions, id)
	}
	return mentions
}
