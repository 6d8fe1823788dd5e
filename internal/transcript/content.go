package transcript

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ContentItem is one block of message content. Only the fields of the
// matching block type are populated; tool payloads stay raw.
type ContentItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   *bool           `json:"is_error,omitempty"`
	Source    json.RawMessage `json:"source,omitempty"`
}

// Content is user message content, which is either a bare string or a list
// of blocks. Items is nil for the string form.
type Content struct {
	Text  string
	Items []ContentItem
}

// IsList reports whether the content was a list of blocks.
func (c Content) IsList() bool { return c.Items != nil }

// PlainText joins the text blocks, or returns the string form as is.
func (c Content) PlainText() string {
	if !c.IsList() {
		return c.Text
	}
	return TextOf(c.Items)
}

// TextOf joins the text of every "text" block.
func TextOf(items []ContentItem) string {
	var parts []string
	for _, it := range items {
		if it.Type == "text" && it.Text != "" {
			parts = append(parts, it.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsList() {
		return json.Marshal(c.Items)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Content{}
		return nil
	case data[0] == '"':
		c.Items = nil
		return json.Unmarshal(data, &c.Text)
	}
	var items []ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	if items == nil {
		items = []ContentItem{}
	}
	*c = Content{Items: items}
	return nil
}
