package pipeline

import (
	"regexp"
	"strings"
)

const previewLimit = 500

var (
	commandNameRe = regexp.MustCompile(`<command-name>([^<]*)</command-name>`)
	commandArgsRe = regexp.MustCompile(`<command-args>([^<]*)</command-args>`)
	xmlTagRe      = regexp.MustCompile(`<[^>]+>`)
)

// Preview turns the text of a user message into a one-line session preview.
// Client boilerplate (local command output, caveats) yields "" so a later
// message is used instead; slash commands are shown as "/name args".
func Preview(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case text == "",
		strings.HasPrefix(text, "Caveat:"),
		strings.Contains(text, "<local-command-stdout>"),
		strings.Contains(text, "<local-command-stderr>"):
		return ""
	}

	if m := commandNameRe.FindStringSubmatch(text); m != nil {
		cmd := strings.TrimSpace(m[1])
		if a := commandArgsRe.FindStringSubmatch(text); a != nil && strings.TrimSpace(a[1]) != "" {
			cmd += " " + strings.TrimSpace(a[1])
		}
		text = cmd
	}

	text = xmlTagRe.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) > previewLimit {
		text = string(runes[:previewLimit])
	}
	return text
}
