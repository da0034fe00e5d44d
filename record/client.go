package record

import "strings"

const (
	anchorOpen  = ">"
	anchorClose = "</a>"
)

// ClientName extracts the human-readable client name from a source field.
// Sources usually arrive as an HTML anchor such as
// `<a href="...">Twitter for Android</a>`; the anchor text is used when
// present, otherwise the whole string. Whitespace runs collapse to a single
// space and the ends are trimmed.
func ClientName(source string) string {
	name := source
	if start := strings.Index(source, anchorOpen); start >= 0 {
		rest := source[start+len(anchorOpen):]
		if end := strings.Index(rest, anchorClose); end >= 0 {
			name = rest[:end]
		}
	}
	return strings.Join(strings.Fields(name), " ")
}
