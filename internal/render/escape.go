package render

import "strings"

// EscapeText escapes &, < and > for inclusion in markup. The ampersand is
// replaced first so the entities produced afterwards are not escaped again.
// Quotes are left alone; the text only ever lands inside element content.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// preformatted wraps escaped text in a <pre> block.
func preformatted(class, text string) string {
	if class == "" {
		return "<pre>" + EscapeText(text) + "</pre>"
	}
	return `<pre class="` + class + `">` + EscapeText(text) + "</pre>"
}
