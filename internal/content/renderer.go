package content

import "strings"

// Renderer substitutes template placeholders with field values.
type Renderer interface {
	Render(template string, fields map[string]string) string
}

var _ Renderer = (*SubstitutionRenderer)(nil)

// SubstitutionRenderer replaces {{key}} placeholders with the matching field
// value. Unknown keys render as the empty string; a literal {{...}} never
// survives rendering. Text without a closing }} is copied verbatim.
type SubstitutionRenderer struct{}

func NewSubstitutionRenderer() *SubstitutionRenderer {
	return &SubstitutionRenderer{}
}

func (r *SubstitutionRenderer) Render(template string, fields map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}

		close := strings.Index(rest[open+2:], "}}")
		if close < 0 {
			b.WriteString(rest)
			return b.String()
		}

		b.WriteString(rest[:open])
		key := strings.TrimSpace(rest[open+2 : open+2+close])
		b.WriteString(fields[key])
		rest = rest[open+2+close+2:]
	}
}
