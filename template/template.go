package template

import "strings"

// Build renders tmpl by substituting every {name} placeholder with the
// corresponding value from vars. Substituted values are emitted literally
// and never rescanned, so a value containing placeholder syntax does not
// trigger further substitution. Build is a pure function.
func Build(tmpl string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); {
		open := strings.IndexByte(tmpl[i:], '{')
		if open < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		open += i
		b.WriteString(tmpl[i:open])

		end := strings.IndexByte(tmpl[open:], '}')
		if end < 0 {
			b.WriteString(tmpl[open:])
			break
		}
		end += open

		name := tmpl[open+1 : end]
		if isPlaceholderName(name) {
			if value, ok := vars[name]; ok {
				b.WriteString(value)
				i = end + 1
				continue
			}
		}

		// Not a resolvable placeholder: emit the opening brace literally
		// and resume scanning right after it.
		b.WriteByte('{')
		i = open + 1
	}

	return b.String()
}

// isPlaceholderName reports whether name is a valid placeholder name:
// non-empty and made of letters, digits, and underscores only.
func isPlaceholderName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
