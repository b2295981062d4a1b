package cache

import "strings"

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '*' || r == '?' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// globMatch supports '*' (any run), '?' (one rune) and '\' escapes.
func globMatch(pattern, s string) bool {
	p := []rune(pattern)
	str := []rune(s)
	var match func(pi, si int) bool
	match = func(pi, si int) bool {
		for pi < len(p) {
			switch p[pi] {
			case '*':
				for pi < len(p) && p[pi] == '*' {
					pi++
				}
				if pi == len(p) {
					return true
				}
				for k := si; k <= len(str); k++ {
					if match(pi, k) {
						return true
					}
				}
				return false
			case '?':
				if si >= len(str) {
					return false
				}
				pi++
				si++
			case '\\':
				if pi+1 < len(p) {
					pi++
				}
				fallthrough
			default:
				if si >= len(str) || str[si] != p[pi] {
					return false
				}
				pi++
				si++
			}
		}
		return si == len(str)
	}
	return match(0, 0)
}

// globToLike rewrites a glob into a SQL LIKE pattern using '\' as the escape.
func globToLike(pattern string) string {
	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		if escaped {
			if r == '%' || r == '_' || r == '\\' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
