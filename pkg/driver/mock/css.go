package mock

import (
	"fmt"
	"strings"
)

// selector is a comma-separated group of descendant chains.
type selector []chain

// chain is a list of compounds joined by the descendant combinator.
type chain []compound

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	name  string
	op    string // "", "=", "$=", "^=", "*=", "~="
	value string
}

func parseSelector(css string) (selector, error) {
	var sel selector
	for _, group := range splitOutside(css, ',') {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		var ch chain
		for _, part := range splitOutside(group, ' ') {
			if part == "" {
				continue
			}
			if part == ">" {
				return nil, fmt.Errorf("child combinator not supported in %q", css)
			}
			c, err := parseCompound(part)
			if err != nil {
				return nil, fmt.Errorf("invalid selector %q: %w", css, err)
			}
			ch = append(ch, c)
		}
		if len(ch) > 0 {
			sel = append(sel, ch)
		}
	}
	if len(sel) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	return sel, nil
}

// splitOutside splits s on sep, ignoring separators inside [] or quotes.
func splitOutside(s string, sep rune) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[':
			depth++
		case r == ']':
			depth--
		case r == sep && depth == 0:
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	parts = append(parts, cur.String())
	return parts
}

func parseCompound(s string) (compound, error) {
	var c compound
	i := 0
	readIdent := func() string {
		start := i
		for i < len(s) && s[i] != '.' && s[i] != '#' && s[i] != '[' {
			i++
		}
		return s[start:i]
	}

	c.tag = strings.ToLower(readIdent())
	if c.tag == "*" {
		c.tag = ""
	}
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			c.classes = append(c.classes, readIdent())
		case '#':
			i++
			c.id = readIdent()
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return c, fmt.Errorf("unterminated attribute in %q", s)
			}
			am, err := parseAttr(s[i+1 : i+end])
			if err != nil {
				return c, err
			}
			c.attrs = append(c.attrs, am)
			i += end + 1
		default:
			return c, fmt.Errorf("unexpected %q in %q", s[i], s)
		}
	}
	return c, nil
}

func parseAttr(body string) (attrMatch, error) {
	eq := strings.IndexByte(body, '=')
	if eq < 0 {
		name := strings.TrimSpace(body)
		if name == "" {
			return attrMatch{}, fmt.Errorf("empty attribute selector")
		}
		return attrMatch{name: name}, nil
	}
	nameEnd, op := eq, "="
	if eq > 0 && strings.ContainsRune("$^*~", rune(body[eq-1])) {
		nameEnd, op = eq-1, body[eq-1:eq+1]
	}
	name := strings.TrimSpace(body[:nameEnd])
	if name == "" {
		return attrMatch{}, fmt.Errorf("attribute selector %q has no name", body)
	}
	v := strings.Trim(strings.TrimSpace(body[eq+1:]), `'"`)
	return attrMatch{name: name, op: op, value: v}, nil
}

func (c compound) matches(n *Node) bool {
	if c.tag != "" && c.tag != n.Tag {
		return false
	}
	if c.id != "" && n.Attrs["id"] != c.id {
		return false
	}
	classes := strings.Fields(n.Attrs["class"])
	for _, want := range c.classes {
		if !containsToken(classes, want) {
			return false
		}
	}
	for _, am := range c.attrs {
		v, ok := n.Attrs[am.name]
		if !ok {
			return false
		}
		switch am.op {
		case "":
		case "=":
			if v != am.value {
				return false
			}
		case "$=":
			if !strings.HasSuffix(v, am.value) {
				return false
			}
		case "^=":
			if !strings.HasPrefix(v, am.value) {
				return false
			}
		case "*=":
			if !strings.Contains(v, am.value) {
				return false
			}
		case "~=":
			if !containsToken(strings.Fields(v), am.value) {
				return false
			}
		}
	}
	return true
}

// matches reports whether n matches the chain. Ancestors are matched across
// the whole document, as querySelectorAll does for scoped searches.
func (ch chain) matches(n *Node) bool {
	last := len(ch) - 1
	if !ch[last].matches(n) {
		return false
	}
	cur := n.parent
	for i := last - 1; i >= 0; i-- {
		for cur != nil && !ch[i].matches(cur) {
			cur = cur.parent
		}
		if cur == nil {
			return false
		}
		cur = cur.parent
	}
	return true
}

func (s selector) matches(n *Node) bool {
	for _, ch := range s {
		if ch.matches(n) {
			return true
		}
	}
	return false
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}
