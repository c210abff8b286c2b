package mock

import (
	"strings"
)

// Node is an element in the in-memory document.
type Node struct {
	Tag   string
	Attrs map[string]string

	text     string
	children []*Node
	parent   *Node
	hidden   bool
	detached bool

	// Behaviour knobs for exercising fallbacks.

	// IgnoreTyping drops SendKeys input, as inputs with broken key handlers do.
	IgnoreTyping bool
	// RejectKeys makes SendKeys fail as not interactable.
	RejectKeys bool
	// RejectTab makes only the Tab keystroke fail.
	RejectTab bool
	// RejectClick makes native Click fail; a script click still works.
	RejectClick bool
	// LockedWhileReadonly makes script value assignment a no-op while the
	// readonly attribute is present.
	LockedWhileReadonly bool
	// ClearErr makes Clear fail with this error once the node is writable.
	ClearErr error
	// Normalize rewrites any value written to the node.
	Normalize func(string) string
	// OnClick runs after a successful click, outside the page lock.
	OnClick func(p *Page, n *Node)
	// OnChange runs after a scripted change or option selection, outside
	// the page lock.
	OnChange func(p *Page, n *Node)
}

// Option configures a Node.
type Option func(*Node)

// El builds a node.
func El(tag string, opts ...Option) *Node {
	n := &Node{Tag: strings.ToLower(tag), Attrs: map[string]string{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ID sets the id attribute.
func ID(id string) Option { return Attr("id", id) }

// Class sets the class attribute.
func Class(c string) Option { return Attr("class", c) }

// Attr sets an arbitrary attribute.
func Attr(k, v string) Option {
	return func(n *Node) { n.Attrs[k] = v }
}

// Text sets the node's own text.
func Text(s string) Option {
	return func(n *Node) { n.text = s }
}

// Value sets the value attribute.
func Value(v string) Option { return Attr("value", v) }

// Hidden marks the node as not rendered.
func Hidden() Option {
	return func(n *Node) { n.hidden = true }
}

// Readonly sets the readonly attribute.
func Readonly() Option { return Attr("readonly", "readonly") }

// With appends children.
func With(children ...*Node) Option {
	return func(n *Node) { n.Append(children...) }
}

// Configure applies an arbitrary function, for behaviour knobs.
func Configure(fn func(*Node)) Option { return Option(fn) }

// Append adds children and returns n.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

// Children returns the direct children.
func (n *Node) Children() []*Node { return n.children }

// Parent returns the parent node.
func (n *Node) Parent() *Node { return n.parent }

// SetHidden toggles rendering. Call inside Page.Mutate when the page is live.
func (n *Node) SetHidden(h bool) { n.hidden = h }

// SetText replaces the node's own text. Call inside Page.Mutate.
func (n *Node) SetText(s string) { n.text = s }

// Value returns the current value attribute.
func (n *Node) Value() string { return n.Attrs["value"] }

func (n *Node) displayed() bool {
	if n.detached {
		return false
	}
	for cur := n; cur != nil; cur = cur.parent {
		if cur.hidden {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(cur.Attrs["style"]), " ", "")
		if strings.Contains(style, "display:none") {
			return false
		}
	}
	return true
}

// renderedText mirrors innerText: text of displayed nodes, one line per
// non-empty piece.
func (n *Node) renderedText() string {
	if !n.displayed() {
		return ""
	}
	var parts []string
	if t := strings.TrimSpace(n.text); t != "" {
		parts = append(parts, t)
	}
	if n.Tag == "select" {
		for _, opt := range n.children {
			if opt.Attrs["selected"] != "" {
				return strings.TrimSpace(opt.text)
			}
		}
	}
	for _, c := range n.children {
		if t := c.renderedText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func (n *Node) walk(fn func(*Node)) {
	for _, c := range n.children {
		fn(c)
		c.walk(fn)
	}
}

func (n *Node) detach() {
	n.detached = true
	for _, c := range n.children {
		c.detach()
	}
}

func (n *Node) indexInParent() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

func (n *Node) setValue(v string) {
	if n.Normalize != nil {
		v = n.Normalize(v)
	}
	n.Attrs["value"] = v
}

// selectOption marks opt selected within its select parent.
func (n *Node) selectOption() *Node {
	sel := n.parent
	for sel != nil && sel.Tag != "select" {
		sel = sel.parent
	}
	if sel == nil {
		return nil
	}
	sel.walk(func(o *Node) {
		if o.Tag == "option" {
			delete(o.Attrs, "selected")
		}
	})
	n.Attrs["selected"] = "selected"
	v, ok := n.Attrs["value"]
	if !ok {
		v = strings.TrimSpace(n.text)
	}
	sel.Attrs["value"] = v
	return sel
}

func (n *Node) describe() string {
	if id := n.Attrs["id"]; id != "" {
		return n.Tag + "#" + id
	}
	return n.Tag
}
