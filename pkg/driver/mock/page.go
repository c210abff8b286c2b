package mock

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
)

// Page is an in-memory browser.Page. DOM mutations made through Mutate,
// Replace and Remove are safe to run from other goroutines while a poll is
// in progress.
type Page struct {
	mu       sync.Mutex
	root     *Node
	url      string
	title    string
	ready    bool
	postBack bool
	closed   bool
	actions  []string
	scripts  []scriptHandler
	findErrs map[string]error

	// OnNavigate runs after Navigate updates the URL, without the lock held.
	OnNavigate func(p *Page, url string)
}

type scriptHandler struct {
	match string
	fn    func(args []*Node, raw []interface{}) (interface{}, error)
}

// NewPage returns a ready page with an empty body.
func NewPage() *Page {
	root := El("html")
	root.Append(El("body"))
	return &Page{root: root, ready: true, title: "mock"}
}

var _ browser.Page = (*Page)(nil)

// Body returns the body node.
func (p *Page) Body() *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.root.children[0]
}

// Mutate runs fn against the body under the page lock.
func (p *Page) Mutate(fn func(body *Node)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.root.children[0])
}

// SetBody replaces the whole body, invalidating every outstanding handle.
func (p *Page) SetBody(children ...*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.root.children[0]
	old.detach()
	body := El("body")
	body.Append(children...)
	body.parent = p.root
	p.root.children[0] = body
}

// Replace swaps old for replacement, the way a partial postback re-renders
// a region. Handles into old become stale.
func (p *Page) Replace(old, replacement *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := old.indexInParent()
	if idx < 0 {
		return
	}
	parent := old.parent
	replacement.parent = parent
	parent.children[idx] = replacement
	old.detach()
}

// Remove detaches n from the document.
func (p *Page) Remove(n *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := n.indexInParent()
	if idx < 0 {
		return
	}
	parent := n.parent
	parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
	n.detach()
}

// SetReady controls the document.readyState signal.
func (p *Page) SetReady(ready bool) {
	p.mu.Lock()
	p.ready = ready
	p.mu.Unlock()
}

// SetAsyncPostBack controls the update-panel in-flight signal.
func (p *Page) SetAsyncPostBack(active bool) {
	p.mu.Lock()
	p.postBack = active
	p.mu.Unlock()
}

// HandleScript registers fn for scripts containing match. Registered
// handlers take precedence over the built-in ones.
func (p *Page) HandleScript(match string, fn func(args []*Node, raw []interface{}) (interface{}, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, scriptHandler{match: match, fn: fn})
}

// Actions returns the interaction log, e.g. "clear input#txtDate".
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// ResetActions clears the interaction log.
func (p *Page) ResetActions() {
	p.mu.Lock()
	p.actions = nil
	p.mu.Unlock()
}

func (p *Page) record(format string, args ...interface{}) {
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

// Navigate implements browser.Page.
func (p *Page) Navigate(url string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errClosed
	}
	p.url = url
	p.record("navigate %s", url)
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

// SetURL changes the current URL without running OnNavigate.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

// FindElements implements browser.Page.
func (p *Page) FindElements(css string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errClosed
	}
	if err := p.findErrs[css]; err != nil {
		return nil, err
	}
	return p.find(p.root, css)
}

// FailFind makes page-wide lookups of exactly css fail with err.
func (p *Page) FailFind(css string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.findErrs == nil {
		p.findErrs = map[string]error{}
	}
	p.findErrs[css] = err
}

func (p *Page) find(scope *Node, css string) ([]browser.Element, error) {
	sel, err := parseSelector(css)
	if err != nil {
		return nil, fmt.Errorf("invalid selector: %w", err)
	}
	var out []browser.Element
	scope.walk(func(n *Node) {
		if !n.detached && sel.matches(n) {
			out = append(out, &element{page: p, node: n})
		}
	})
	return out, nil
}

// ExecuteScript implements browser.Page for the scripts the interaction
// layer issues. Unknown scripts return nil.
func (p *Page) ExecuteScript(script string, args ...interface{}) (interface{}, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errClosed
	}
	nodes := make([]*Node, len(args))
	for i, a := range args {
		if el, ok := a.(*element); ok {
			if el.node.detached {
				p.mu.Unlock()
				return nil, fmt.Errorf("%w: %s", browser.ErrStale, el.node.describe())
			}
			nodes[i] = el.node
		}
	}
	for _, h := range p.scripts {
		if strings.Contains(script, h.match) {
			p.record("script %s", h.match)
			p.mu.Unlock()
			return h.fn(nodes, args)
		}
	}

	var target *Node
	if len(nodes) > 0 {
		target = nodes[0]
	}
	var after func()
	var result interface{}

	switch {
	case strings.Contains(script, "document.readyState"):
		result = p.ready
	case strings.Contains(script, "PageRequestManager"):
		result = !p.postBack
	case target == nil:
		result = nil
	case strings.Contains(script, "removeAttribute('readonly')"):
		delete(target.Attrs, "readonly")
		p.record("unlock %s", target.describe())
	case strings.Contains(script, "arguments[0].value = arguments[1]"):
		v := ""
		if len(args) > 1 {
			v = fmt.Sprint(args[1])
		}
		if target.LockedWhileReadonly && target.Attrs["readonly"] != "" {
			p.record("script-value-ignored %s", target.describe())
			break
		}
		target.setValue(v)
		p.record("script-value %s", target.describe())
		if hook := target.OnChange; hook != nil {
			n := target
			after = func() { hook(p, n) }
		}
	case strings.Contains(script, "new Event('blur'"):
		p.record("blur %s", target.describe())
	case strings.Contains(script, "scrollIntoView"):
		p.record("scroll %s", target.describe())
	case strings.Contains(script, "arguments[0].click()"):
		p.record("script-click %s", target.describe())
		after = p.clickLocked(target)
	}
	p.mu.Unlock()

	if after != nil {
		after()
	}
	return result, nil
}

// clickLocked applies click semantics and returns the hook to run after the
// lock is released.
func (p *Page) clickLocked(n *Node) func() {
	if n.Tag == "option" {
		sel := n.selectOption()
		if sel != nil && sel.OnChange != nil {
			hook := sel.OnChange
			return func() { hook(p, sel) }
		}
		return nil
	}
	if hook := n.OnClick; hook != nil {
		return func() { hook(p, n) }
	}
	return nil
}

// CurrentURL implements browser.Page.
func (p *Page) CurrentURL() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// Title implements browser.Page.
func (p *Page) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

// SetTitle sets the document title.
func (p *Page) SetTitle(t string) {
	p.mu.Lock()
	p.title = t
	p.mu.Unlock()
}

// Screenshot implements browser.Page with a fixed PNG signature.
func (p *Page) Screenshot() ([]byte, error) {
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

// PageSource implements browser.Page.
func (p *Page) PageSource() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	serialize(&b, p.root)
	return b.String(), nil
}

// Close implements browser.Page.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

var errClosed = fmt.Errorf("invalid session id: session closed")

func serialize(b *strings.Builder, n *Node) {
	b.WriteString("<" + n.Tag)
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%q", k, n.Attrs[k])
	}
	b.WriteString(">")
	b.WriteString(n.text)
	for _, c := range n.children {
		serialize(b, c)
	}
	b.WriteString("</" + n.Tag + ">")
}
