package interact

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/wait"
	"github.com/pookie-qa/pookie-runner/pkg/webforms"
)

// Grid polling intervals, slower than the default because every tick walks
// all rows.
const (
	RowAppearInterval  = 250 * time.Millisecond
	RowRemovalInterval = 300 * time.Millisecond
)

// RowQuery identifies a grid row. With Param and Key set, a row matches when
// a link inside it (Link, or any anchor) carries Key in query parameter
// Param. The row text must also contain every entry of Text, ignoring case.
type RowQuery struct {
	Link  string
	Param string
	Key   string
	Text  []string
}

func (q RowQuery) byKey() bool { return q.Param != "" && q.Key != "" }

// Describe renders the query for error messages.
func (q RowQuery) Describe() string {
	if q.byKey() {
		return q.Param + "=" + q.Key
	}
	return strings.Join(q.Text, ", ")
}

// DataRows returns the displayed rows of grid that contain cells. Header
// rows built from th only and the "No data available" placeholder are
// skipped.
func DataRows(grid browser.Element) ([]browser.Element, error) {
	trs, err := grid.FindElements("tr")
	if err != nil {
		return nil, err
	}
	var rows []browser.Element
	for _, tr := range trs {
		if !browser.Displayed(tr) {
			continue
		}
		tds, err := tr.FindElements("td")
		if err != nil {
			return nil, err
		}
		if len(tds) == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(browser.TextOrEmpty(tr)), strings.ToLower(webforms.EmptyGridText)) {
			continue
		}
		rows = append(rows, tr)
	}
	return rows, nil
}

// FindRow returns the first data row of grid matching q, or nil.
func FindRow(grid browser.Element, q RowQuery) (browser.Element, error) {
	rows, err := DataRows(grid)
	if err != nil {
		return nil, err
	}
	return matchRow(rows, q)
}

func matchRow(rows []browser.Element, q RowQuery) (browser.Element, error) {
	for _, row := range rows {
		ok, err := rowMatches(row, q)
		if err != nil {
			return nil, err
		}
		if ok {
			return row, nil
		}
	}
	return nil, nil
}

func rowMatches(row browser.Element, q RowQuery) (bool, error) {
	if q.byKey() {
		css := q.Link
		if css == "" {
			css = "a"
		}
		links, err := row.FindElements(css)
		if err != nil {
			return false, err
		}
		found := false
		for _, a := range links {
			if v, ok := ExtractQueryParameter(browser.AttrOrEmpty(a, "href"), q.Param); ok && strings.EqualFold(v, q.Key) {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	if len(q.Text) == 0 {
		return true, nil
	}
	text, err := row.Text()
	if err != nil {
		return false, err
	}
	text = strings.ToLower(text)
	for _, needle := range q.Text {
		if !strings.Contains(text, strings.ToLower(strings.TrimSpace(needle))) {
			return false, nil
		}
	}
	return true, nil
}

// RowSignature joins the trimmed, non-blank cell texts of row with " | ".
// A row without cells falls back to its whole text.
func RowSignature(row browser.Element) (string, error) {
	cells, err := row.FindElements("th, td")
	if err != nil {
		return "", err
	}
	var parts []string
	for _, c := range cells {
		t, err := c.Text()
		if err != nil {
			return "", err
		}
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " | "), nil
	}
	t, err := row.Text()
	return strings.TrimSpace(t), err
}

// firstGrid returns the first displayed element matching css, or nil.
func (s *Session) firstGrid(css string) (browser.Element, error) {
	els, err := s.Page.FindElements(css)
	if err != nil {
		return nil, err
	}
	return browser.FirstDisplayed(els), nil
}

// gridInDOM returns the first element matching css whether or not it is
// displayed, or nil when none is in the document.
func (s *Session) gridInDOM(css string) (browser.Element, error) {
	els, err := s.Page.FindElements(css)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

// WaitForRow waits until the grid matching gridCSS has a row matching q.
func (s *Session) WaitForRow(ctx context.Context, gridCSS string, q RowQuery, timeout time.Duration) (browser.Element, error) {
	snap, err := s.SnapshotRow(ctx, gridCSS, q, timeout)
	return snap.Row, err
}

// RowSnapshot records a row as it was before a delete: the grid it sits in,
// how many data rows the grid had and the row's cell signature.
type RowSnapshot struct {
	Grid      string
	Query     RowQuery
	Count     int
	Signature string
	Row       browser.Element
}

// SnapshotRow waits until the row matching q is present in the displayed
// grid and records it. Deletion checks compare against the snapshot, so a
// row that never existed cannot pass for a deleted one.
func (s *Session) SnapshotRow(ctx context.Context, gridCSS string, q RowQuery, timeout time.Duration) (RowSnapshot, error) {
	timeout = orDefault(timeout, s.Timeouts.RowAppear)
	opts := s.optsEvery("grid row "+q.Describe(), timeout, RowAppearInterval)
	return wait.Poll(ctx, opts, func(ctx context.Context) (RowSnapshot, bool, error) {
		grid, err := s.firstGrid(gridCSS)
		if err != nil || grid == nil {
			return RowSnapshot{}, false, err
		}
		rows, err := DataRows(grid)
		if err != nil {
			return RowSnapshot{}, false, err
		}
		row, err := matchRow(rows, q)
		if err != nil || row == nil {
			return RowSnapshot{}, false, err
		}
		sig, err := RowSignature(row)
		if err != nil {
			return RowSnapshot{}, false, err
		}
		return RowSnapshot{Grid: gridCSS, Query: q, Count: len(rows), Signature: sig, Row: row}, true, nil
	})
}

// present reports whether the snapshotted row is among rows. Keyed queries
// match on the key, text queries on the cell signature.
func (snap RowSnapshot) present(rows []browser.Element) (bool, error) {
	if snap.Query.byKey() {
		row, err := matchRow(rows, snap.Query)
		return row != nil, err
	}
	for _, row := range rows {
		sig, err := RowSignature(row)
		if err != nil {
			return false, err
		}
		if strings.EqualFold(sig, snap.Signature) {
			return true, nil
		}
	}
	return false, nil
}

// WaitForRowRemoval waits until the snapshotted row is gone. A grid that
// left the document counts as removal.
func (s *Session) WaitForRowRemoval(ctx context.Context, snap RowSnapshot, timeout time.Duration) error {
	timeout = orDefault(timeout, s.Timeouts.RowRemoval)
	opts := s.optsEvery("removal of grid row "+snap.Query.Describe(), timeout, RowRemovalInterval)
	return wait.Until(ctx, opts, func(ctx context.Context) (bool, error) {
		grid, err := s.gridInDOM(snap.Grid)
		if err != nil {
			return false, err
		}
		if grid == nil {
			return true, nil
		}
		rows, err := DataRows(grid)
		if err != nil {
			return false, err
		}
		found, err := snap.present(rows)
		return !found && err == nil, err
	})
}

// DeleteOutcome is how a deleted row left the page.
type DeleteOutcome int

const (
	// RowRemoved: the grid is still there with one row fewer.
	RowRemoved DeleteOutcome = iota + 1
	// TableNowEmpty: the only row went and the grid shows no data rows.
	TableNowEmpty
	// WaitingSectionHidden: the grid left the document, which happens when
	// the section holding it is dropped with the last record.
	WaitingSectionHidden
)

func (o DeleteOutcome) String() string {
	switch o {
	case RowRemoved:
		return "rowRemoved"
	case TableNowEmpty:
		return "tableNowEmpty"
	case WaitingSectionHidden:
		return "waitingSectionHidden"
	default:
		return "pending"
	}
}

// VerifyDeleted waits until the snapshotted row is gone and reports how.
// The grid is looked up whether or not it is displayed. An empty grid only
// counts when the row was the last one; a grid that had more rows and shows
// none is mid re-render and is polled again. Otherwise the row must be gone
// and the grid must have lost at least one row.
func (s *Session) VerifyDeleted(ctx context.Context, snap RowSnapshot, timeout time.Duration) (DeleteOutcome, error) {
	timeout = orDefault(timeout, s.Timeouts.RowRemoval)
	opts := s.optsEvery("deletion of grid row "+snap.Query.Describe(), timeout, RowRemovalInterval)
	return wait.Poll(ctx, opts, func(ctx context.Context) (DeleteOutcome, bool, error) {
		grid, err := s.gridInDOM(snap.Grid)
		if err != nil {
			return 0, false, err
		}
		if grid == nil {
			return WaitingSectionHidden, true, nil
		}
		rows, err := DataRows(grid)
		if err != nil {
			return 0, false, err
		}
		if len(rows) == 0 {
			return TableNowEmpty, snap.Count == 1, nil
		}
		found, err := snap.present(rows)
		if err != nil || found {
			return 0, false, err
		}
		if len(rows) > snap.Count-1 {
			return 0, false, nil
		}
		return RowRemoved, true, nil
	})
}

// ExtractQueryParameter returns the value of query parameter name in href.
// Names compare case-insensitively and the value is unescaped. href may be
// a full URL, a relative link or a bare query string.
func ExtractQueryParameter(href, name string) (string, bool) {
	if strings.TrimSpace(href) == "" || strings.TrimSpace(name) == "" {
		return "", false
	}
	query := href
	if i := strings.Index(href, "?"); i >= 0 {
		query = href[i+1:]
	}
	if i := strings.Index(query, "#"); i >= 0 {
		query = query[:i]
	}
	for _, pair := range strings.Split(query, "&") {
		k, v, found := strings.Cut(pair, "=")
		if !found || !strings.EqualFold(strings.TrimSpace(k), name) {
			continue
		}
		v = strings.TrimSpace(v)
		if un, err := url.QueryUnescape(v); err == nil {
			v = un
		}
		return v, true
	}
	return "", false
}
