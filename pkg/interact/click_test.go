package interact

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/driver/mock"
)

func TestClickElement_Native(t *testing.T) {
	p := mock.NewPage()
	clicked := 0
	p.SetBody(mock.El("a", mock.ID("lnkNewAuditC"), mock.Class("btn"),
		mock.Configure(func(n *mock.Node) { n.OnClick = func(*mock.Page, *mock.Node) { clicked++ } })))
	s := newSession(t, p)

	el, err := s.Locate(context.Background(), "a[id$='lnkNewAuditC'].btn", "New", 0)
	require.NoError(t, err)
	require.NoError(t, s.ClickElement(context.Background(), el, "New"))
	assert.Equal(t, 1, clicked)
	assert.Equal(t, []string{"click a#lnkNewAuditC"}, p.Actions())
}

func TestClickElement_ScriptFallback(t *testing.T) {
	p := mock.NewPage()
	clicked := 0
	p.SetBody(mock.El("a", mock.ID("btnSubmit"), mock.Configure(func(n *mock.Node) {
		n.RejectClick = true
		n.OnClick = func(*mock.Page, *mock.Node) { clicked++ }
	})))
	s := newSession(t, p)

	el, err := s.Locate(context.Background(), "#btnSubmit", "Submit", 0)
	require.NoError(t, err)
	require.NoError(t, s.ClickElement(context.Background(), el, "Submit"))
	assert.Equal(t, 1, clicked)
	assert.Equal(t, []string{
		"click-rejected a#btnSubmit",
		"scroll a#btnSubmit",
		"script-click a#btnSubmit",
	}, p.Actions())
}

func TestClickElement_Stale(t *testing.T) {
	p := mock.NewPage()
	old := mock.El("a", mock.ID("btnSubmit"))
	p.SetBody(old)
	s := newSession(t, p)
	el, err := s.Locate(context.Background(), "#btnSubmit", "Submit", 0)
	require.NoError(t, err)

	p.Replace(old, mock.El("a", mock.ID("btnSubmit")))

	err = s.ClickElement(context.Background(), el, "Submit")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStaleReference))
	assert.Empty(t, p.Actions())
}

func TestClick_LocatesAndClicks(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(
		mock.El("a", mock.ID("btSearch")),
		mock.El("div", mock.Class("modal in"), mock.With(mock.El("a", mock.ID("modal_btSearch")))),
	)
	s := newSession(t, p)

	el, err := s.Click(context.Background(), "a[id$='btSearch']", "Search")
	require.NoError(t, err)
	assert.Equal(t, "modal_btSearch", idOf(el))
	assert.Equal(t, []string{"click a#modal_btSearch"}, p.Actions())
}

func TestClick_NotFound(t *testing.T) {
	s := newSession(t, mock.NewPage())
	_, err := s.Click(context.Background(), "#nothing", "Nothing")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
