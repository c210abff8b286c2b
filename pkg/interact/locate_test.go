package interact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/driver/mock"
	"github.com/pookie-qa/pookie-runner/pkg/webforms"
)

func TestLocate_PrefersOpenModal(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(
		mock.El("input", mock.ID("pageDate"), mock.Class("date")),
		mock.El("div", mock.Class("modal fade in"), mock.With(
			mock.El("input", mock.ID("modalDate"), mock.Class("date")),
		)),
	)
	s := newSession(t, p)

	el, err := s.Locate(context.Background(), "input.date", "Date", 0)
	require.NoError(t, err)
	assert.Equal(t, "modalDate", idOf(el))
}

func TestLocate_FallsBackToPage(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(
		mock.El("input", mock.ID("pageDate"), mock.Class("date")),
		mock.El("div", mock.Class("modal in"), mock.With(mock.El("p", mock.Text("Are you sure?")))),
	)
	s := newSession(t, p)

	el, err := s.Locate(context.Background(), "input.date", "Date", 0)
	require.NoError(t, err)
	assert.Equal(t, "pageDate", idOf(el))
}

func TestLocate_IgnoresClosingModal(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(
		mock.El("input", mock.ID("pageDate"), mock.Class("date")),
		mock.El("div", mock.Class("modal in"), mock.Attr("style", "display: none"), mock.With(
			mock.El("input", mock.ID("modalDate"), mock.Class("date")),
		)),
	)
	s := newSession(t, p)

	el, err := s.Locate(context.Background(), "input.date", "Date", 0)
	require.NoError(t, err)
	assert.Equal(t, "pageDate", idOf(el))
}

func TestLocate_SkipsHiddenMatches(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(
		mock.El("a", mock.ID("first"), mock.Class("btn"), mock.Hidden()),
		mock.El("a", mock.ID("second"), mock.Class("btn")),
	)
	s := newSession(t, p)

	el, err := s.Locate(context.Background(), "a.btn", "button", 0)
	require.NoError(t, err)
	assert.Equal(t, "second", idOf(el))
}

func TestLocate_TimesOutWithDescription(t *testing.T) {
	s := newSession(t, mock.NewPage())

	start := time.Now()
	_, err := s.Locate(context.Background(), "#missing", "Save button", 300*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Contains(t, err.Error(), "'Save button'")
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestLocate_AppearsLater(t *testing.T) {
	p := mock.NewPage()
	s := newSession(t, p)

	go func() {
		time.Sleep(200 * time.Millisecond)
		p.Mutate(func(body *mock.Node) {
			body.Append(mock.El("span", mock.ID("lblAuditCScore"), mock.Text("4")))
		})
	}()

	el, err := s.Locate(context.Background(), "span[id$='lblAuditCScore']", "score", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "lblAuditCScore", idOf(el))
}

func TestLocateOnPage_IgnoresModalPreference(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(
		mock.El("input", mock.ID("pageDate"), mock.Class("date")),
		mock.El("div", mock.Class("modal in"), mock.With(
			mock.El("input", mock.ID("modalDate"), mock.Class("date")),
		)),
	)
	s := newSession(t, p)

	el, err := s.LocateOnPage(context.Background(), "input.date", "Date", 0)
	require.NoError(t, err)
	assert.Equal(t, "pageDate", idOf(el))
}

func TestIsModalDisplayed(t *testing.T) {
	tests := []struct {
		name string
		node *mock.Node
		want bool
	}{
		{"hidden without shown signal", mock.El("div", mock.Class("modal"), mock.Hidden()), false},
		{"shown class while hidden", mock.El("div", mock.Class("modal fade in"), mock.Hidden()), true},
		{"show class while hidden", mock.El("div", mock.Class("modal show"), mock.Hidden()), true},
		{"inline display block", mock.El("div", mock.Class("modal"), mock.Attr("style", "display: block"), mock.Hidden()), true},
		{"display none wins", mock.El("div", mock.Class("modal in"), mock.Attr("style", "display:none")), false},
		{"displayed", mock.El("div", mock.Class("modal fade")), true},
		{"class substring is not a token", mock.El("div", mock.Class("modal inline"), mock.Hidden()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mock.NewPage()
			p.SetBody(tt.node)
			els, err := p.FindElements("div.modal")
			require.NoError(t, err)
			require.Len(t, els, 1)
			assert.Equal(t, tt.want, IsModalDisplayed(els[0]))
		})
	}
}

// A selector matching one element inside an open modal and another outside
// always resolves to the modal one, whatever the document order.
func TestLocate_ModalPriorityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		before := rapid.IntRange(0, 3).Draw(t, "before")
		after := rapid.IntRange(0, 3).Draw(t, "after")
		modalFirst := rapid.Bool().Draw(t, "modalFirst")

		var nodes []*mock.Node
		for i := 0; i < before; i++ {
			nodes = append(nodes, mock.El("a", mock.Class("go")))
		}
		modal := mock.El("div", mock.Class("modal in"), mock.With(
			mock.El("a", mock.ID("inModal"), mock.Class("go")),
		))
		if modalFirst {
			nodes = append([]*mock.Node{modal}, nodes...)
		} else {
			nodes = append(nodes, modal)
		}
		for i := 0; i < after; i++ {
			nodes = append(nodes, mock.El("a", mock.Class("go")))
		}

		p := mock.NewPage()
		p.SetBody(nodes...)
		el, err := quietSession(p).Locate(context.Background(), "a.go", "go", 0)
		if err != nil {
			t.Fatalf("Locate: %v", err)
		}
		if id := idOf(el); id != "inModal" {
			t.Fatalf("located %q, want inModal", id)
		}
	})
}

func TestWaitForModal(t *testing.T) {
	p := mock.NewPage()
	modal := mock.El("div", mock.ID("divDeleteAuditCModal"), mock.Class("modal fade"), mock.Hidden())
	p.SetBody(modal)
	s := newSession(t, p)

	go func() {
		time.Sleep(150 * time.Millisecond)
		p.Mutate(func(*mock.Node) {
			modal.SetHidden(false)
			modal.Attrs["class"] = "modal fade in"
		})
	}()

	el, err := s.WaitForModal(context.Background(), webforms.AuditC.DeleteModal, "delete dialog", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "divDeleteAuditCModal", idOf(el))
}

func TestWaitForModalToClose(t *testing.T) {
	t.Run("hidden", func(t *testing.T) {
		p := mock.NewPage()
		modal := mock.El("div", mock.Class("modal in"))
		p.SetBody(modal)
		s := newSession(t, p)
		els, _ := p.FindElements(".modal")

		go func() {
			time.Sleep(150 * time.Millisecond)
			p.Mutate(func(*mock.Node) {
				modal.Attrs["class"] = "modal"
				modal.SetHidden(true)
			})
		}()
		assert.NoError(t, s.WaitForModalToClose(context.Background(), els[0], time.Second))
	})

	t.Run("removed", func(t *testing.T) {
		p := mock.NewPage()
		modal := mock.El("div", mock.Class("modal in"))
		p.SetBody(modal)
		s := newSession(t, p)
		els, _ := p.FindElements(".modal")

		p.Remove(modal)
		assert.NoError(t, s.WaitForModalToClose(context.Background(), els[0], time.Second))
	})

	t.Run("stays open", func(t *testing.T) {
		p := mock.NewPage()
		p.SetBody(mock.El("div", mock.Class("modal in")))
		s := newSession(t, p)
		els, _ := p.FindElements(".modal")

		err := s.WaitForModalToClose(context.Background(), els[0], 200*time.Millisecond)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})
}

func TestWaitForModalsClosed(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(mock.El("div", mock.Class("modal"), mock.Hidden()))
	s := newSession(t, p)
	assert.NoError(t, s.WaitForModalsClosed(context.Background(), "", 0))
}

func TestFindModalElement(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(mock.El("div", mock.Class("modal in"), mock.With(
		mock.El("a", mock.ID("hiddenDelete"), mock.Class("modal-delete"), mock.Hidden()),
		mock.El("a", mock.ID("lbDeleteAuditC"), mock.Class("btn btn-danger")),
		mock.El("button", mock.Class("btn btn-default"), mock.Text("Cancel")),
	)))
	modals, err := p.FindElements(".modal")
	require.NoError(t, err)

	el, err := FindModalElement(modals[0], "a.modal-delete", "a[id$='lbDeleteAuditC']")
	require.NoError(t, err)
	assert.Equal(t, "lbDeleteAuditC", idOf(el))

	_, err = FindModalElement(modals[0], "a.confirm", "button.btn-primary")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Equal(t, "Modal element matching selectors 'a.confirm, button.btn-primary' was not found.", err.Error())
}

func TestWaitForElementInDOM_ReturnsHidden(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(mock.El("div", mock.ID("forms"), mock.Class("tab-pane"), mock.Hidden()))
	s := newSession(t, p)

	el, err := s.WaitForElementInDOM(context.Background(), webforms.FormsPane, 0)
	require.NoError(t, err)
	assert.Equal(t, "forms", idOf(el))
}

func TestDescribe(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(mock.El("input", mock.ID("txtDate"), mock.Attr("name", "date"), mock.Class("form-control"), mock.Value("10/25/25")))
	els, err := p.FindElements("input")
	require.NoError(t, err)

	info := Describe(els[0])
	assert.Equal(t, "input", info.Tag)
	assert.Equal(t, "txtDate", info.ID)
	assert.Equal(t, "date", info.Name)
	assert.Equal(t, "10/25/25", info.Value)
	assert.True(t, info.Visible)
	assert.Equal(t, "form-control", info.Class)
	assert.Nil(t, Describe(nil))
}
