package interact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/driver/mock"
)

func successToast(heading, body string) *mock.Node {
	return mock.El("div", mock.Class("jq-toast-single jq-has-icon jq-icon-success"), mock.With(
		mock.El("span", mock.Class("close-jq-toast-single"), mock.Text("×")),
		mock.El("h2", mock.Class("jq-toast-heading"), mock.Text(heading)),
		mock.El("span", mock.Text(body)),
	))
}

func TestGetToastMessage(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(
		mock.El("div", mock.Class("toast-container")),
		mock.El("div", mock.Class("alert alert-success"), mock.Text("Form Saved for EC01001408989")),
	)
	var slept time.Duration
	s := NewSession(p, WithSleep(func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}))

	msg, err := s.GetToastMessage(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Form Saved for EC01001408989", msg)
	assert.Equal(t, time.Second, slept)
}

func TestGetToastMessage_None(t *testing.T) {
	s := newSession(t, mock.NewPage())
	msg, err := s.GetToastMessage(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestWaitForSuccessToast(t *testing.T) {
	p := mock.NewPage()
	s := newSession(t, p)

	go func() {
		time.Sleep(150 * time.Millisecond)
		p.Mutate(func(body *mock.Node) {
			body.Append(successToast("Form Saved!", "Audit-C saved for EC01001408989"))
		})
	}()

	toast, err := s.WaitForSuccessToast(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Form Saved!", toast.Heading)
	assert.Equal(t, "Audit-C saved for EC01001408989", toast.Body)
	assert.Contains(t, toast.Text, "Form Saved!")
}

func TestWaitForSuccessToast_IgnoresErrorToast(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(mock.El("div", mock.Class("jq-toast-single jq-icon-error"), mock.Text("Failed")))
	s := newSession(t, p)

	_, err := s.WaitForSuccessToast(context.Background(), 200*time.Millisecond)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestSplitToast_NoHeading(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(mock.El("div", mock.Class("jq-toast-single jq-icon-success"), mock.Text("× Record deleted")))
	s := newSession(t, p)

	toast, err := s.WaitForSuccessToast(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, toast.Heading)
	assert.Equal(t, "Record deleted", toast.Body)
}

func TestValidationMessages(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(
		mock.El("div", mock.Class("validation-summary alert alert-danger"), mock.With(
			mock.El("ul", mock.With(
				mock.El("li", mock.Text("Audit-C date is required")),
				mock.El("li", mock.Text("How often is required")),
			)),
		)),
		mock.El("span", mock.Class("field-validation-error"), mock.Text("  ")),
		mock.El("span", mock.Class("text-danger"), mock.Text("hidden"), mock.Hidden()),
	)
	s := newSession(t, p)

	msgs, err := s.ValidationMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Audit-C date is required\nHow often is required", msgs[0])

	first, err := s.ValidationSummary()
	require.NoError(t, err)
	assert.Equal(t, msgs[0], first)
}

func TestValidationSummary_Empty(t *testing.T) {
	s := newSession(t, mock.NewPage())
	got, err := s.ValidationSummary()
	require.NoError(t, err)
	assert.Empty(t, got)
}
