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

func TestWaitForReady(t *testing.T) {
	p := mock.NewPage()
	s := newSession(t, p)
	assert.NoError(t, s.WaitForReady(context.Background(), 0))
}

func TestWaitForReady_BecomesReady(t *testing.T) {
	p := mock.NewPage()
	p.SetReady(false)
	s := newSession(t, p)

	go func() {
		time.Sleep(250 * time.Millisecond)
		p.SetReady(true)
	}()
	assert.NoError(t, s.WaitForReady(context.Background(), 2*time.Second))
}

func TestWaitForReady_TimesOut(t *testing.T) {
	p := mock.NewPage()
	p.SetReady(false)
	s := newSession(t, p)

	start := time.Now()
	err := s.WaitForReady(context.Background(), 300*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Contains(t, err.Error(), "document ready")
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestWaitForUpdatePanel(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		s := newSession(t, mock.NewPage())
		assert.NoError(t, s.WaitForUpdatePanel(context.Background(), 0))
	})

	t.Run("async postback in flight", func(t *testing.T) {
		p := mock.NewPage()
		p.SetAsyncPostBack(true)
		s := newSession(t, p)

		go func() {
			time.Sleep(200 * time.Millisecond)
			p.SetAsyncPostBack(false)
		}()
		assert.NoError(t, s.WaitForUpdatePanel(context.Background(), 2*time.Second))
	})

	t.Run("spinner visible", func(t *testing.T) {
		p := mock.NewPage()
		p.SetBody(mock.El("div", mock.ID("ctl00_UpdateProgress1")))
		s := newSession(t, p)

		err := s.WaitForUpdatePanel(context.Background(), 250*time.Millisecond)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})

	t.Run("hidden spinner is idle", func(t *testing.T) {
		p := mock.NewPage()
		p.SetBody(mock.El("div", mock.ID("ctl00_UpdateProgress1"), mock.Attr("style", "display:none")))
		s := newSession(t, p)
		assert.NoError(t, s.WaitForUpdatePanel(context.Background(), 0))
	})
}

func TestWaitForPostback_ContextCancelled(t *testing.T) {
	p := mock.NewPage()
	p.SetReady(false)
	s := newSession(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.WaitForPostback(ctx, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTruthy(t *testing.T) {
	assert.True(t, truthy(true))
	assert.True(t, truthy("complete"))
	assert.False(t, truthy(false))
	assert.False(t, truthy(nil))
	assert.False(t, truthy(1))
}
