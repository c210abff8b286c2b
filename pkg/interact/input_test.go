package interact

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/driver/mock"
)

func dateInput(opts ...mock.Option) *mock.Node {
	return mock.El("input", append([]mock.Option{mock.ID("txtAuditCDate")}, opts...)...)
}

func inputEl(t *testing.T, p *mock.Page) browser.Element {
	t.Helper()
	els, err := p.FindElements("input")
	require.NoError(t, err)
	require.NotEmpty(t, els)
	return els[0]
}

func TestSetInputValue_Typed(t *testing.T) {
	p := mock.NewPage()
	n := dateInput(mock.Value("01/01/20"))
	p.SetBody(n)
	s := newSession(t, p)

	got, err := s.SetInputValue(context.Background(), inputEl(t, p), "10/25/25", "Date", false)
	require.NoError(t, err)
	assert.Equal(t, Typed, got)
	assert.Equal(t, "10/25/25", n.Value())
	assert.Equal(t, []string{"clear input#txtAuditCDate", "keys input#txtAuditCDate"}, p.Actions())
}

func TestSetInputValue_ScriptedWhenTypingIsIgnored(t *testing.T) {
	p := mock.NewPage()
	n := dateInput(mock.Configure(func(n *mock.Node) { n.IgnoreTyping = true }))
	p.SetBody(n)
	s := newSession(t, p)

	got, err := s.SetInputValue(context.Background(), inputEl(t, p), "10/25/25", "Date", false)
	require.NoError(t, err)
	assert.Equal(t, Scripted, got)
	assert.Equal(t, "10/25/25", n.Value())
	assert.Equal(t, 1, countActions(p.Actions(), "script-value input"))
	assert.Equal(t, 0, countActions(p.Actions(), "unlock"))
}

func TestSetInputValue_ScriptedWhenKeysRejected(t *testing.T) {
	p := mock.NewPage()
	n := dateInput(mock.Configure(func(n *mock.Node) { n.RejectKeys = true }))
	p.SetBody(n)
	s := newSession(t, p)

	got, err := s.SetInputValue(context.Background(), inputEl(t, p), "10/25/25", "Date", false)
	require.NoError(t, err)
	assert.Equal(t, Scripted, got)
	assert.Contains(t, p.Actions(), "keys-rejected input#txtAuditCDate")
}

func TestSetInputValue_UnlocksReadonly(t *testing.T) {
	p := mock.NewPage()
	n := dateInput(mock.Readonly(), mock.Value("01/01/20"),
		mock.Configure(func(n *mock.Node) { n.LockedWhileReadonly = true }))
	p.SetBody(n)
	s := newSession(t, p)

	got, err := s.SetInputValue(context.Background(), inputEl(t, p), "10/25/25", "Date", false)
	require.NoError(t, err)
	assert.Equal(t, Unlocked, got)
	assert.Equal(t, "10/25/25", n.Value())
	assert.Equal(t, []string{
		"clear-rejected input#txtAuditCDate",
		"script-value-ignored input#txtAuditCDate",
		"unlock input#txtAuditCDate",
		"clear input#txtAuditCDate",
		"script-value input#txtAuditCDate",
	}, p.Actions())
}

func TestSetInputValue_ValueNotSet(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(dateInput(mock.Configure(func(n *mock.Node) {
		n.Normalize = func(string) string { return " 1/1/1900 " }
	})))
	s := newSession(t, p)

	_, err := s.SetInputValue(context.Background(), inputEl(t, p), "10/25/25", "Audit-C date", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValueNotSet))
	assert.Equal(t, "Unable to set 'Audit-C date' to '10/25/25'. Last observed value '1/1/1900'.", err.Error())
}

func TestSetInputValue_CaseInsensitiveReadBack(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(dateInput(mock.Configure(func(n *mock.Node) { n.Normalize = strings.ToUpper })))
	s := newSession(t, p)

	got, err := s.SetInputValue(context.Background(), inputEl(t, p), "oct 26, 2025", "Date", false)
	require.NoError(t, err)
	assert.Equal(t, Typed, got)
	assert.Equal(t, 0, countActions(p.Actions(), "script"))
}

func TestSetInputValue_BlurSwallowsTabError(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(dateInput(mock.Configure(func(n *mock.Node) { n.RejectTab = true })))
	s := newSession(t, p)

	_, err := s.SetInputValue(context.Background(), inputEl(t, p), "10/26/25", "Date", true)
	require.NoError(t, err)
	actions := p.Actions()
	assert.Contains(t, actions, "tab-rejected input#txtAuditCDate")
	assert.Equal(t, "blur input#txtAuditCDate", actions[len(actions)-1])
}

func TestSetInputValue_NoBlurByDefault(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(dateInput())
	s := newSession(t, p)

	_, err := s.SetInputValue(context.Background(), inputEl(t, p), "10/26/25", "Date", false)
	require.NoError(t, err)
	assert.Equal(t, 0, countActions(p.Actions(), "blur"))
	assert.Equal(t, 0, countActions(p.Actions(), "tab"))
}

func TestSetInputValue_StaleHandleIsReported(t *testing.T) {
	p := mock.NewPage()
	old := dateInput()
	p.SetBody(old)
	s := newSession(t, p)
	el := inputEl(t, p)

	p.Replace(old, dateInput())

	_, err := s.SetInputValue(context.Background(), el, "10/26/25", "Date", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStaleReference))
	assert.True(t, browser.IsStale(err))

	fresh, err := s.Locate(context.Background(), "input[id$='txtAuditCDate']", "Date", 0)
	require.NoError(t, err)
	got, err := s.SetInputValue(context.Background(), fresh, "10/26/25", "Date", false)
	require.NoError(t, err)
	assert.Equal(t, Typed, got)
}

func TestSetInputValue_OtherErrorsStopEscalation(t *testing.T) {
	lost := errors.New("unknown error: chrome not reachable")

	tests := []struct {
		name    string
		opts    []mock.Option
		actions []string
	}{
		{
			name:    "typing",
			actions: []string{"clear-failed input#txtAuditCDate"},
		},
		{
			name: "clear after unlock",
			opts: []mock.Option{mock.Readonly(), mock.Configure(func(n *mock.Node) { n.LockedWhileReadonly = true })},
			actions: []string{
				"clear-rejected input#txtAuditCDate",
				"script-value-ignored input#txtAuditCDate",
				"unlock input#txtAuditCDate",
				"clear-failed input#txtAuditCDate",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mock.NewPage()
			n := dateInput(append(tt.opts, mock.Configure(func(n *mock.Node) { n.ClearErr = lost }))...)
			p.SetBody(n)
			s := newSession(t, p)

			got, err := s.SetInputValue(context.Background(), inputEl(t, p), "10/25/25", "Date", false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, lost))
			assert.Equal(t, Strategy(0), got)
			assert.Equal(t, tt.actions, p.Actions())
		})
	}
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "typed", Typed.String())
	assert.Equal(t, "scripted", Scripted.String())
	assert.Equal(t, "unlocked", Unlocked.String())
	assert.Equal(t, "none", Strategy(0).String())
}

// Escalation stops at the first step whose read-back matches, so the number
// of scripted writes is exactly what the input's behaviour requires.
func TestSetInputValue_ConvergenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := rapid.StringMatching(`[A-Za-z0-9/]{1,12}`).Draw(t, "value")
		ignoreTyping := rapid.Bool().Draw(t, "ignoreTyping")
		locked := rapid.Bool().Draw(t, "locked")
		upper := rapid.Bool().Draw(t, "upper")

		opts := []mock.Option{mock.Configure(func(n *mock.Node) {
			n.IgnoreTyping = ignoreTyping
			n.LockedWhileReadonly = locked
			if upper {
				n.Normalize = strings.ToUpper
			}
		})}
		if locked {
			opts = append(opts, mock.Readonly())
		}
		p := mock.NewPage()
		n := dateInput(opts...)
		p.SetBody(n)
		els, err := p.FindElements("input")
		if err != nil || len(els) != 1 {
			t.Fatalf("FindElements: %v", err)
		}

		got, err := quietSession(p).SetInputValue(context.Background(), els[0], value, "field", false)
		if err != nil {
			t.Fatalf("SetInputValue: %v", err)
		}
		if !strings.EqualFold(n.Value(), value) {
			t.Fatalf("value %q does not match %q", n.Value(), value)
		}

		want := Typed
		switch {
		case locked:
			want = Unlocked
		case ignoreTyping:
			want = Scripted
		}
		if got != want {
			t.Fatalf("strategy %v, want %v", got, want)
		}

		actions := p.Actions()
		writes := countActions(actions, "script-value input")
		unlocks := countActions(actions, "unlock")
		switch want {
		case Typed:
			if writes != 0 || unlocks != 0 {
				t.Fatalf("typed input escalated: %v", actions)
			}
		case Scripted:
			if writes != 1 || unlocks != 0 {
				t.Fatalf("scripted input over-escalated: %v", actions)
			}
		case Unlocked:
			if writes != 1 || unlocks != 1 {
				t.Fatalf("unlocked input escalation mismatch: %v", actions)
			}
		}
	})
}
