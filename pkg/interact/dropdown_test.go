package interact

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/driver/mock"
)

func howOften() *mock.Node {
	return mock.El("select", mock.ID("ddlAuditCHowOften"), mock.With(
		mock.El("option", mock.Value(""), mock.Text("--Select--"), mock.Attr("selected", "selected")),
		mock.El("option", mock.Value("0"), mock.Text("Never")),
		mock.El("option", mock.Value("1"), mock.Text(" Monthly or less ")),
		mock.El("option", mock.Value("2"), mock.Text("2-4 times a month")),
	))
}

func dropdown(t *testing.T, p *mock.Page) browser.Element {
	t.Helper()
	els, err := p.FindElements("select")
	require.NoError(t, err)
	require.NotEmpty(t, els)
	return els[0]
}

func TestSelectByTextOrValue(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		value     string
		want      SelectOutcome
		wantValue string
	}{
		{"exact text", "Never", "", Matched, "0"},
		{"text is trimmed", "Monthly or less", "", Matched, "1"},
		{"text wins over value", "Never", "2", Matched, "0"},
		{"value fallback", "Weekly", "2", Fallback, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mock.NewPage()
			sel := howOften()
			p.SetBody(sel)

			got, err := SelectByTextOrValue(dropdown(t, p), tt.text, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantValue, sel.Value())
		})
	}
}

func TestSelectByTextOrValue_Failed(t *testing.T) {
	for _, value := range []string{"", "  ", "9"} {
		p := mock.NewPage()
		p.SetBody(howOften())

		got, err := SelectByTextOrValue(dropdown(t, p), "Daily", value)
		assert.Equal(t, Failed, got)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrOptionNotFound))
		assert.Equal(t, "Option 'Daily' was not found in dropdown 'ddlAuditCHowOften'.", err.Error())
	}
}

func TestSelectByTextOrValue_AlreadySelectedIsNotClicked(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(howOften())

	_, err := SelectByTextOrValue(dropdown(t, p), "--Select--", "")
	require.NoError(t, err)
	assert.Empty(t, p.Actions())
}

func TestSelectOutcome_String(t *testing.T) {
	assert.Equal(t, "matched", Matched.String())
	assert.Equal(t, "fallback", Fallback.String())
	assert.Equal(t, "failed", Failed.String())
}

func TestSelectDropdownOption_WaitsForPostback(t *testing.T) {
	p := mock.NewPage()
	sel := howOften()
	changes := 0
	sel.OnChange = func(p *mock.Page, n *mock.Node) {
		changes++
		// The partial postback re-renders the score label.
		p.Mutate(func(body *mock.Node) {
			body.Append(mock.El("span", mock.ID("lblAuditCScore"), mock.Text(n.Value())))
		})
	}
	p.SetBody(sel)

	s := newSession(t, p)
	outcome, err := s.SelectDropdownOption(context.Background(), "select[id$='ddlAuditCHowOften']", "How often", "2-4 times a month", "")
	require.NoError(t, err)
	assert.Equal(t, Matched, outcome)
	assert.Equal(t, 1, changes)

	score, err := s.Locate(context.Background(), "span[id$='lblAuditCScore']", "score", 0)
	require.NoError(t, err)
	assert.Equal(t, "2", browser.TextOrEmpty(score))
}

func TestSelectDropdownOption_NotFound(t *testing.T) {
	s := newSession(t, mock.NewPage())
	outcome, err := s.SelectDropdownOption(context.Background(), "select#ddlMissing", "Missing dropdown", "x", "")
	assert.Equal(t, Failed, outcome)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestSelectOption_PostbackNeverSettles(t *testing.T) {
	p := mock.NewPage()
	p.SetBody(howOften())
	p.SetAsyncPostBack(true)
	s := newSession(t, p)

	outcome, err := s.SelectOption(context.Background(), dropdown(t, p), "How often", "Never", "")
	assert.Equal(t, Matched, outcome)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Contains(t, err.Error(), "update panel idle")
}

func TestSelectOption_StaleDropdown(t *testing.T) {
	p := mock.NewPage()
	old := howOften()
	p.SetBody(old)
	s := newSession(t, p)
	el := dropdown(t, p)

	p.Replace(old, howOften())

	_, err := s.SelectOption(context.Background(), el, "How often", "Never", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStaleReference))

	// Re-resolving through the locator recovers.
	outcome, err := s.SelectDropdownOption(context.Background(), "select[id$='ddlAuditCHowOften']", "How often", "Never", "")
	require.NoError(t, err)
	assert.Equal(t, Matched, outcome)
}

// Text that exists always matches; otherwise a valid non-blank value falls
// back; otherwise selection fails with OptionNotFound.
func TestSelectByTextOrValue_FallbackOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "options")
		textIdx := rapid.IntRange(-1, n-1).Draw(t, "textIdx")
		valueIdx := rapid.IntRange(-1, n-1).Draw(t, "valueIdx")

		sel := mock.El("select", mock.ID("ddl"))
		for i := 0; i < n; i++ {
			sel.Append(mock.El("option", mock.Value(fmt.Sprintf("v%d", i)), mock.Text(fmt.Sprintf("Label %d", i))))
		}
		p := mock.NewPage()
		p.SetBody(sel)
		els, err := p.FindElements("select")
		if err != nil || len(els) != 1 {
			t.Fatalf("FindElements: %v", err)
		}

		text, value := "Missing label", ""
		if textIdx >= 0 {
			text = fmt.Sprintf("Label %d", textIdx)
		}
		if valueIdx >= 0 {
			value = fmt.Sprintf("v%d", valueIdx)
		}

		got, err := SelectByTextOrValue(els[0], text, value)
		switch {
		case textIdx >= 0:
			if got != Matched || err != nil || sel.Value() != fmt.Sprintf("v%d", textIdx) {
				t.Fatalf("want Matched v%d, got %v %v %q", textIdx, got, err, sel.Value())
			}
		case valueIdx >= 0:
			if got != Fallback || err != nil || sel.Value() != value {
				t.Fatalf("want Fallback %s, got %v %v %q", value, got, err, sel.Value())
			}
		default:
			if got != Failed || !errors.Is(err, core.ErrOptionNotFound) {
				t.Fatalf("want Failed, got %v %v", got, err)
			}
		}
	})
}

func TestTextMatchesCandidate(t *testing.T) {
	tests := []struct {
		label, candidate string
		want             bool
	}{
		{"Never", "never", true},
		{"  Monthly   or less ", "Monthly or less", true},
		{"Never (0)", "Never", true},
		{"Never (0)", "Never (0)", true},
		{"Neverland", "Never", false},
		{"(blank)", "", false},
		{"Daily or almost daily", "Daily", false},
	}
	for _, tt := range tests {
		if got := TextMatchesCandidate(tt.label, tt.candidate); got != tt.want {
			t.Errorf("TextMatchesCandidate(%q, %q) = %v, want %v", tt.label, tt.candidate, got, tt.want)
		}
	}
}

func TestNormalizeOptionText(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeOptionText("  a \n b\tc "))
	assert.Equal(t, "", NormalizeOptionText("   "))
}

func TestSelectCandidateOn(t *testing.T) {
	p := mock.NewPage()
	sel := mock.El("select", mock.ID("ddlWorker"), mock.With(
		mock.El("option", mock.Value("0"), mock.Text("--Select--")),
		mock.El("option", mock.Value("17"), mock.Text("Smith, Jane (FSW)")),
		mock.El("option", mock.Value("18"), mock.Text("Doe, John")),
	))
	p.SetBody(sel)
	s := newSession(t, p)

	dropdown, err := s.Locate(context.Background(), "select[id*='ddlWorker']", "Worker", 0)
	require.NoError(t, err)

	chosen, err := s.SelectCandidateOn(context.Background(), dropdown, "Worker", "Unknown", "smith, jane")
	require.NoError(t, err)
	assert.Equal(t, "Smith, Jane (FSW)", chosen)
	assert.Equal(t, "17", sel.Value())

	_, err = s.SelectCandidateOn(context.Background(), dropdown, "Worker", "Nobody")
	assert.True(t, errors.Is(err, core.ErrOptionNotFound))
}
