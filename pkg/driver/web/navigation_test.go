package web

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/driver/mock"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/webforms"
)

func loginPage() (user, pass *mock.Node, submitted *int) {
	n := 0
	user = mock.El("input", mock.ID("Login1_UserName"))
	pass = mock.El("input", mock.ID("Login1_Password"), mock.Attr("type", "password"))
	return user, pass, &n
}

func TestLogin(t *testing.T) {
	p := mock.NewPage()
	user, pass, submitted := loginPage()
	p.SetBody(user, pass, mock.El("input", mock.ID("Login1_LoginButton"), mock.Attr("type", "submit"),
		mock.Configure(func(n *mock.Node) { n.OnClick = func(*mock.Page, *mock.Node) { *submitted++ } })))
	d := newDriver(t, p, Config{User: "tester", Password: "s3cret"})

	res := exec(t, d, &flow.LoginStep{})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "tester", user.Value())
	assert.Equal(t, "s3cret", pass.Value())
	assert.Equal(t, 1, *submitted)
	assert.Equal(t, "navigate "+baseURL+"/", p.Actions()[0])
	assert.NotContains(t, res.Message, "s3cret")
}

func TestLogin_StepCredentialsWin(t *testing.T) {
	p := mock.NewPage()
	user, pass, _ := loginPage()
	p.SetBody(user, pass, mock.El("input", mock.ID("Login1_LoginButton")))
	d := newDriver(t, p, Config{User: "tester", Password: "s3cret"})

	res := exec(t, d, &flow.LoginStep{User: "supervisor", Password: "other"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "supervisor", user.Value())
	assert.Equal(t, "other", pass.Value())
}

func TestLogin_MissingCredentials(t *testing.T) {
	d := newDriver(t, mock.NewPage(), Config{User: "tester"})
	res := exec(t, d, &flow.LoginStep{})
	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrMissingRequired))
}

func TestSelectRole_Defaults(t *testing.T) {
	p := mock.NewPage()
	program := mock.El("select", mock.ID("ctl00_ddlProgram"), mock.With(
		mock.El("option", mock.Value("1"), mock.Text("Program 1")),
		mock.El("option", mock.Value("2"), mock.Text("Program 2")),
	))
	role := mock.El("select", mock.ID("ctl00_ddlRole"), mock.With(
		mock.El("option", mock.Value("SUP"), mock.Text("Supervisor")),
		mock.El("option", mock.Value("DE"), mock.Text("DataEntry")),
	))
	continued := false
	p.SetBody(program, role, mock.El("a", mock.ID("ctl00_btnSelectRole"),
		mock.Configure(func(n *mock.Node) { n.OnClick = func(*mock.Page, *mock.Node) { continued = true } })))
	d := newDriver(t, p, Config{})

	res := exec(t, d, &flow.SelectRoleStep{})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "1", program.Value())
	assert.Equal(t, "DE", role.Value())
	assert.True(t, continued)

	res = exec(t, d, &flow.SelectRoleStep{Program: "Program 2", Role: "Supervisor"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "2", program.Value())
	assert.Equal(t, "SUP", role.Value())
}

// caseSearchApp wires a navbar shortcut that reveals the search form, and a
// search button that replaces the page with the case home.
func caseSearchApp(p *mock.Page, shownPC1 string) {
	search := mock.El("a", mock.ID("ctl00_ContentPlaceHolder1_btSearch"), mock.Configure(func(n *mock.Node) {
		n.OnClick = func(p *mock.Page, _ *mock.Node) {
			p.SetBody(mock.El("span", mock.ID("ctl00_lblPC1ID"), mock.Text(shownPC1)))
		}
	}))
	shortcut := mock.El("a", mock.Attr("href", "Pages/SearchCases.aspx"), mock.Configure(func(n *mock.Node) {
		n.OnClick = func(p *mock.Page, _ *mock.Node) {
			p.Mutate(func(body *mock.Node) {
				body.Append(mock.El("input", mock.ID("ctl00_ContentPlaceHolder1_txtPC1ID")), search)
			})
		}
	}))
	p.SetBody(mock.El("div", mock.Class("navbar"), mock.With(
		mock.El("div", mock.Class("btn-group middle"), mock.With(shortcut)),
	)))
}

func TestSearchCase(t *testing.T) {
	p := mock.NewPage()
	caseSearchApp(p, "EC01001408989")
	d := newDriver(t, p, Config{Subject: "EC01001408989"})

	res := exec(t, d, &flow.SearchCaseStep{})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "ctl00_lblPC1ID", res.Element.ID)
	assert.Contains(t, p.Actions(), "keys input#ctl00_ContentPlaceHolder1_txtPC1ID")
}

func TestSearchCase_WrongCaseOpens(t *testing.T) {
	p := mock.NewPage()
	caseSearchApp(p, "EC99")
	d := newDriver(t, p, Config{})

	res := exec(t, d, &flow.SearchCaseStep{PC1ID: "EC01001408989"})
	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, core.ErrNotFound))
	assert.Contains(t, res.Message, "EC01001408989")
}

func TestSearchCase_NeedsSubject(t *testing.T) {
	d := newDriver(t, mock.NewPage(), Config{})
	res := exec(t, d, &flow.SearchCaseStep{})
	assert.True(t, errors.Is(res.Error, core.ErrMissingRequired))
}

// formsTabApp returns a page whose forms pane activates on the nth click of
// the tab.
func formsTabApp(activateOn int) (*mock.Page, *int) {
	p := mock.NewPage()
	clicks := 0
	pane := mock.El("div", mock.ID("ctl00_forms"), mock.Class("tab-pane"), mock.Hidden())
	tab := mock.El("a", mock.ID("ctl00_formstab"), mock.Attr("data-toggle", "tab"), mock.Attr("href", "#forms"),
		mock.Configure(func(n *mock.Node) {
			n.OnClick = func(p *mock.Page, _ *mock.Node) {
				clicks++
				if clicks == activateOn {
					p.Mutate(func(*mock.Node) {
						pane.Attrs["class"] = "tab-pane active"
						pane.SetHidden(false)
					})
				}
			}
		}))
	p.SetBody(tab, pane)
	return p, &clicks
}

func TestOpenFormsTab(t *testing.T) {
	for _, activateOn := range []int{1, 2} {
		p, clicks := formsTabApp(activateOn)
		d := newDriver(t, p, Config{})

		res := exec(t, d, &flow.OpenFormsTabStep{})
		require.True(t, res.Success, res.Message)
		assert.Equal(t, activateOn, *clicks)
	}
}

func TestOpenFormsTab_NeverActivates(t *testing.T) {
	p, clicks := formsTabApp(99)
	d := newDriver(t, p, Config{})

	res := exec(t, d, &flow.OpenFormsTabStep{})
	assert.False(t, res.Success)
	assert.Equal(t, 2, *clicks)
}

func formsPane(p *mock.Page) {
	link := mock.El("a", mock.ID("lnkAuditCs"), mock.Class("list-group-item"),
		mock.Attr("href", "AuditCs.aspx?pc1id=EC01001408989"),
		mock.Configure(func(n *mock.Node) {
			n.OnClick = func(p *mock.Page, _ *mock.Node) {
				p.SetURL(baseURL + "/Pages/AuditCs.aspx?pc1id=EC01001408989")
			}
		}))
	p.SetBody(mock.El("div", mock.ID("ctl00_forms"), mock.Class("tab-pane active"), mock.With(link)))
}

func TestOpenForm_ByName(t *testing.T) {
	for _, step := range []*flow.OpenFormStep{
		{Form: "AuditC", Expect: "auditcs.aspx"},
		{Selector: flow.Selector{CSS: "audit-c"}},
		{Selector: flow.Selector{CSS: "a[href*='AuditCs.aspx']"}, Expect: "AuditCs.aspx"},
	} {
		p := mock.NewPage()
		formsPane(p)
		d := newDriver(t, p, Config{})

		res := exec(t, d, step)
		require.True(t, res.Success, res.Message)
		assert.Equal(t, "lnkAuditCs", res.Element.ID)
		u, _ := p.CurrentURL()
		assert.True(t, strings.HasSuffix(u, "AuditCs.aspx?pc1id=EC01001408989"), u)
	}
}

func TestOpenForm_Errors(t *testing.T) {
	p := mock.NewPage()
	formsPane(p)
	d := newDriver(t, p, Config{})

	res := exec(t, d, &flow.OpenFormStep{Form: "Unknown"})
	assert.True(t, errors.Is(res.Error, core.ErrInvalidConfig))

	res = exec(t, d, &flow.OpenFormStep{Form: "hits"})
	assert.True(t, errors.Is(res.Error, core.ErrNotFound))

	res = exec(t, d, &flow.OpenFormStep{Form: "AuditC", Expect: "HITSs.aspx"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "did not open")
}

func TestOpenForm_PaneLookupFails(t *testing.T) {
	p := mock.NewPage()
	formsPane(p)
	lost := errors.New("javascript error: document unloaded")
	p.FailFind(webforms.FormsPane, lost)
	d := newDriver(t, p, Config{})

	res := exec(t, d, &flow.OpenFormStep{Form: "AuditC"})
	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Error, lost))
	assert.Equal(t, "Forms tab could not be searched", res.Message)
	assert.Empty(t, p.Actions(), "the link is not clicked")
}
