package web

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/interact"
	"github.com/pookie-qa/pookie-runner/pkg/wait"
	"github.com/pookie-qa/pookie-runner/pkg/webforms"
)

// NavigationTimeout bounds the full-page postbacks of searching and login.
const NavigationTimeout = 30 * time.Second

func (d *Driver) login(ctx context.Context, step *flow.LoginStep) *core.CommandResult {
	user, password := step.User, step.Password
	if user == "" {
		user = d.cfg.User
	}
	if password == "" {
		password = d.cfg.Password
	}
	if user == "" || password == "" {
		return errorResult(core.ErrMissingRequired.WithMessage("login needs a user name and password"), "")
	}

	target, err := d.resolveURL("")
	if err != nil {
		return errorResult(err, "")
	}
	if err := d.page.Navigate(target); err != nil {
		return errorResult(err, "Failed to open the login page")
	}
	if err := d.session.WaitForReady(ctx, NavigationTimeout); err != nil {
		return errorResult(err, "")
	}

	userEl, err := d.session.LocateOnPage(ctx, webforms.LoginUser, "User name", d.session.Timeouts.Locate)
	if err != nil {
		return errorResult(err, "")
	}
	if _, err := d.session.SetInputValue(ctx, userEl, user, "User name", false); err != nil {
		return errorResult(err, "")
	}

	// Passwords are typed without the read-back escalation so the value
	// never reaches the debug log.
	passEl, err := d.session.LocateOnPage(ctx, webforms.LoginPassword, "Password", d.session.Timeouts.Locate)
	if err != nil {
		return errorResult(err, "")
	}
	if err := passEl.Clear(); err != nil {
		return errorResult(err, "Failed to clear the password field")
	}
	if err := passEl.SendKeys(password); err != nil {
		return errorResult(err, "Failed to type the password")
	}

	if _, err := d.session.Click(ctx, webforms.LoginSubmit, "Log in"); err != nil {
		return errorResult(err, "")
	}
	if err := d.session.WaitForPostback(ctx, NavigationTimeout); err != nil {
		return errorResult(err, "Login did not complete")
	}
	d.log.Info("logged in", zap.String("user", user))
	return successResult("Logged in as "+user, nil)
}

func (d *Driver) selectRole(ctx context.Context, step *flow.SelectRoleStep) *core.CommandResult {
	program := firstNonEmpty(step.Program, d.cfg.Program, webforms.DefaultProgram)
	role := firstNonEmpty(step.Role, d.cfg.Role, webforms.DefaultRole)

	if _, err := d.session.SelectDropdownOption(ctx, webforms.RoleProgram, "Program", program, ""); err != nil {
		return errorResult(err, "")
	}
	if _, err := d.session.SelectDropdownOption(ctx, webforms.RoleRole, "Role", role, ""); err != nil {
		return errorResult(err, "")
	}
	if _, err := d.session.Click(ctx, webforms.RoleSubmit, "Continue"); err != nil {
		return errorResult(err, "")
	}
	if err := d.session.WaitForPostback(ctx, NavigationTimeout); err != nil {
		return errorResult(err, "Role selection did not complete")
	}
	return successResult(fmt.Sprintf("Selected %s / %s", program, role), nil)
}

func (d *Driver) searchCase(ctx context.Context, step *flow.SearchCaseStep) *core.CommandResult {
	pc1 := firstNonEmpty(step.PC1ID, d.cfg.Subject)
	if pc1 == "" {
		return errorResult(core.ErrMissingRequired.WithMessage("searchCase needs a PC1 id"), "")
	}

	if _, err := d.session.Click(ctx, webforms.SearchCasesButton, "Search Cases"); err != nil {
		return errorResult(err, "")
	}
	if err := d.session.WaitForUpdatePanel(ctx, NavigationTimeout); err != nil {
		return errorResult(err, "")
	}
	if err := d.session.WaitForReady(ctx, NavigationTimeout); err != nil {
		return errorResult(err, "")
	}

	input, err := d.session.Locate(ctx, webforms.SearchPC1Input, "PC1 ID", d.session.Timeouts.Locate)
	if err != nil {
		return errorResult(err, "")
	}
	if _, err := d.session.SetInputValue(ctx, input, pc1, "PC1 ID", false); err != nil {
		return errorResult(err, "")
	}
	if _, err := d.session.Click(ctx, webforms.SearchButton, "Search"); err != nil {
		return errorResult(err, "")
	}
	if err := d.session.WaitForPostback(ctx, NavigationTimeout); err != nil {
		return errorResult(err, "Search did not complete")
	}

	shown, err := wait.Poll(ctx, wait.Options{
		Description: "case home for " + pc1,
		Timeout:     stepTimeout(step, d.session.Timeouts.Locate),
		Interval:    d.session.Interval,
	}, func(context.Context) (browser.Element, bool, error) {
		els, err := d.page.FindElements(webforms.PC1Display)
		if err != nil {
			return nil, false, err
		}
		for _, el := range els {
			if strings.Contains(strings.ToUpper(browser.TextOrEmpty(el)), strings.ToUpper(pc1)) {
				return el, true, nil
			}
		}
		return nil, false, nil
	})
	if err != nil {
		return errorResult(err, fmt.Sprintf("Case home for %s did not open", pc1))
	}
	return successResult("Opened case "+pc1, interact.Describe(shown))
}

func paneActive(pane browser.Element) bool {
	if !browser.Displayed(pane) {
		return false
	}
	for _, c := range strings.Fields(browser.AttrOrEmpty(pane, "class")) {
		if c == "active" {
			return true
		}
	}
	return false
}

func (d *Driver) openFormsTab(ctx context.Context, step *flow.OpenFormsTabStep) *core.CommandResult {
	if _, err := d.session.Click(ctx, webforms.FormsTab, "Forms tab"); err != nil {
		return errorResult(err, "")
	}
	if err := d.session.WaitForReady(ctx, d.session.Timeouts.Ready); err != nil {
		return errorResult(err, "")
	}

	pane, err := d.session.WaitForElementInDOM(ctx, webforms.FormsPane, d.session.Timeouts.Locate)
	if err != nil {
		return errorResult(err, "Forms pane is missing")
	}
	if !paneActive(pane) {
		d.log.Debug("forms pane not active, clicking the tab again")
		if _, err := d.session.Click(ctx, webforms.FormsTab, "Forms tab"); err != nil {
			return errorResult(err, "")
		}
		err := wait.Until(ctx, wait.Options{
			Description: "forms pane active",
			Timeout:     stepTimeout(step, d.session.Timeouts.Locate),
			Interval:    d.session.Interval,
		}, func(context.Context) (bool, error) {
			els, err := d.page.FindElements(webforms.FormsPane)
			if err != nil {
				return false, err
			}
			for _, el := range els {
				if paneActive(el) {
					return true, nil
				}
			}
			return false, nil
		})
		if err != nil {
			return errorResult(err, "Forms tab did not activate")
		}
	}
	return successResult("Forms tab open", nil)
}

func (d *Driver) openForm(ctx context.Context, step *flow.OpenFormStep) *core.CommandResult {
	css, desc := step.Selector.CSS, step.Selector.Describe()
	name := step.Form
	if name == "" {
		name = css
	}
	if form, ok := webforms.LookupForm(name); ok {
		css, desc = form.Link, form.Name
	} else if step.Form != "" {
		return errorResult(core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown form %q", step.Form)), "")
	}
	if css == "" {
		return errorResult(core.ErrMissingRequired.WithMessage("openForm needs a form or selector"), "")
	}
	timeout := stepTimeout(step, d.session.Timeouts.Locate)

	panes, err := d.page.FindElements(webforms.FormsPane)
	if err != nil {
		return errorResult(err, "Forms tab could not be searched")
	}
	var link browser.Element
	if pane := browser.FirstDisplayed(panes); pane != nil {
		link, err = d.session.LocateWithin(ctx, pane, css, desc, timeout)
	} else {
		link, err = d.session.Locate(ctx, css, desc, timeout)
	}
	if err != nil {
		return errorResult(err, "")
	}
	info := interact.Describe(link)
	if err := d.session.ClickElement(ctx, link, desc); err != nil {
		return errorResult(err, "")
	}
	if err := d.session.WaitForPostback(ctx, NavigationTimeout); err != nil {
		return errorResult(err, "")
	}

	if step.Expect != "" {
		err := wait.Until(ctx, wait.Options{
			Description: "url containing " + step.Expect,
			Timeout:     timeout,
			Interval:    d.session.Interval,
		}, func(context.Context) (bool, error) {
			u, err := d.page.CurrentURL()
			if err != nil {
				return false, err
			}
			return strings.Contains(strings.ToLower(u), strings.ToLower(step.Expect)), nil
		})
		if err != nil {
			return errorResult(err, fmt.Sprintf("%s did not open", desc))
		}
	}
	return successResult("Opened "+desc, info)
}

func (d *Driver) takeScreenshot(step *flow.TakeScreenshotStep) *core.CommandResult {
	data, err := d.page.Screenshot()
	if err != nil {
		return errorResult(err, "Failed to take screenshot")
	}
	if step.Path == "" {
		result := successResult("Screenshot taken", nil)
		result.Data = data
		return result
	}
	path := step.Path
	if filepath.Ext(path) == "" {
		path += ".png"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errorResult(err, "")
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errorResult(err, "Failed to save screenshot")
	}
	result := successResult("Screenshot saved to "+path, nil)
	result.Data = path
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
