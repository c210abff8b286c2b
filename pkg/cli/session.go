package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/config"
	"github.com/pookie-qa/pookie-runner/pkg/core"
	"github.com/pookie-qa/pookie-runner/pkg/driver/mock"
	pwdriver "github.com/pookie-qa/pookie-runner/pkg/driver/playwright"
	seldriver "github.com/pookie-qa/pookie-runner/pkg/driver/selenium"
	"github.com/pookie-qa/pookie-runner/pkg/driver/web"
	"github.com/pookie-qa/pookie-runner/pkg/executor"
	"github.com/pookie-qa/pookie-runner/pkg/interact"
	"github.com/pookie-qa/pookie-runner/pkg/logger"
)

// Browser backends.
const (
	browserSelenium   = "selenium"
	browserPlaywright = "playwright"
	browserMock       = "mock"
)

// newSessionFactory returns the executor's session factory for the
// configured backend. Each call opens one browser bound to a subject.
func newSessionFactory(cfg *RunConfig) (executor.SessionFactory, error) {
	switch cfg.Browser {
	case browserMock:
		return func(ctx context.Context, subject string) (core.Driver, func() error, error) {
			d := mock.New(mock.Config{
				SessionID: uuid.NewString(),
				Subject:   subject,
				BaseURL:   cfg.App.AppUrl,
			})
			return d, func() error { return nil }, nil
		}, nil

	case browserSelenium:
		// Local chromedriver services need distinct ports when subjects run
		// side by side.
		var nextPort int32
		return func(ctx context.Context, subject string) (core.Driver, func() error, error) {
			port := seldriver.DefaultPort + int(atomic.AddInt32(&nextPort, 1)) - 1
			driverPath := cfg.App.ChromeDriverPath
			if driverPath == "" {
				driverPath = config.BundledChromeDriver()
			}
			page, err := seldriver.Launch(seldriver.Config{
				RemoteURL:        cfg.WebDriverURL,
				ChromeDriverPath: driverPath,
				Port:             port,
				Headless:         cfg.Headless,
			})
			if err != nil {
				return nil, nil, err
			}
			return openWebDriver(cfg, page, subject, page.SessionID())
		}, nil

	case browserPlaywright:
		return func(ctx context.Context, subject string) (core.Driver, func() error, error) {
			page, err := pwdriver.Launch(pwdriver.Config{
				Headless:        cfg.Headless,
				Install:         cfg.Install,
				DriverDirectory: filepath.Join(config.GetCacheDir(), "playwright"),
			})
			if err != nil {
				return nil, nil, err
			}
			return openWebDriver(cfg, page, subject, uuid.NewString())
		}, nil
	}
	return nil, fmt.Errorf("unsupported browser %q (selenium, playwright, mock)", cfg.Browser)
}

// openWebDriver binds a launched page to the web driver. The release
// function closes the browser.
func openWebDriver(cfg *RunConfig, page browser.Page, subject, sessionID string) (core.Driver, func() error, error) {
	d := web.New(page, web.Config{
		BaseURL:   cfg.App.AppUrl,
		User:      cfg.App.UserName,
		Password:  cfg.App.Password,
		Program:   cfg.App.Program,
		Role:      cfg.App.Role,
		Subject:   subject,
		Browser:   "chrome",
		Backend:   cfg.Browser,
		SessionID: sessionID,
		Headless:  cfg.Headless,
	},
		interact.WithTimeouts(sessionTimeouts(cfg.App.Timeouts)),
		interact.WithLogger(logger.L()),
	)
	return d, d.Close, nil
}

// sessionTimeouts applies configured overrides over the defaults.
func sessionTimeouts(t config.Timeouts) interact.Timeouts {
	out := interact.DefaultTimeouts()
	if t.Locate > 0 {
		out.Locate = t.Locate
	}
	if t.Dropdown > 0 {
		out.Dropdown = t.Dropdown
	}
	if t.Ready > 0 {
		out.Ready = t.Ready
		out.UpdatePanel = t.Ready
	}
	if t.Modal > 0 {
		out.Modal = t.Modal
	}
	if t.Toast > 0 {
		out.Toast = t.Toast
	}
	return out
}
