package playwright

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/logger"
)

// DefaultActionTimeout bounds Playwright's own auto-waiting so a blocked
// click surfaces quickly and the interaction layer can fall back.
const DefaultActionTimeout = 5000.0

// Config controls the launched browser.
type Config struct {
	Headless bool
	// Install downloads the driver and Chromium before launching.
	Install bool
	// DriverDirectory holds the Playwright driver; empty uses the library's
	// cache location.
	DriverDirectory string

	SlowMo        float64
	ActionTimeout float64 // milliseconds
	Viewport      *playwright.Size
}

// Launch starts Playwright, launches Chromium and opens one page. Closing
// the returned Page tears all three down.
func Launch(cfg Config) (*Page, error) {
	log := logger.L().With(zap.String("backend", "playwright"))

	runOpts := &playwright.RunOptions{
		DriverDirectory: cfg.DriverDirectory,
		Browsers:        []string{"chromium"},
	}
	if cfg.Install {
		log.Info("installing playwright driver and chromium")
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(cfg.Headless)}
	if cfg.SlowMo > 0 {
		opts.SlowMo = playwright.Float(cfg.SlowMo)
	}
	b, err := pw.Chromium.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	viewport := cfg.Viewport
	if viewport == nil {
		viewport = &playwright.Size{Width: 1920, Height: 1080}
	}
	page, err := b.NewPage(playwright.BrowserNewPageOptions{Viewport: viewport})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	timeout := cfg.ActionTimeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	page.SetDefaultTimeout(timeout)
	log.Info("chromium launched", zap.Bool("headless", cfg.Headless))

	p := Wrap(page)
	p.closers = []func() error{
		func() error { return b.Close() },
		pw.Stop,
	}
	return p, nil
}
