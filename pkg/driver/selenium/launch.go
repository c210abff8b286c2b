package selenium

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/logger"
)

// DefaultPort is the chromedriver port used when Config.Port is zero.
const DefaultPort = 9515

// Config selects how a session is started. A non-empty RemoteURL connects
// to an existing WebDriver endpoint; otherwise a local chromedriver is
// spawned.
type Config struct {
	RemoteURL        string
	ChromeDriverPath string
	ChromeBinary     string
	Port             int
	Headless         bool
	WindowSize       string // "1920,1080"
	Args             []string
}

// Launch starts a Chrome session and returns it as a Page.
func Launch(cfg Config) (*Page, error) {
	log := logger.L().With(zap.String("backend", "selenium"))
	caps := Capabilities(cfg)

	if cfg.RemoteURL != "" {
		log.Info("connecting to remote webdriver", zap.String("url", cfg.RemoteURL))
		wd, err := selenium.NewRemote(caps, cfg.RemoteURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create remote session: %w", err)
		}
		return &Page{wd: wd}, nil
	}

	driverPath, err := FindChromeDriver(cfg.ChromeDriverPath)
	if err != nil {
		return nil, err
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	log.Info("starting chromedriver", zap.String("path", driverPath), zap.Int("port", port))

	service, err := selenium.NewChromeDriverService(driverPath, port)
	if err != nil {
		return nil, fmt.Errorf("failed to start chromedriver: %w", err)
	}

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", port))
	if err != nil {
		service.Stop()
		if strings.Contains(err.Error(), "cannot find Chrome binary") {
			return nil, fmt.Errorf("failed to create webdriver: Chrome not found, set CHROME_BINARY_PATH: %w", err)
		}
		return nil, fmt.Errorf("failed to create webdriver: %w", err)
	}
	return &Page{wd: wd, service: service}, nil
}

// Capabilities builds the Chrome capabilities for cfg.
func Capabilities(cfg Config) selenium.Capabilities {
	caps := selenium.Capabilities{"browserName": "chrome"}

	args := []string{"--disable-dev-shm-usage", "--no-sandbox"}
	if cfg.Headless {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	size := cfg.WindowSize
	if size == "" {
		size = "1920,1080"
	}
	args = append(args, "--window-size="+size)
	args = append(args, cfg.Args...)

	chromeCaps := chrome.Capabilities{Args: args}
	if bin := cfg.ChromeBinary; bin != "" {
		chromeCaps.Path = bin
	} else if bin := findChromeBinary(); bin != "" {
		chromeCaps.Path = bin
	}
	caps.AddChrome(chromeCaps)
	return caps
}

// FindChromeDriver resolves the chromedriver executable: the explicit
// path, CHROMEDRIVER_PATH, common install locations, then $PATH.
func FindChromeDriver(explicit string) (string, error) {
	candidates := []string{explicit, os.Getenv("CHROMEDRIVER_PATH")}
	candidates = append(candidates,
		"/usr/local/bin/chromedriver",
		"/usr/bin/chromedriver",
		"/opt/homebrew/bin/chromedriver",
		filepath.Join(os.Getenv("HOME"), "bin", "chromedriver"),
	)
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	if path, err := exec.LookPath("chromedriver"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("chromedriver not found: install it or set CHROMEDRIVER_PATH")
}

func findChromeBinary() string {
	if path := os.Getenv("CHROME_BINARY_PATH"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
