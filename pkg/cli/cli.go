// Package cli provides the command-line interface for pookie-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "App settings file (default: ./appsettings.{json,yaml})",
		EnvVars: []string{"POOKIE_CONFIG"},
	},
	&cli.StringSliceFlag{
		Name:  "env-file",
		Usage: "Extra .env files loaded before settings are read",
	},
	&cli.StringFlag{
		Name:    "browser",
		Aliases: []string{"b"},
		Usage:   "Browser backend (selenium, playwright, mock); overrides the Browser setting",
		EnvVars: []string{"POOKIE_BROWSER"},
	},
	&cli.StringFlag{
		Name:    "webdriver-url",
		Usage:   "Remote WebDriver endpoint for the selenium backend",
		EnvVars: []string{"POOKIE_WEBDRIVER_URL"},
	},
	&cli.BoolFlag{
		Name:    "headless",
		Usage:   "Run the browser without a window",
		EnvVars: []string{"POOKIE_HEADLESS"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable debug logging",
		EnvVars: []string{"POOKIE_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "pookie-runner",
		Usage:   "Runs case-management UI flows against the web app",
		Version: Version,
		Description: `pookie-runner drives the case-management web app through Chrome and
executes YAML flows: open a case, fill in a form, save it and check the
result.

Examples:
  pookie-runner test flows/
  pookie-runner test flows/audit_c.yaml --subjects EC01001408989,EC01001408990
  pookie-runner --browser playwright --headless test flows/ -e TEST_DATE=01/15/26
  pookie-runner validate flows/`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			testCommand,
			validateCommand,
		},
	}
}
