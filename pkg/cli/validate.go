package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pookie-qa/pookie-runner/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check flow files without opening a browser",
	ArgsUsage: "<flow-file-or-folder>...",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},
	},
	Action: runValidate,
}

func runValidate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one flow file or folder is required")
	}

	v := validator.New(c.StringSlice("include-tags"), c.StringSlice("exclude-tags"))
	var cases []string
	var errs []error
	for _, path := range c.Args().Slice() {
		result := v.Validate(path)
		cases = append(cases, result.TestCases...)
		errs = append(errs, result.Errors...)
	}

	for _, tc := range cases {
		fmt.Printf("  %s✓%s %s\n", color(colorGreen), color(colorReset), tc)
	}
	for _, err := range errs {
		fmt.Printf("  %s✗%s %v\n", color(colorRed), color(colorReset), err)
	}
	fmt.Printf("\n%d test flow(s), %d error(s)\n", len(cases), len(errs))

	if len(errs) > 0 {
		return cli.Exit("", 1)
	}
	return nil
}
