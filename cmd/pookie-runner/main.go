// Command pookie-runner runs case-management UI flows against the web app.
package main

import "github.com/pookie-qa/pookie-runner/pkg/cli"

func main() {
	cli.Execute()
}
