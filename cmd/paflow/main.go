// Command paflow builds Power Automate flows from YAML flow files.
package main

import "github.com/ntt-security-japan/gopowerautomate/pkg/cli"

func main() {
	cli.Execute()
}
