package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ntt-security-japan/gopowerautomate/pkg/connector"
)

var connectorsCommand = &cli.Command{
	Name:      "connectors",
	Usage:     "List catalogued connectors, or the operations of one",
	ArgsUsage: "[connector]",
	Action:    runConnectors,
}

func runConnectors(c *cli.Context) error {
	w := c.App.Writer
	if c.NArg() == 0 {
		for _, conn := range connector.All() {
			fmt.Fprintf(w, "%-26s %-20s %d operations\n", conn.Name, conn.DisplayName, len(connector.Operations(conn.Name)))
		}
		return nil
	}

	conn, err := connector.Lookup(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (%s)\n", conn.DisplayName, conn.APIID())
	for _, op := range connector.Operations(conn.Name) {
		var params []string
		for _, p := range op.Params {
			name := p.Name
			if p.Required {
				name += "*"
			}
			params = append(params, name)
		}
		fmt.Fprintf(w, "  %-40s %s\n", op.ID, strings.Join(params, ", "))
	}
	return nil
}
