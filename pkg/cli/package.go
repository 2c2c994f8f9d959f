package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ntt-security-japan/gopowerautomate/pkg/action"
	"github.com/ntt-security-japan/gopowerautomate/pkg/archive"
	"github.com/ntt-security-japan/gopowerautomate/pkg/config"
	"github.com/ntt-security-japan/gopowerautomate/pkg/connection"
	"github.com/ntt-security-japan/gopowerautomate/pkg/connector"
	"github.com/ntt-security-japan/gopowerautomate/pkg/flow"
	"github.com/ntt-security-japan/gopowerautomate/pkg/logger"
	"github.com/ntt-security-japan/gopowerautomate/pkg/trigger"
)

// Sample defaults.
const (
	DefaultSampleName     = "GetUserEnvironmentsFlow"
	DummyFlowManagementID = "shared-flowmanagemen-12345678-90ab-cdef-1234-567890abcdef"
)

var packageCommand = &cli.Command{
	Name:      "package",
	Usage:     "Package a YAML flow file into an import zip",
	ArgsUsage: "<flow-file>",
	Description: `Package writes <name>.zip for the legacy Power Automate import.

Connection names are taken, lowest priority first, from paflow.yaml
connections, the paflow.yaml connectionsFile listing, the flow file's
config document and --connection flags.

Examples:
  paflow package flow.yaml
  paflow package --name "Weekly report" --output dist flow.yaml
  paflow package --connection shared_flowmanagement=shared-flowmanagemen-1234 flow.yaml`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory (default: paflow.yaml output or .)",
			EnvVars: []string{"PAFLOW_OUTPUT"},
		},
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "Package display name (default: flow config name or file name)",
		},
		&cli.StringSliceFlag{
			Name:  "connection",
			Usage: "Existing connection for a connector (CONNECTOR=CONNECTION_NAME)",
		},
	},
	Action: runPackage,
}

var sampleCommand = &cli.Command{
	Name:  "sample",
	Usage: "Package a test flow listing environments and connections",
	Description: `Sample packages a flow started by a button that lists the user's
environments and connections through the flow management connector.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "Package display name",
			Value:   DefaultSampleName,
		},
		&cli.StringFlag{
			Name:    "flowmanagement-id",
			Aliases: []string{"f"},
			Usage:   "Connection name of the flow management connector",
			Value:   DummyFlowManagementID,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory",
			Value:   ".",
		},
	},
	Action: runSample,
}

// parseAssignments parses KEY=VALUE pairs, ignoring malformed entries.
func parseAssignments(pairs []string) map[string]string {
	result := make(map[string]string)
	for _, p := range pairs {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) == 2 && parts[0] != "" {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// connectionNames merges connection names from every source, keyed by
// canonical connector name.
func connectionNames(cfg *config.Config, doc *flow.Document, flags []string) (map[string]string, error) {
	names := map[string]string{}
	set := func(src map[string]string) error {
		for k, v := range src {
			c, err := connector.Lookup(k)
			if err != nil {
				return err
			}
			names[c.Name] = v
		}
		return nil
	}

	if err := set(cfg.Connections); err != nil {
		return nil, err
	}
	if cfg.ConnectionsFile != "" {
		listing := connection.New()
		if _, err := listing.LoadFile(cfg.ConnectionsFile); err != nil {
			return nil, err
		}
		for _, ref := range listing.Export() {
			c, err := connector.Lookup(ref.ID)
			if err != nil {
				logger.Debug("skipping connection %s: %v", ref.ConnectionName, err)
				continue
			}
			names[c.Name] = ref.ConnectionName
		}
	}
	if doc != nil {
		if err := set(doc.Config.Connections); err != nil {
			return nil, err
		}
	}
	if err := set(parseAssignments(flags)); err != nil {
		return nil, err
	}
	return names, nil
}

func packageName(flagName string, doc *flow.Document) string {
	if flagName != "" {
		return flagName
	}
	if doc.Config.Name != "" {
		return doc.Config.Name
	}
	base := filepath.Base(doc.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runPackage(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one flow file is required")
	}
	cfg, err := loadWorkspace(c)
	if err != nil {
		return err
	}
	doc, f, err := loadFlow(c.Args().First())
	if err != nil {
		return err
	}

	names, err := connectionNames(cfg, doc, c.StringSlice("connection"))
	if err != nil {
		return err
	}
	pkg, err := archive.New(packageName(c.String("name"), doc), f)
	if err != nil {
		return err
	}
	if err := pkg.UseFlowConnectors(names); err != nil {
		return err
	}

	output := c.String("output")
	if output == "" {
		output = cfg.Output
	}
	path, err := pkg.ExportZipfile(output)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}

// SampleFlow builds the environment and connection listing flow.
func SampleFlow() (*flow.Flow, error) {
	t, err := trigger.NewManual(flow.DefaultTriggerName)
	if err != nil {
		return nil, err
	}
	f := flow.New()
	f.SetTrigger(t)

	envs, err := action.NewListUserEnvironments("ListUserEnvironments")
	if err != nil {
		return nil, err
	}
	conns, err := action.NewListConnections("ListConnectionsAction")
	if err != nil {
		return nil, err
	}
	for _, op := range []*action.Operation{envs, conns} {
		if err := f.AddTopAction(op); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func runSample(c *cli.Context) error {
	id := c.String("flowmanagement-id")
	if c.IsSet("flowmanagement-id") {
		fmt.Fprintf(c.App.Writer, "[+] Generating test flow with flow management ID: %s\n", id)
	} else {
		fmt.Fprintln(c.App.Writer, "[+] Generating test flow with dummy flow management ID.")
	}

	f, err := SampleFlow()
	if err != nil {
		return err
	}
	pkg, err := archive.New(c.String("name"), f)
	if err != nil {
		return err
	}
	if err := pkg.UseConnector(connector.FlowManagement, id); err != nil {
		return err
	}
	path, err := pkg.ExportZipfile(c.String("output"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}
