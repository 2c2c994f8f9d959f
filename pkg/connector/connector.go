// Package connector catalogues the managed Power Automate connectors that
// flows built by this module can call.
package connector

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

// APIPrefix is the resource path prefix shared by every managed connector.
const APIPrefix = "/providers/Microsoft.PowerApps/apis/"

// Connector names.
const (
	FlowManagement = "shared_flowmanagement"
	Dropbox        = "shared_dropbox"
	Teams          = "shared_teams"
	SharePoint     = "shared_sharepointonline"
	Office365      = "shared_office365"
	Approvals      = "shared_approvals"
	LogicFlows     = "shared_logicflows"
)

// maxPrefixLen is how much of the API name Power Automate keeps when it
// derives a connection name such as "shared-flowmanagemen-<uuid>".
const maxPrefixLen = 20

var connectionSuffix = regexp.MustCompile(`-[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`)

// Connector describes one managed API.
type Connector struct {
	Name           string // API name, e.g. shared_teams
	DisplayName    string
	APIIconURI     string
	ConnectionIcon string

	// ConnectionDisplayName labels the connection resource in import
	// packages; empty means DisplayName.
	ConnectionDisplayName string
}

// ConnectionLabel returns the display name of the connector's connection
// resource.
func (c Connector) ConnectionLabel() string {
	if c.ConnectionDisplayName != "" {
		return c.ConnectionDisplayName
	}
	return c.DisplayName
}

// APIID returns the full API resource id.
func (c Connector) APIID() string {
	return APIPrefix + c.Name
}

// ConnectionPrefix returns the truncated name Power Automate embeds in
// connection names created for this connector.
func (c Connector) ConnectionPrefix() string {
	return truncate(c.Name, maxPrefixLen)
}

var catalogue = map[string]Connector{
	FlowManagement: {
		Name:                  FlowManagement,
		DisplayName:           "Flow Management",
		APIIconURI:            "https://connectoricons-prod.azureedge.net/releases/v1.0.1650/1.0.1650.3374/flowmanagement/icon.png",
		ConnectionIcon:        "https://connectoricons-prod.azureedge.net/releases/v1.0.1644/1.0.1644.3342/flowmanagement/icon.png",
		ConnectionDisplayName: "User",
	},
	Dropbox: {
		Name:           Dropbox,
		DisplayName:    "Dropbox",
		APIIconURI:     "https://connectoricons-prod.azureedge.net/releases/v1.0.1651/1.0.1651.3382/dropbox/icon.png",
		ConnectionIcon: "https://connectoricons-prod.azureedge.net/releases/v1.0.1651/1.0.1651.3382/dropbox/icon.png",
	},
	Teams: {
		Name:           Teams,
		DisplayName:    "Microsoft Teams",
		APIIconURI:     "https://connectoricons-prod.azureedge.net/releases/v1.0.1657/1.0.1657.3443/teams/icon.png",
		ConnectionIcon: "https://connectoricons-prod.azureedge.net/releases/v1.0.1657/1.0.1657.3443/teams/icon.png",
	},
	SharePoint: {
		Name:           SharePoint,
		DisplayName:    "SharePoint",
		APIIconURI:     "https://connectoricons-prod.azureedge.net/u/shgogna/globalperconnector-train1/1.0.1639.3312/sharepointonline/icon.png",
		ConnectionIcon: "https://connectoricons-prod.azureedge.net/u/shgogna/globalperconnector-train1/1.0.1639.3312/sharepointonline/icon.png",
	},
	Office365: {
		Name:           Office365,
		DisplayName:    "Office 365 Outlook",
		APIIconURI:     "https://connectoricons-prod.azureedge.net/u/laborbol/partial-builds/ase-v3/1.0.1653.3402/office365/icon.png",
		ConnectionIcon: "https://connectoricons-prod.azureedge.net/u/laborbol/partial-builds/ase-v3/1.0.1653.3402/office365/icon.png",
	},
	Approvals: {
		Name:        Approvals,
		DisplayName: "Approvals",
	},
	LogicFlows: {
		Name:        LogicFlows,
		DisplayName: "Logic flows",
	},
}

// Lookup returns the connector with the given API name. Both the bare name
// ("shared_teams") and the full API id are accepted.
func Lookup(name string) (Connector, error) {
	name = strings.TrimPrefix(name, APIPrefix)
	if c, ok := catalogue[name]; ok {
		return c, nil
	}
	if c, ok := catalogue["shared_"+name]; ok {
		return c, nil
	}
	return Connector{}, core.ErrUnknownConnector.WithSubject(name)
}

// FromConnectionName resolves the connector a connection name was created
// for, e.g. "shared-flowmanagemen-282bc0cf-2475-4655-8262-a6938ff6b179".
func FromConnectionName(connectionName string) (Connector, error) {
	prefix := connectionSuffix.ReplaceAllString(connectionName, "")
	prefix = strings.ReplaceAll(truncate(prefix, maxPrefixLen), "-", "_")
	for _, c := range catalogue {
		if c.ConnectionPrefix() == prefix {
			return c, nil
		}
	}
	return Connector{}, core.ErrUnknownConnector.WithSubject(connectionName)
}

// All returns every catalogued connector sorted by name.
func All() []Connector {
	res := make([]Connector, 0, len(catalogue))
	for _, c := range catalogue {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
