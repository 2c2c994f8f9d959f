// Package archive packages a flow into the legacy Power Automate import zip.
//
// Zip layout:
//
//	manifest.json
//	Microsoft.Flow/flows/manifest.json
//	Microsoft.Flow/flows/<flow-resource-id>/definition.json
//	Microsoft.Flow/flows/<flow-resource-id>/apisMap.json
//	Microsoft.Flow/flows/<flow-resource-id>/connectionsMap.json
package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ntt-security-japan/gopowerautomate/pkg/connector"
	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
	"github.com/ntt-security-japan/gopowerautomate/pkg/flow"
	"github.com/ntt-security-japan/gopowerautomate/pkg/logger"
)

// Resource types.
const (
	TypeFlow       = "Microsoft.Flow/flows"
	TypeAPI        = "Microsoft.PowerApps/apis"
	TypeConnection = "Microsoft.PowerApps/apis/connections"
)

const (
	schemaVersion = "1.0"
	flowsDir      = "Microsoft.Flow/flows"
	logicFlowsAPI = connector.APIPrefix + connector.LogicFlows
)

// Details is the display block of a resource.
type Details struct {
	DisplayName string `json:"displayName"`
	IconURI     string `json:"iconUri,omitempty"`
}

// Resource is one entry of the package manifest.
type Resource struct {
	ID                    string   `json:"id,omitempty"`
	Name                  string   `json:"name,omitempty"`
	Type                  string   `json:"type"`
	SuggestedCreationType string   `json:"suggestedCreationType"`
	CreationType          string   `json:"creationType,omitempty"`
	Details               Details  `json:"details"`
	ConfigurableBy        string   `json:"configurableBy"`
	Hierarchy             string   `json:"hierarchy"`
	DependsOn             []string `json:"dependsOn"`

	key string
}

func (r *Resource) dependOn(others ...*Resource) {
	seen := map[string]bool{}
	for _, d := range r.DependsOn {
		seen[d] = true
	}
	for _, o := range others {
		if !seen[o.key] {
			seen[o.key] = true
			r.DependsOn = append(r.DependsOn, o.key)
		}
	}
	sort.Strings(r.DependsOn)
}

// ConnectionReference names an existing connection the imported flow binds
// to.
type ConnectionReference struct {
	ConnectionName string `json:"connectionName"`
	Source         string `json:"source"`
	ID             string `json:"id"`
	Tier           string `json:"tier"`
}

// binding is one connection reference: the key actions name in
// host.connectionName, its connector and its connection resource.
type binding struct {
	key        string
	connector  string
	connection *Resource
}

// Package is a flow plus the connector resources it needs at import time.
type Package struct {
	displayName string
	flow        *flow.Flow
	resource    *Resource
	apis        map[string]*Resource // by connector name
	apiOrder    []string
	bindings    []*binding
	refs        map[string]ConnectionReference

	now   func() time.Time
	newID func() string
	digit func() int
}

// New creates a package for f shown as displayName on import.
func New(displayName string, f *flow.Flow) (*Package, error) {
	if displayName == "" {
		return nil, core.ErrEmptyName.WithMessage("package display name must not be empty")
	}
	if strings.ContainsAny(displayName, `/\`) || displayName == "." || displayName == ".." {
		return nil, core.ErrInvalidParameter.WithSubject(displayName).
			WithMessage("display name must not contain path separators")
	}
	if f == nil {
		return nil, core.ErrMissingParameter.WithSubject(displayName).WithMessage("missing flow")
	}
	p := &Package{
		displayName: displayName,
		flow:        f,
		apis:        map[string]*Resource{},
		refs:        map[string]ConnectionReference{},
		now:         time.Now,
		newID:       uuid.NewString,
		digit:       func() int { return rand.Intn(10) }, //#nosec G404 -- timestamp padding only
	}
	p.resource = &Resource{
		Type:                  TypeFlow,
		SuggestedCreationType: "New",
		CreationType:          "Existing, New, Update",
		Details:               Details{DisplayName: displayName},
		ConfigurableBy:        "User",
		Hierarchy:             "Root",
		DependsOn:             []string{},
		key:                   p.newID(),
	}
	return p, nil
}

// DisplayName returns the name shown on import.
func (p *Package) DisplayName() string { return p.displayName }

// UseConnector declares the API and connection resources of a connector
// under its default connection reference, the connector name. A non-empty
// connectionName binds the imported flow to that existing connection.
// Declaring a connector again only updates its connection name.
func (p *Package) UseConnector(name, connectionName string) error {
	return p.UseReference("", name, connectionName)
}

// UseReference declares the connection reference key for connector name.
// Actions address it through host.connectionName; an empty key is the
// connector name. The API resource is shared by every reference of the same
// connector.
func (p *Package) UseReference(key, name, connectionName string) error {
	c, err := connector.Lookup(name)
	if err != nil {
		return err
	}
	if key == "" {
		key = c.Name
	}
	for _, b := range p.bindings {
		if b.key != key {
			continue
		}
		if b.connector != c.Name {
			return core.ErrInvalidParameter.WithSubject(key).
				WithMessagef("connection reference already declared for %s", b.connector)
		}
		p.setReference(key, c, connectionName)
		return nil
	}
	p.setReference(key, c, connectionName)

	api, ok := p.apis[c.Name]
	if !ok {
		api = &Resource{
			ID:                    c.APIID(),
			Name:                  c.Name,
			Type:                  TypeAPI,
			SuggestedCreationType: "Existing",
			Details:               Details{DisplayName: c.DisplayName, IconURI: c.APIIconURI},
			ConfigurableBy:        "System",
			Hierarchy:             "Child",
			DependsOn:             []string{},
			key:                   p.newID(),
		}
		p.apis[c.Name] = api
		p.apiOrder = append(p.apiOrder, c.Name)
	}
	conn := &Resource{
		Type:                  TypeConnection,
		SuggestedCreationType: "Existing",
		CreationType:          "Existing",
		Details:               Details{DisplayName: c.ConnectionLabel(), IconURI: c.ConnectionIcon},
		ConfigurableBy:        "User",
		Hierarchy:             "Child",
		DependsOn:             []string{},
		key:                   p.newID(),
	}
	conn.dependOn(api)
	p.bindings = append(p.bindings, &binding{key: key, connector: c.Name, connection: conn})
	logger.Debug("package %s: using connector %s as %s", p.displayName, c.Name, key)
	return nil
}

func (p *Package) setReference(key string, c connector.Connector, connectionName string) {
	if connectionName == "" {
		return
	}
	p.refs[key] = ConnectionReference{
		ConnectionName: connectionName,
		Source:         "Invoker",
		ID:             c.APIID(),
		Tier:           "NotSpecified",
	}
}

// UseFlowConnectors declares every connection reference the flow's
// operations use. Connection names are looked up in names by reference key,
// then by connector name.
func (p *Package) UseFlowConnectors(names map[string]string) error {
	refs, err := p.flow.ConnectionRefs()
	if err != nil {
		return err
	}
	for _, r := range refs {
		conn, ok := names[r.Key]
		if !ok {
			conn = names[r.Connector]
		}
		if err := p.UseReference(r.Key, r.Connector, conn); err != nil {
			return err
		}
	}
	return nil
}

// Connectors returns the declared connector names in declaration order.
func (p *Package) Connectors() []string {
	return append([]string(nil), p.apiOrder...)
}

// References returns the declared connection reference keys in declaration
// order.
func (p *Package) References() []string {
	res := make([]string, len(p.bindings))
	for i, b := range p.bindings {
		res[i] = b.key
	}
	return res
}

// Timestamp formats t as the manifest's createdTime: microsecond UTC time
// padded with one extra digit.
func Timestamp(t time.Time, digit int) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000") + fmt.Sprintf("%d", digit%10) + "Z"
}

// ManifestDetails is the details block of the package manifest.
type ManifestDetails struct {
	DisplayName        string `json:"displayName"`
	Description        string `json:"description"`
	CreatedTime        string `json:"createdTime"`
	PackageTelemetryID string `json:"packageTelemetryId"`
	Creator            string `json:"creator"`
	SourceEnvironment  string `json:"sourceEnvironment"`
}

// Manifest is the root manifest.json.
type Manifest struct {
	Schema    string               `json:"schema"`
	Details   ManifestDetails      `json:"details"`
	Resources map[string]*Resource `json:"resources"`
}

// Manifest returns the root manifest. The flow resource depends on every
// declared API and connection.
func (p *Package) Manifest() *Manifest {
	res := map[string]*Resource{p.resource.key: p.resource}
	for _, name := range p.apiOrder {
		api := p.apis[name]
		p.resource.dependOn(api)
		res[api.key] = api
	}
	for _, b := range p.bindings {
		p.resource.dependOn(b.connection)
		res[b.connection.key] = b.connection
	}
	return &Manifest{
		Schema: schemaVersion,
		Details: ManifestDetails{
			DisplayName:        p.displayName,
			CreatedTime:        Timestamp(p.now(), p.digit()),
			PackageTelemetryID: p.newID(),
			Creator:            "N/A",
		},
		Resources: res,
	}
}

// FlowAssets lists the flow resources of the package.
type FlowAssets struct {
	AssetPaths []string `json:"assetPaths"`
}

// FlowsManifest is Microsoft.Flow/flows/manifest.json.
type FlowsManifest struct {
	PackageSchemaVersion string     `json:"packageSchemaVersion"`
	FlowAssets           FlowAssets `json:"flowAssets"`
}

// FlowsManifest returns the flows manifest.
func (p *Package) FlowsManifest() *FlowsManifest {
	return &FlowsManifest{
		PackageSchemaVersion: schemaVersion,
		FlowAssets:           FlowAssets{AssetPaths: []string{p.resource.key}},
	}
}

// FlowProperties is the properties block of definition.json.
type FlowProperties struct {
	APIID                      string                         `json:"apiId"`
	DisplayName                string                         `json:"displayName"`
	Definition                 *flow.Definition               `json:"definition"`
	ConnectionReferences       map[string]ConnectionReference `json:"connectionReferences"`
	FlowFailureAlertSubscribed bool                           `json:"flowFailureAlertSubscribed"`
	IsManaged                  bool                           `json:"isManaged"`
}

// FlowDefinition is definition.json.
type FlowDefinition struct {
	Name       string         `json:"name"`
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties FlowProperties `json:"properties"`
}

// Definition renders the flow and wraps it in definition.json.
func (p *Package) Definition() (*FlowDefinition, error) {
	def, err := p.flow.Definition()
	if err != nil {
		return nil, err
	}
	refs := make(map[string]ConnectionReference, len(p.refs))
	for k, v := range p.refs {
		refs[k] = v
	}
	name := p.newID()
	return &FlowDefinition{
		Name: name,
		ID:   "/providers/" + TypeFlow + "/" + name,
		Type: TypeFlow,
		Properties: FlowProperties{
			APIID:                logicFlowsAPI,
			DisplayName:          p.displayName,
			Definition:           def,
			ConnectionReferences: refs,
		},
	}, nil
}

// APIsMap maps each connection reference to its API resource id.
func (p *Package) APIsMap() map[string]string {
	m := make(map[string]string, len(p.bindings))
	for _, b := range p.bindings {
		m[b.key] = p.apis[b.connector].key
	}
	return m
}

// ConnectionsMap maps each connection reference to its connection resource
// id.
func (p *Package) ConnectionsMap() map[string]string {
	m := make(map[string]string, len(p.bindings))
	for _, b := range p.bindings {
		m[b.key] = b.connection.key
	}
	return m
}

type entry struct {
	name    string
	content any
}

// files renders every archive member, keyed by its path inside the zip, in
// write order.
func (p *Package) files() ([]entry, error) {
	def, err := p.Definition()
	if err != nil {
		return nil, err
	}
	dir := flowsDir + "/" + p.resource.key
	return []entry{
		{"manifest.json", p.Manifest()},
		{flowsDir + "/manifest.json", p.FlowsManifest()},
		{dir + "/definition.json", def},
		{dir + "/apisMap.json", p.APIsMap()},
		{dir + "/connectionsMap.json", p.ConnectionsMap()},
	}, nil
}

// ExportZipfile writes <displayName>.zip into outputDir and returns its
// absolute path. The archive is written to a temporary file in outputDir and
// renamed into place, so a failed export leaves no partial archive.
func (p *Package) ExportZipfile(outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = "."
	}
	files, err := p.files()
	if err != nil {
		return "", err
	}

	target, err := filepath.Abs(filepath.Join(outputDir, p.displayName+".zip"))
	if err != nil {
		return "", core.ErrWriteArchive.WithSubject(outputDir).WithCause(err)
	}

	tmp, err := os.CreateTemp(outputDir, ".paflow-*.zip")
	if err != nil {
		return "", core.ErrWriteArchive.WithSubject(target).WithCause(err).
			WithMessage("failed to create temp file")
	}
	tmpPath := tmp.Name()

	if err := writeZip(tmp, files); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", core.ErrWriteArchive.WithSubject(target).WithCause(err)
	}
	if err := tmp.Chmod(0o644); err != nil { //#nosec G302 -- archives are shared for import
		tmp.Close()
		os.Remove(tmpPath)
		return "", core.ErrWriteArchive.WithSubject(target).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", core.ErrWriteArchive.WithSubject(target).WithCause(err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", core.ErrWriteArchive.WithSubject(target).WithCause(err).
			WithMessage("failed to move archive into place")
	}

	logger.Info("package %s written to %s", p.displayName, target)
	return target, nil
}

func writeZip(f *os.File, files []entry) error {
	zw := zip.NewWriter(f)
	for _, e := range files {
		data, err := json.Marshal(e.content)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.name, err)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", e.name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}
	return zw.Close()
}
