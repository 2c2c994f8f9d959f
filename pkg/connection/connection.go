// Package connection manages the connection references a CreateFlow action
// hands to the flow it creates.
package connection

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ntt-security-japan/gopowerautomate/pkg/connector"
	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
	"github.com/ntt-security-japan/gopowerautomate/pkg/logger"
)

// Reference points at an existing connection.
type Reference struct {
	ConnectionName string `json:"connectionName"`
	ID             string `json:"id"`
}

// Connections is an ordered list of connection references.
type Connections struct {
	refs []Reference
}

// New returns an empty list.
func New() *Connections {
	return &Connections{}
}

// Add appends a reference. When id is empty the API id is derived from the
// connection name, e.g. "shared-flowmanagemen-282bc0cf-...".
func (c *Connections) Add(connectionName, id string) error {
	if connectionName == "" {
		return core.ErrMissingParameter.WithMessage("missing connection name")
	}
	if id == "" {
		conn, err := connector.FromConnectionName(connectionName)
		if err != nil {
			return fmt.Errorf("connection %s: set the api id explicitly: %w", connectionName, err)
		}
		id = conn.APIID()
	}
	c.refs = append(c.refs, Reference{ConnectionName: connectionName, ID: id})
	return nil
}

// Len returns the number of references.
func (c *Connections) Len() int { return len(c.refs) }

// Export returns a copy of the references.
func (c *Connections) Export() []Reference {
	return append([]Reference{}, c.refs...)
}

// FromJSON replaces the list with the usable connections of a
// ListConnections response: those connected and created by the same user
// as the flow-management connection. It returns the number kept.
func (c *Connections) FromJSON(data []byte) (int, error) {
	if !gjson.ValidBytes(data) {
		return 0, core.ErrReadInput.WithMessage("invalid connection listing JSON")
	}
	c.refs = nil

	value := gjson.GetBytes(data, "value")
	if !value.IsArray() {
		return 0, nil
	}

	var userID string
	value.ForEach(func(_, item gjson.Result) bool {
		if strings.Contains(item.Get("properties.apiId").String(), connector.FlowManagement) {
			userID = item.Get("properties.createdBy.id").String()
			return false
		}
		return true
	})

	value.ForEach(func(_, item gjson.Result) bool {
		props := item.Get("properties")
		status := props.Get("statuses.0.status").String()
		if status != "Connected" || props.Get("createdBy.id").String() != userID {
			return true
		}
		c.refs = append(c.refs, Reference{
			ConnectionName: item.Get("name").String(),
			ID:             props.Get("apiId").String(),
		})
		return true
	})

	logger.Debug("loaded %d connections for user %s", len(c.refs), userID)
	return len(c.refs), nil
}

// LoadFile reads a ListConnections response from disk.
func (c *Connections) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided connection listing
	if err != nil {
		return 0, core.ErrReadInput.WithSubject(path).WithCause(err)
	}
	return c.FromJSON(data)
}
