package flow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ntt-security-japan/gopowerautomate/pkg/logger"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error // Underlying build error, if any
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Document is a parsed YAML flow file.
type Document struct {
	SourcePath string // Path to the source file
	Config     Config // Flow configuration (name, trigger, connections)
	Steps      []Step // Root steps in declaration order
}

// Config represents the optional first document of a flow file.
type Config struct {
	Name        string            `yaml:"name"`        // Package display name
	Trigger     TriggerConfig     `yaml:"trigger"`     // Defaults to a manual "Button" trigger
	Connections map[string]string `yaml:"connections"` // Connector name -> existing connection name
}

// TriggerConfig selects and configures the flow's trigger.
type TriggerConfig struct {
	Type      string         `yaml:"type"` // manual | recurrence
	Name      string         `yaml:"name"`
	Frequency string         `yaml:"frequency"`
	Interval  int            `yaml:"interval"`
	Inputs    []TriggerInput `yaml:"inputs"`
}

// TriggerInput declares a manual trigger input.
type TriggerInput struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// ParseFile parses a single YAML flow file.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses YAML flow content: an optional config document followed by
// a steps document.
func Parse(data []byte, sourcePath string) (*Document, error) {
	var docs []*yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid yaml: %v", err)}
		}
		docs = append(docs, &n)
	}

	doc := &Document{SourcePath: sourcePath}
	switch len(docs) {
	case 0:
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty flow file"}
	case 1:
		if err := parseSteps(content(docs[0]), doc); err != nil {
			return nil, err
		}
	case 2:
		if err := parseConfig(content(docs[0]), doc); err != nil {
			return nil, err
		}
		if err := parseSteps(content(docs[1]), doc); err != nil {
			return nil, err
		}
	default:
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    docs[2].Line,
			Message: "expected at most a config and a steps document",
		}
	}

	logger.Debug("parsed %s: %d root steps", sourcePath, len(doc.Steps))
	return doc, nil
}

// content unwraps a document node.
func content(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}
	return n
}

func parseConfig(node *yaml.Node, doc *Document) error {
	if err := node.Decode(&doc.Config); err != nil {
		return &ParseError{
			Path:    doc.SourcePath,
			Line:    node.Line,
			Message: fmt.Sprintf("invalid config: %v", err),
		}
	}
	return nil
}

func parseSteps(node *yaml.Node, doc *Document) error {
	steps, err := parseStepList(node, doc.SourcePath)
	if err != nil {
		return err
	}
	doc.Steps = steps
	return nil
}

func parseStepList(node *yaml.Node, sourcePath string) ([]Step, error) {
	if node == nil || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "invalid steps: expected a list",
		}
	}
	var steps []Step
	for _, n := range node.Content {
		step, err := parseStep(n, sourcePath)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Handle scalar nodes like "- listConnections" (no colon, no params)
	if node.Kind == yaml.ScalarNode {
		stepType := node.Value
		if !isStepType(stepType) {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown step type: %s", stepType),
			}
		}
		emptyNode := &yaml.Node{Kind: yaml.MappingNode, Line: node.Line}
		return decodeStep(StepType(stepType), emptyNode, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping or command name",
		}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		msg := "unknown step type"
		if len(node.Content) > 0 {
			msg = fmt.Sprintf("unknown step type: %s", node.Content[0].Value)
		}
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: msg,
		}
	}

	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepInitVariable, StepSetVariable, StepAppendToStringVariable,
		StepIncrementVariable, StepDecrementVariable,
		StepIf, StepForeach, StepScope, StepUntil,
		StepSelect, StepTable, StepCompose, StepFilter, StepJoin,
		StepAddToTime, StepWait, StepHTTP, StepOperation,
		StepListUserEnvironments, StepListConnections, StepDeleteFlow,
		StepCreateFlow, StepStartAndWaitForAnApproval, StepWaitForAnApproval:
		return true
	}
	return false
}

// decodeInto decodes a step body. A scalar body is taken as the step name.
func decodeInto(s Step, stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	if valueNode.Kind == yaml.ScalarNode {
		s.Base().Name = valueNode.Value
	} else if err := valueNode.Decode(s); err != nil {
		return nil, wrapParseError(sourcePath, valueNode.Line, err)
	}
	b := s.Base()
	b.StepType = stepType
	b.Line = valueNode.Line
	return s, nil
}

//nolint:gocyclo
func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	switch stepType {
	case StepInitVariable:
		return decodeInto(&InitVariableStep{}, stepType, valueNode, sourcePath)

	case StepSetVariable, StepAppendToStringVariable, StepIncrementVariable, StepDecrementVariable:
		return decodeInto(&VariableStep{}, stepType, valueNode, sourcePath)

	case StepIf:
		return parseIfStep(valueNode, sourcePath)

	case StepForeach:
		s := &ForeachStep{}
		steps, err := parseNested(s, stepType, valueNode, sourcePath, "actions")
		if err != nil {
			return nil, err
		}
		s.Steps = steps
		return s, nil

	case StepScope:
		s := &ScopeStep{}
		steps, err := parseNested(s, stepType, valueNode, sourcePath, "actions")
		if err != nil {
			return nil, err
		}
		s.Steps = steps
		sources := 0
		for _, set := range []bool{s.Raw != "", s.RawFile != "", len(s.Steps) > 0} {
			if set {
				sources++
			}
		}
		if sources > 1 {
			return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: "scope takes one of raw, rawFile or actions"}
		}
		return s, nil

	case StepUntil:
		s := &UntilStep{}
		steps, err := parseNested(s, stepType, valueNode, sourcePath, "actions")
		if err != nil {
			return nil, err
		}
		s.Steps = steps
		return s, nil

	case StepSelect:
		return decodeInto(&SelectStep{}, stepType, valueNode, sourcePath)

	case StepTable:
		return decodeInto(&TableStep{}, stepType, valueNode, sourcePath)

	case StepCompose:
		return decodeInto(&ComposeStep{}, stepType, valueNode, sourcePath)

	case StepFilter:
		return decodeInto(&FilterStep{}, stepType, valueNode, sourcePath)

	case StepJoin:
		return decodeInto(&JoinStep{}, stepType, valueNode, sourcePath)

	case StepAddToTime:
		return decodeInto(&AddToTimeStep{}, stepType, valueNode, sourcePath)

	case StepWait:
		return decodeInto(&WaitStep{}, stepType, valueNode, sourcePath)

	case StepHTTP:
		return decodeInto(&HTTPStep{}, stepType, valueNode, sourcePath)

	case StepOperation, StepListUserEnvironments, StepListConnections, StepDeleteFlow:
		return decodeInto(&OperationStep{}, stepType, valueNode, sourcePath)

	case StepCreateFlow:
		return decodeInto(&CreateFlowStep{}, stepType, valueNode, sourcePath)

	case StepStartAndWaitForAnApproval:
		return decodeInto(&ApprovalStep{}, stepType, valueNode, sourcePath)

	case StepWaitForAnApproval:
		return decodeInto(&WaitForApprovalStep{}, stepType, valueNode, sourcePath)
	}

	return nil, &ParseError{
		Path:    sourcePath,
		Line:    valueNode.Line,
		Message: fmt.Sprintf("unknown step type: %s", stepType),
	}
}

// parseNested decodes a compound step body and its child list stored under
// key.
func parseNested(s Step, stepType StepType, valueNode *yaml.Node, sourcePath, key string) ([]Step, error) {
	if _, err := decodeInto(s, stepType, valueNode, sourcePath); err != nil {
		return nil, err
	}
	return parseStepList(mappingValue(valueNode, key), sourcePath)
}

// parseIfStep handles if with nested then and else branches.
func parseIfStep(valueNode *yaml.Node, sourcePath string) (Step, error) {
	s := &IfStep{}
	if _, err := decodeInto(s, StepIf, valueNode, sourcePath); err != nil {
		return nil, err
	}
	var err error
	if s.Then, err = parseStepList(mappingValue(valueNode, "then"), sourcePath); err != nil {
		return nil, err
	}
	if s.Else, err = parseStepList(mappingValue(valueNode, "else"), sourcePath); err != nil {
		return nil, err
	}
	return s, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// ResolvePath resolves a path referenced from the flow file at sourcePath.
func ResolvePath(sourcePath, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(sourcePath), path)
}

// ParseDirectory parses all YAML flow files in a directory tree. Files that
// fail to parse are logged and skipped.
func ParseDirectory(dir string) ([]*Document, error) {
	var docs []*Document

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		doc, parseErr := ParseFile(path)
		if parseErr != nil {
			logger.Warn("skipping %s: %v", path, parseErr)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})

	return docs, err
}
