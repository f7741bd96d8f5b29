// Package scenario parses scenario files and runs them step by step against
// a fresh automation session per file.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/checkin-runner/pkg/logger"
)

// Keywords accepted at the start of a step line.
var Keywords = []string{"Given", "When", "Then", "And", "But", "*"}

// Step is one line of a scenario.
type Step struct {
	Keyword string
	Text    string
	Line    int
}

func (s Step) String() string {
	if s.Keyword == "" {
		return s.Text
	}
	return s.Keyword + " " + s.Text
}

// Scenario is a named sequence of steps loaded from one file.
type Scenario struct {
	Name       string
	Tags       []string
	Env        map[string]string
	Steps      []Step
	SourcePath string
}

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

type document struct {
	Name  string            `yaml:"name"`
	Tags  []string          `yaml:"tags"`
	Env   map[string]string `yaml:"env"`
	Steps []yaml.Node       `yaml:"steps"`
}

// ParseFile parses a single scenario YAML file.
func ParseFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- scenario paths come from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses scenario YAML. path is used for naming and error locations.
func Parse(data []byte, path string) (*Scenario, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Message: err.Error()}
	}
	if len(doc.Steps) == 0 {
		return nil, &ParseError{Path: path, Message: "scenario has no steps"}
	}

	sc := &Scenario{
		Name:       strings.TrimSpace(doc.Name),
		Tags:       doc.Tags,
		Env:        doc.Env,
		SourcePath: path,
	}
	if sc.Name == "" {
		base := filepath.Base(path)
		sc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	for i := range doc.Steps {
		node := &doc.Steps[i]
		if node.Kind != yaml.ScalarNode {
			return nil, &ParseError{Path: path, Line: node.Line, Message: "step must be a string"}
		}
		keyword, text := SplitKeyword(node.Value)
		if text == "" {
			return nil, &ParseError{Path: path, Line: node.Line, Message: "empty step"}
		}
		sc.Steps = append(sc.Steps, Step{Keyword: keyword, Text: text, Line: node.Line})
	}
	return sc, nil
}

// SplitKeyword separates a leading keyword from the step text.
func SplitKeyword(line string) (keyword, text string) {
	line = strings.TrimSpace(line)
	for _, kw := range Keywords {
		if rest, ok := strings.CutPrefix(line, kw); ok {
			if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
				return kw, strings.TrimSpace(rest)
			}
		}
	}
	return "", line
}

// ParseDirectory parses all YAML files under dir. Files that fail to parse
// are skipped with a warning.
func ParseDirectory(dir string, includeTags, excludeTags []string) ([]*Scenario, error) {
	var scenarios []*Scenario

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isScenarioFile(path) {
			return nil
		}

		sc, parseErr := ParseFile(path)
		if parseErr != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", path, parseErr)
			logger.Warn("skipping %s: %v", path, parseErr)
			return nil
		}

		if ShouldInclude(sc, includeTags, excludeTags) {
			scenarios = append(scenarios, sc)
		}
		return nil
	})

	return scenarios, err
}

// Load resolves each path as a scenario file or a directory of them.
// Unlike ParseDirectory, an explicitly named file that fails to parse is an error.
func Load(paths []string, includeTags, excludeTags []string) ([]*Scenario, error) {
	var scenarios []*Scenario
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scenario path: %w", err)
		}
		if info.IsDir() {
			found, err := ParseDirectory(p, includeTags, excludeTags)
			if err != nil {
				return nil, err
			}
			scenarios = append(scenarios, found...)
			continue
		}
		sc, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		if ShouldInclude(sc, includeTags, excludeTags) {
			scenarios = append(scenarios, sc)
		}
	}
	return scenarios, nil
}

func isScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ShouldInclude checks if a scenario matches tag filters.
func ShouldInclude(sc *Scenario, includeTags, excludeTags []string) bool {
	if len(includeTags) > 0 && !hasAny(sc.Tags, includeTags) {
		return false
	}
	return !hasAny(sc.Tags, excludeTags)
}

func hasAny(tags, want []string) bool {
	for _, tag := range tags {
		tag = strings.TrimPrefix(tag, "@")
		for _, w := range want {
			if tag == strings.TrimPrefix(w, "@") {
				return true
			}
		}
	}
	return false
}
