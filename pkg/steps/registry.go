// Package steps maps plain-language scenario steps to engine operations.
package steps

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
)

// Handler executes one matched step. args holds the captured parameters.
type Handler func(ctx context.Context, sc *Context, args []string) error

// Definition is a registered step pattern.
type Definition struct {
	Pattern     string
	Description string

	re      *regexp.Regexp
	handler Handler
}

// Registry holds step definitions.
type Registry struct {
	defs []*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var placeholderRe = regexp.MustCompile(`\{(string|int)\}`)

// compilePattern turns a pattern with {string} and {int} placeholders into
// an anchored regular expression. Literal text is matched verbatim.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		switch pattern[loc[2]:loc[3]] {
		case "string":
			b.WriteString(`"([^"]*)"`)
		case "int":
			b.WriteString(`(-?\d+)`)
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Register adds a step definition.
func (r *Registry) Register(pattern, description string, h Handler) error {
	if h == nil {
		return core.ErrMissingRequired.WithMessagef("step %q has no handler", pattern)
	}
	for _, d := range r.defs {
		if d.Pattern == pattern {
			return core.ErrInvalidConfig.WithMessagef("step %q registered twice", pattern)
		}
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return core.ErrInvalidConfig.WithMessagef("step %q", pattern).WithCause(err)
	}
	r.defs = append(r.defs, &Definition{Pattern: pattern, Description: description, re: re, handler: h})
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(pattern, description string, h Handler) {
	if err := r.Register(pattern, description, h); err != nil {
		panic(err)
	}
}

// Match finds the single definition matching text.
func (r *Registry) Match(text string) (*Definition, []string, error) {
	text = strings.TrimSpace(text)
	var (
		found *Definition
		args  []string
	)
	for _, d := range r.defs {
		m := d.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if found != nil {
			return nil, nil, core.ErrInvalidConfig.WithMessagef("step %q is ambiguous: %q and %q", text, found.Pattern, d.Pattern)
		}
		found, args = d, m[1:]
	}
	if found == nil {
		return nil, nil, core.ErrUndefinedStep.WithMessagef("no step definition matches %q", text)
	}
	return found, args, nil
}

// Run matches text and executes its handler.
func (r *Registry) Run(ctx context.Context, sc *Context, text string) (*Definition, error) {
	def, args, err := r.Match(text)
	if err != nil {
		return nil, err
	}
	for i, a := range args {
		args[i] = sc.Expand(a)
	}
	if err := def.handler(ctx, sc, args); err != nil {
		return def, err
	}
	return def, nil
}

// Definitions returns the registered definitions sorted by pattern.
func (r *Registry) Definitions() []*Definition {
	out := make([]*Definition, len(r.defs))
	copy(out, r.defs)
	sort.Slice(out, func(i, j int) bool { return out[i].Pattern < out[j].Pattern })
	return out
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s - %s", d.Pattern, d.Description)
}
