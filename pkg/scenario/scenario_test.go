package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/devicelab-dev/checkin-runner/pkg/steps"
)

const checkInYAML = `name: Check in with BluChip
tags: [smoke, "@checkin"]
env:
  PNR: ABC123
steps:
  - Given the app is launched
  - When I enter PNR "${PNR}"
  - And I check the BluChip checkbox
  - Then I should see the response message
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(checkInYAML), "checkin.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if sc.Name != "Check in with BluChip" {
		t.Errorf("Name = %q", sc.Name)
	}
	if sc.Env["PNR"] != "ABC123" {
		t.Errorf("Env = %v", sc.Env)
	}
	want := []Step{
		{Keyword: "Given", Text: "the app is launched", Line: 6},
		{Keyword: "When", Text: `I enter PNR "${PNR}"`, Line: 7},
		{Keyword: "And", Text: "I check the BluChip checkbox", Line: 8},
		{Keyword: "Then", Text: "I should see the response message", Line: 9},
	}
	if !reflect.DeepEqual(sc.Steps, want) {
		t.Errorf("Steps = %+v\nwant %+v", sc.Steps, want)
	}
}

func TestParse_NameFromFile(t *testing.T) {
	sc, err := Parse([]byte("steps:\n  - I restart the app\n"), "dir/restart.yml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if sc.Name != "restart" {
		t.Errorf("Name = %q, want restart", sc.Name)
	}
	if sc.Steps[0].Keyword != "" || sc.Steps[0].Text != "I restart the app" {
		t.Errorf("step = %+v", sc.Steps[0])
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantLine int
	}{
		{"no steps", "name: empty\n", 0},
		{"bad yaml", "steps: [\n", 0},
		{"mapping step", "steps:\n  - tap: x\n", 2},
		{"keyword only", "steps:\n  - Given the app is launched\n  - When\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "x.yaml")
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if tt.wantLine > 0 && pe.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", pe.Line, tt.wantLine)
			}
		})
	}
}

func TestSplitKeyword(t *testing.T) {
	tests := []struct {
		in, kw, text string
	}{
		{"Given the app is launched", "Given", "the app is launched"},
		{"  Then   I see it ", "Then", "I see it"},
		{"* I restart the app", "*", "I restart the app"},
		{"Andrew enters PNR", "", "Andrew enters PNR"},
		{"Butter", "", "Butter"},
		{"When", "When", ""},
	}
	for _, tt := range tests {
		kw, text := SplitKeyword(tt.in)
		if kw != tt.kw || text != tt.text {
			t.Errorf("SplitKeyword(%q) = (%q, %q), want (%q, %q)", tt.in, kw, text, tt.kw, tt.text)
		}
	}
}

func TestShouldInclude(t *testing.T) {
	sc := &Scenario{Tags: []string{"smoke", "@checkin"}}
	tests := []struct {
		name             string
		include, exclude []string
		want             bool
	}{
		{"no filters", nil, nil, true},
		{"include match", []string{"smoke"}, nil, true},
		{"include with at", []string{"@smoke"}, nil, true},
		{"include plain matches at tag", []string{"checkin"}, nil, true},
		{"include miss", []string{"slow"}, nil, false},
		{"exclude match", nil, []string{"checkin"}, false},
		{"include and exclude", []string{"smoke"}, []string{"checkin"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldInclude(sc, tt.include, tt.exclude); got != tt.want {
				t.Errorf("ShouldInclude() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: a\ntags: [smoke]\nsteps:\n  - I restart the app\n")
	writeFile(t, dir, "nested/b.yml", "name: b\nsteps:\n  - I restart the app\n")
	writeFile(t, dir, "broken.yaml", "steps: [\n")
	writeFile(t, dir, "notes.txt", "not a scenario")

	all, err := ParseDirectory(dir, nil, nil)
	if err != nil {
		t.Fatalf("ParseDirectory() error = %v", err)
	}
	if len(all) != 2 || all[0].Name != "a" || all[1].Name != "b" {
		t.Fatalf("scenarios = %+v", all)
	}

	smoke, _ := ParseDirectory(dir, []string{"smoke"}, nil)
	if len(smoke) != 1 || smoke[0].Name != "a" {
		t.Errorf("include filter = %+v", smoke)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "one.yaml", "steps:\n  - I restart the app\n")
	writeFile(t, dir, "suite/two.yaml", "steps:\n  - I restart the app\n")

	got, err := Load([]string{file, filepath.Join(dir, "suite")}, nil, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "one" || got[1].Name != "two" {
		t.Errorf("scenarios = %+v", got)
	}

	bad := writeFile(t, dir, "bad.yaml", "name: x\n")
	if _, err := Load([]string{bad}, nil, nil); err == nil {
		t.Error("expected parse error for explicit file")
	}
	if _, err := Load([]string{filepath.Join(dir, "missing.yaml")}, nil, nil); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestBundledScenarios(t *testing.T) {
	scenarios, err := ParseDirectory(filepath.Join("..", "..", "scenarios"), nil, nil)
	if err != nil {
		t.Fatalf("ParseDirectory() error = %v", err)
	}
	if len(scenarios) == 0 {
		t.Fatal("no bundled scenarios found")
	}
	reg := steps.Default()
	for _, sc := range scenarios {
		for _, st := range sc.Steps {
			if _, _, err := reg.Match(st.Text); err != nil {
				t.Errorf("%s:%d: %v", sc.SourcePath, st.Line, err)
			}
		}
	}
}
