package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/driver/appium"
)

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the view hierarchy of the app under test",
	Description: `Open an Appium session, dump the current page source and print it as an
indented tree with a suggested selector for every identifiable element.

Examples:
  checkin-runner hierarchy
  checkin-runner hierarchy --all
  checkin-runner hierarchy --raw > screen.xml`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Include layout nodes with no text, description or resource id",
		},
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "Print the page source XML unmodified",
		},
	},
	Action: runHierarchy,
}

func runHierarchy(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	session, cleanup, err := appiumSessionFactory(cfg)(c.Context)
	if err != nil {
		return err
	}
	defer cleanup()

	sp, ok := session.(core.SourceProvider)
	if !ok {
		return fmt.Errorf("session does not support page source")
	}
	src, err := sp.Source()
	if err != nil {
		return fmt.Errorf("get page source: %w", err)
	}
	if c.Bool("raw") {
		fmt.Fprintln(stdout, src)
		return nil
	}

	nodes, err := appium.ParseHierarchy(src)
	if err != nil {
		return err
	}
	printHierarchy(nodes, c.Bool("all"))
	return nil
}

// printHierarchy prints one line per node, indented by depth.
func printHierarchy(nodes []appium.Node, all bool) {
	shown := 0
	for _, n := range nodes {
		sel := n.Selector()
		if sel == "" && !all {
			continue
		}
		shown++

		var b strings.Builder
		b.WriteString(strings.Repeat("  ", n.Depth+1))
		b.WriteString(shortClass(n.Class))
		if n.Text != "" {
			fmt.Fprintf(&b, " %q", n.Text)
		}
		if n.Checkable {
			fmt.Fprintf(&b, " [checked=%t]", n.Checked)
		}
		if !n.Enabled {
			b.WriteString(" [disabled]")
		}
		fmt.Fprintf(&b, " %s(%d,%d %dx%d)%s", color(colorGray), n.Bounds.X, n.Bounds.Y, n.Bounds.Width, n.Bounds.Height, color(colorReset))
		if sel != "" {
			fmt.Fprintf(&b, "  %s%s%s", color(colorCyan), sel, color(colorReset))
		}
		fmt.Fprintln(stdout, b.String())
	}
	fmt.Fprintf(stdout, "\n  %d of %d elements\n", shown, len(nodes))
}

func shortClass(class string) string {
	if i := strings.LastIndex(class, "."); i >= 0 {
		return class[i+1:]
	}
	return class
}
