package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/checkin-runner/pkg/steps"
)

var stepsCommand = &cli.Command{
	Name:  "steps",
	Usage: "List the step phrases scenarios can use",
	Description: `Print every built-in step pattern. {string} matches a double-quoted
argument and {int} an integer; ${NAME} inside arguments is replaced from
the scenario env, -e flags, config env and the process environment.`,
	Action: listSteps,
}

func listSteps(c *cli.Context) error {
	defs := steps.Default().Definitions()
	fmt.Fprintf(stdout, "\n  %s%d step definitions%s\n\n", color(colorBold), len(defs), color(colorReset))
	for _, d := range defs {
		fmt.Fprintf(stdout, "  %s%s%s\n", color(colorCyan), d.Pattern, color(colorReset))
		if d.Description != "" {
			fmt.Fprintf(stdout, "      %s%s%s\n", color(colorGray), d.Description, color(colorReset))
		}
	}
	fmt.Fprintln(stdout)
	return nil
}
