package main

import "github.com/devicelab-dev/checkin-runner/pkg/cli"

func main() {
	cli.Execute()
}
