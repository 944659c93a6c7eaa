package main

import "github.com/devicelab-dev/safari-runner/pkg/cli"

func main() {
	cli.Execute()
}
