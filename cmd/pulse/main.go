package main

import "github.com/openstatushq/pulse/internal/cli"

func main() {
	cli.Execute()
}
