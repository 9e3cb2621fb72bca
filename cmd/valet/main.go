package main

import (
	"github.com/custodia-labs/valet-cli/internal/adapters/driving/cli"
)

func main() {
	cli.Execute()
}
