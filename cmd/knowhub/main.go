package main

import (
	"os"

	"github.com/knowhub-ai/knowhub/internal/adapters/driving/cli"
)

func main() {
	os.Exit(cli.Execute())
}
