package main

import (
	"os"

	"github.com/baaaaaaaka/claude_code_reader/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
