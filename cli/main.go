package main

import (
	"os"

	"github.com/trebuchet-org/treb-plan/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
