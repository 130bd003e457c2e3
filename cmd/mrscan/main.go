package main

import (
	"os"

	"github.com/dshills/mrscan/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
