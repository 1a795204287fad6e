package main

import (
	"fmt"
	"os"

	"github.com/vsem-svoim/basecap/cmd/basecap/commands"
)

func main() {
	app := commands.App()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", app.Name, err)
		os.Exit(1)
	}
}
