package main

import (
	"os"
)

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := newRootCommand(app).Execute(); err != nil {
		app.logger.Error(err)
		os.Exit(1)
	}
}
