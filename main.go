package main

import (
	"fmt"
	"os"

	"github.com/assafrot/api-keys-app/src/cli"
	"github.com/assafrot/api-keys-app/src/handlers"
)

func main() {
	if err := cli.Execute(handlers.Version); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
