// Command go-ioc builds, verifies and serves the application container.
package main

import (
	"os"

	"github.com/km-arc/go-ioc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
