// Command koach serves the account API.
package main

import (
	"log/slog"
	"os"

	"koach/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		// The default logger is the configured one once config has loaded.
		slog.Error("koach.exit", "err", err)
		os.Exit(1)
	}
}
