// Command ferroci runs the Ferroci GUI: a local web server with drag-and-drop
// analysis of cyclic-voltammetry exports, opened in the default browser.
package main

import (
	"embed"
	"io/fs"
	"log/slog"
	"os"

	"ferroci/internal/app"
)

//go:embed all:frontend
var frontendFiles embed.FS

func main() {
	frontendFS, err := fs.Sub(frontendFiles, "frontend")
	if err != nil {
		slog.Warn("frontend embedding failed, serving API only", slog.String("error", err.Error()))
		frontendFS = nil
	}

	application, err := app.NewApplication(frontendFS)
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
