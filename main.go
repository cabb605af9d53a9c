package main

import (
	"context"
	"embed"
	"fmt"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"stereoguard/internal/bootstrap"
	"stereoguard/internal/platform/sysproc"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	pid, helper, err := sysproc.ParseHelperArgs(os.Args[1:])
	if helper {
		os.Exit(runHelper(pid, err))
	}

	app := NewApp()
	err = wails.Run(&options.App{
		Title:     "stereoguard",
		Width:     760,
		Height:    560,
		MinWidth:  480,
		MinHeight: 360,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runHelper is the elevated termination entry point. Cancelling the
// confirmation exits 0.
func runHelper(pid uint32, argErr error) int {
	if argErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", argErr)
		return 1
	}
	helper, err := bootstrap.BuildHelper()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	if err := helper.Run(context.Background(), pid); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
