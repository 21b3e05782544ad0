package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/memviz/memviz/server/internal/config"
)

const logo = `
  _ __ ___   ___ _ __ _____   _(_)____
 | '_ ' _ \ / _ \ '_ ' _ \ \ / / |_  /
 | | | | | |  __/ | | | | \ V /| |/ /
 |_| |_| |_|\___|_| |_| |_|\_/ |_/___|
`

func printBanner(cfg *config.Config, view string) {
	dir, err := filepath.Abs(cfg.Server.ServeDir)
	if err != nil {
		dir = cfg.Server.ServeDir
	}
	label := color.New(color.FgHiBlack).SprintFunc()

	fmt.Println(color.CyanString(logo))
	fmt.Printf("  %s %s\n", label("url        "), color.GreenString("http://localhost:%d", cfg.Server.Port))
	fmt.Printf("  %s %s\n", label("serving    "), dir)
	fmt.Printf("  %s %s\n", label("data source"), cfg.Server.DataSource)
	fmt.Printf("  %s %s\n", label("team list  "), cfg.Listing())
	fmt.Printf("  %s %s\n", label("teams      "), color.YellowString(view))
	fmt.Println()
	fmt.Println("  GET  /api/config           GET  /api/current-teams")
	fmt.Println("  GET  /api/available-teams  POST /api/teams")
	fmt.Println("  GET  /api/entities         GET  /api/relations")
	fmt.Println("  GET  /api/stats            GET  /health")
	fmt.Println("  GET  /metrics              WS   /ws/teams")
	fmt.Println()
	fmt.Println(label("  Press Ctrl+C to stop"))
}

func printPortInUse(port int) {
	fmt.Fprintln(os.Stderr, color.RedString("Port %d is already in use.", port))
	fmt.Fprintf(os.Stderr, "Stop the other server or pass a different port: memviz %d\n", port+1)
}
