// This program renders the pixel board of a running service in the terminal.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/pixelboard/app/tooling/viewer/tui"
	tea "github.com/charmbracelet/bubbletea"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	if err := run(); err != nil {
		fmt.Println("ERROR", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := struct {
		conf.Version
		API string `conf:"default:http://localhost:8080"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "VIEWER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	p := tea.NewProgram(tui.New(tui.NewClient(cfg.API)), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}

	return nil
}
