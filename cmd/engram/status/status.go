// Package statuscmder provides the status command for displaying the local
// engram server and configuration state.
package statuscmder

import (
	"fmt"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/pkg/cliui"
	"github.com/engramdev/engram/pkg/config"
	"github.com/engramdev/engram/pkg/start"
)

const statusLongDesc string = `Show the local engram state.

Reads the .engram/ directory (or ~/.engram/) to display whether a server is
running, its listen address and storage provider, and which config file is
in effect.

Examples:
  engram status`

const statusShortDesc string = "Show local server and config state"

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runStatus(configDir)
		},
	}

	return cmd
}

func runStatus(configDir string) error {
	manager, err := start.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("resolving engram dir: %w", err)
	}

	state, err := manager.LoadState()
	if err != nil {
		return fmt.Errorf("loading serve state: %w", err)
	}

	fmt.Println()
	switch {
	case state == nil:
		fmt.Printf("  %s No server running.\n", cliui.DimStyle.Render("●"))

	case !processAlive(state.PID):
		fmt.Printf("  %s Stale serve state (pid %d is gone). Run \"engram serve\" to start a server.\n",
			cliui.FailMark, state.PID)

	default:
		fmt.Printf("  %s Server running\n", cliui.SuccessMark)
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("PID:    "), cliui.ValueStyle.Render(strconv.Itoa(state.PID)))
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Listen: "), cliui.ValueStyle.Render(state.APIURL))
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Storage:"), cliui.ValueStyle.Render(state.StorageProvider))
		if !state.StartedAt.IsZero() {
			fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Up:     "),
				cliui.DimStyle.Render(time.Since(state.StartedAt).Round(time.Second).String()))
		}
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println()
	if target := cfger.GetTarget(); target != "" {
		fmt.Printf("  %s %s\n\n", cliui.KeyStyle.Render("Config file:"), cliui.DimStyle.Render(target))
	} else {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}

	return nil
}

// processAlive reports whether a process with the given pid exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
