// Package initcmder provides the init command for initializing a local
// .engram directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/pkg/cliui"
	"github.com/engramdev/engram/pkg/config"
)

const (
	dirName = ".engram"
)

const initLongDesc string = `Initialize a new .engram/ directory in the current working directory.

Creates a local .engram/ directory that takes precedence over the default
~/.engram/ directory for configuration, storage, and session state. This is
useful for maintaining separate memory state per project or directory.

With --preset, also writes a config.toml preconfigured for a provider:
  ollama    Local Ollama for embeddings and chat (default settings)
  openai    OpenAI embeddings and chat completion

Examples:
  engram init
  engram init --preset openai`

const initShortDesc string = "Initialize a local .engram/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(preset)
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", "",
		fmt.Sprintf("Write a config.toml for a provider preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	alreadyExists := err == nil && info.IsDir()

	if !alreadyExists {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .engram directory: %w", err)
		}
	}

	configPath := filepath.Join(dir, "config.toml")

	switch {
	case preset != "":
		cfg, err := config.PresetConfig(preset)
		if err != nil {
			return err
		}

		if err := writeConfig(dir, cfg); err != nil {
			return err
		}

		fmt.Printf("  %s Wrote %s preset to %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(strings.ToLower(preset)),
			cliui.DimStyle.Render(configPath),
		)

	default:
		// Plain init seeds a default config.toml, but never clobbers one
		// that already exists.
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := writeConfig(dir, config.NewDefaultConfig()); err != nil {
				return err
			}
		}
	}

	if alreadyExists {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	fmt.Printf("Initialized .engram directory: %s\n", dir)
	return nil
}

func writeConfig(dir string, cfg *config.Config) error {
	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("preparing config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
