package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/wildlifetagger/settings"
	"github.com/lepinkainen/wildlifetagger/types"
	"github.com/lepinkainen/wildlifetagger/ui"
)

type SettingsCmd struct {
	Init SettingsInitCmd `cmd:"" help:"Write a settings file with the default values"`
	Show SettingsShowCmd `cmd:"" help:"Print the effective settings"`
}

type SettingsInitCmd struct {
	Force bool `help:"Overwrite an existing settings file"`
}

func (cmd *SettingsInitCmd) Run(appCtx *types.AppContext) error {
	path := settingsPath(appCtx)
	if _, err := os.Stat(path); err == nil && !cmd.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	if err := settings.Default().Save(path); err != nil {
		return err
	}
	fmt.Println(ui.SuccessStyle.Render(fmt.Sprintf("✅ Wrote default settings to %s", path)))
	return nil
}

type SettingsShowCmd struct{}

func (cmd *SettingsShowCmd) Run(appCtx *types.AppContext) error {
	s, err := loadSettings(appCtx)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	fmt.Println(ui.InfoStyle.Render(fmt.Sprintf("# %s", settingsPath(appCtx))))
	fmt.Print(string(data))
	return nil
}

func settingsPath(appCtx *types.AppContext) string {
	if appCtx != nil && appCtx.SettingsPath != "" {
		return appCtx.SettingsPath
	}
	return settings.DefaultPath
}

// loadSettings reads the settings file and applies .env and environment
// overrides on top of it
func loadSettings(appCtx *types.AppContext) (*settings.Settings, error) {
	s, err := settings.Load(settingsPath(appCtx))
	if err != nil {
		return nil, err
	}
	if err := settings.LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := s.ApplyEnv(); err != nil {
		return nil, err
	}
	return s, nil
}
