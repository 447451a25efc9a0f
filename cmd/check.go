package cmd

import (
	"fmt"
	"slices"

	"github.com/lepinkainen/wildlifetagger/types"
	"github.com/lepinkainen/wildlifetagger/ui"
	"github.com/lepinkainen/wildlifetagger/utils"
)

type CheckCmd struct{}

// Run reports whether the external tools and the selected model are usable
func (cmd *CheckCmd) Run(appCtx *types.AppContext) error {
	fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("WildlifeTagger %s", appCtx.VersionOrDefault())))

	problems := 0
	missing := utils.MissingTools(utils.FFmpegTools...)
	for _, tool := range utils.FFmpegTools {
		if slices.Contains(missing, tool) {
			fmt.Println(ui.ErrorStyle.Render(fmt.Sprintf("❌ %s not found in PATH. %s", tool, utils.InstallationInstructions())))
			problems++
		} else {
			fmt.Println(ui.SuccessStyle.Render(fmt.Sprintf("✓ %s", tool)))
		}
	}

	s, err := loadSettings(appCtx)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		fmt.Println(ui.ErrorStyle.Render(fmt.Sprintf("❌ settings: %v", err)))
		problems++
	} else {
		m, _ := s.SelectedModel()
		fmt.Printf("Model %s: %s\n", m.Name, fileStatus(m.Path))
		if !fileExists(m.Path) {
			problems++
		}
		if m.Classes != "" {
			fmt.Printf("Classes: %s\n", fileStatus(m.Classes))
			if !fileExists(m.Classes) {
				problems++
			}
		}
	}

	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	fmt.Println(ui.SuccessStyle.Render("✅ Ready to process media"))
	return nil
}
