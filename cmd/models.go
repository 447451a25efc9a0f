package cmd

import (
	"fmt"
	"os"

	"github.com/lepinkainen/wildlifetagger/types"
	"github.com/lepinkainen/wildlifetagger/ui"
)

type ModelsCmd struct{}

func (cmd *ModelsCmd) Run(appCtx *types.AppContext) error {
	s, err := loadSettings(appCtx)
	if err != nil {
		return err
	}

	fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("WildlifeTagger %s", appCtx.VersionOrDefault())))
	fmt.Println(ui.InfoStyle.Render(fmt.Sprintf("Found %d model(s) in the registry:", len(s.Models))))

	for _, m := range s.Models {
		marker := " "
		if m.Name == s.Model {
			marker = "*"
		}
		fmt.Printf("\n%s %s\n", marker, ui.ProcessingStyle.Render(m.Name))
		if m.Description != "" {
			fmt.Printf("    %s\n", m.Description)
		}
		if m.Accuracy != "" {
			fmt.Printf("    Accuracy:  %s\n", m.Accuracy)
		}
		if m.Threshold > 0 {
			fmt.Printf("    Threshold: %v\n", m.Threshold)
		}
		fmt.Printf("    Model:     %s\n", fileStatus(m.Path))
		if m.Classes != "" {
			fmt.Printf("    Classes:   %s\n", fileStatus(m.Classes))
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fileStatus(path string) string {
	if !fileExists(path) {
		return ui.ErrorStyle.Render(fmt.Sprintf("❌ %s (missing)", path))
	}
	return ui.SuccessStyle.Render(fmt.Sprintf("✓ %s", path))
}
