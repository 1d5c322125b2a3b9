package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/visiprobe/visiprobe/internal/ailink/prompt"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect scan prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded prompts (built-in plus ailink.prompts_dir overrides)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}

		registry, err := prompt.NewRegistryWithOverrides(cfg.AILink.PromptsDir)
		if err != nil {
			return err
		}
		return writePromptList(cmd.OutOrStdout(), registry.List())
	},
}

func writePromptList(w io.Writer, prompts []*prompt.Prompt) error {
	if len(prompts) == 0 {
		_, err := fmt.Fprintln(w, "No prompts found.")
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Slug", "Version", "Source", "Description"})
	for _, p := range prompts {
		if p == nil {
			continue
		}
		t.AppendRow(table.Row{p.Config.Slug, p.Config.Version, p.Source, p.Config.Description})
	}
	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(promptsCmd)
	promptsCmd.AddCommand(promptsListCmd)
}
