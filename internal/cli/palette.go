package cli

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

type swatchOutput struct {
	Name    string  `json:"name"`
	Hex     string  `json:"hex"`
	R       float64 `json:"r"`
	G       float64 `json:"g"`
	B       float64 `json:"b"`
	Default bool    `json:"default,omitempty"`
}

func newPaletteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "palette",
		Short: "Show the configured trigger colours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			p, err := cfg.BuildPalette()
			if err != nil {
				return err
			}
			_, def, err := cfg.Defaults()
			if err != nil {
				return err
			}

			var out []swatchOutput
			for _, s := range p.Swatches() {
				rgb, err := s.RGB()
				if err != nil {
					return err
				}
				out = append(out, swatchOutput{
					Name:    s.Name.String(),
					Hex:     rgb.Hex(),
					R:       rgb.R,
					G:       rgb.G,
					B:       rgb.B,
					Default: s.Name == def,
				})
			}

			if opts.json {
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal palette: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			cmd.Println(styleHeader.Render("Palette"))
			for _, s := range out {
				block := lipgloss.NewStyle().Background(lipgloss.Color(s.Hex)).Render("    ")
				line := fmt.Sprintf("%s %-10s %s", block, s.Name, styleMuted.Render(s.Hex))
				if s.Default {
					line += " (default)"
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}
