package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ironsheep/slide-server/internal/slide"
)

func newInfoCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Print the metadata and pyramid of an image as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := slide.OpenFile(args[0], v.GetInt("tile_size"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(slide.Describe(img, args[0]))
		},
	}
	cmd.Flags().Int("tile-size", 256, "tile side of the generated pyramid")
	bindFlags(v, cmd, map[string]string{"tile-size": "tile_size"})
	return cmd
}
