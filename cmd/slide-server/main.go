package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ironsheep/slide-server/internal/config"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the command tree. Every command shares one viper
// instance holding defaults, the config file, environment and flags.
func newRootCommand() *cobra.Command {
	v := config.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "slide-server",
		Short: "HTTP server for whole-slide and large raster images",
		Long: `slide-server serves thumbnails, resized images, windows and tiles of the
images found below a root directory, with intensity windowing, colormaps,
filters and annotation rendering.

Examples:
  # Serve the images of /data/slides on localhost:5000
  slide-server serve --root /data/slides

  # Describe the pyramid of one image
  slide-server info /data/slides/sample.tif`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			used, err := config.ReadFile(v, cfgFile)
			if err != nil {
				return err
			}
			if used != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", used)
			}
			return nil
		},
	}
	root.SetVersionTemplate(versionText())
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.slide-server.yaml)")

	root.AddCommand(newServeCommand(v), newInfoCommand(v), newVersionCommand())
	return root
}

func versionText() string {
	return fmt.Sprintf("slide-server %s\n  Build time: %s\n  Git commit: %s\n", Version, BuildTime, GitCommit)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), versionText())
		},
	}
}

// bindFlags binds flags of cmd to viper keys, flag name to key.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
}
