package commands

import (
	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the headset screen in a preview window",
	Long: `Open a desktop window showing the headset screen in near real time.

Keys: + and - change the capture rate, [ and ] change the scale,
Esc or Q stops. Closing the window also stops.`,
	Example: `  # Default rate and scale
  questcap view

  # Full resolution at 5 frames per second
  questcap view --fps 5 --scale 1`,
	Args: cobra.NoArgs,
	RunE: runView,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device information",
	Long:  `Print the headset model, Android version and screen resolution.`,
	Example: `  # Table (default)
  questcap info

  # JSON
  questcap info --format json`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

var infoFormat string

func init() {
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(infoCmd)

	viewCmd.Flags().Float64("fps", 0, "capture rate in frames per second (default 10)")
	viewCmd.Flags().Float64("scale", 0, "scale factor applied to each frame (default 0.5)")

	infoCmd.Flags().StringVarP(&infoFormat, "format", "f", "table", "output format (table, json or yaml)")
}

func runView(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), false, func(a *actions) error {
		return a.View(cmd.Context(), a.cfg.Capture.FPS, a.cfg.Capture.Scale)
	})
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), false, func(a *actions) error {
		return a.showInfo(cmd.Context(), infoFormat)
	})
}
