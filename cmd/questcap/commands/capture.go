package commands

import (
	"github.com/spf13/cobra"
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Take a single screenshot",
	Long:  `Capture the headset screen once and save it as a PNG in the output folder.`,
	Example: `  # Timestamped file name
  questcap screenshot

  # Custom file name (.png is added)
  questcap screenshot --name lobby

  # Over WiFi
  questcap screenshot --host 192.168.1.20`,
	Args: cobra.NoArgs,
	RunE: runScreenshot,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the screen for a fixed duration",
	Long: `Record the headset screen on the device and download the MP4 when done.
The device limits recordings to 180 seconds.`,
	Example: `  # Default duration (30 seconds)
  questcap record

  # Ten seconds into demo.mp4
  questcap record --name demo --duration 10`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Save a live stream of frames to disk",
	Long: `Capture screenshots continuously and save them as frame_000000.png,
frame_000001.png, ... in the output folder until Ctrl+C is pressed.`,
	Example: `  # Default rate
  questcap stream

  # Two frames per second
  questcap stream --fps 2`,
	Args: cobra.NoArgs,
	RunE: runStream,
}

var (
	captureName string
)

func init() {
	rootCmd.AddCommand(screenshotCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(streamCmd)

	screenshotCmd.Flags().StringVarP(&captureName, "name", "n", "", "file name (default is timestamped)")

	recordCmd.Flags().StringVarP(&captureName, "name", "n", "", "file name (default is timestamped)")
	recordCmd.Flags().IntP("duration", "d", 0, "recording length in seconds, 1-180 (default 30)")

	streamCmd.Flags().Float64("fps", 0, "frames per second (default 10)")
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), true, func(a *actions) error {
		return a.Screenshot(cmd.Context(), captureName)
	})
}

func runRecord(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), true, func(a *actions) error {
		return a.Record(cmd.Context(), captureName, a.cfg.Capture.RecordSeconds)
	})
}

func runStream(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), true, func(a *actions) error {
		return a.Stream(cmd.Context(), a.cfg.Capture.FPS)
	})
}
