package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/questcap/internal/config"
	"github.com/bryanchriswhite/questcap/internal/logger"
)

var (
	cfgFile   string
	configMgr *config.Manager
	rootCmd   = &cobra.Command{
		Use:   "questcap",
		Short: "questcap - Screen capture for Oculus Quest headsets over adb",
		Long: `questcap captures what a Quest headset is showing through the adb device bridge.

Run without a command for the interactive menu, or use a command directly.

Features:
  • Screenshots and timed screen recordings
  • Live stream of numbered frames to disk
  • Real-time preview window with adjustable rate and scale
  • Browser preview with MJPEG stream and REST/WebSocket control
  • USB or WiFi (adb over TCP) connections
  • Persistent configuration`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
		RunE:              runMenu,
	}
)

// flagKeys maps flag names to the config keys they override. Flags only
// apply when the running command defines them.
var flagKeys = map[string]string{
	"adb":        "adb_path",
	"host":       "device.host",
	"adb-port":   "device.port",
	"serial":     "device.serial",
	"output-dir": "output_dir",
	"log-level":  "log_level",
	"fps":        "capture.fps",
	"scale":      "capture.scale",
	"duration":   "capture.record_seconds",
	"port":       "server_port",
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/questcap/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("adb", "", "path to the adb executable (default is adb on PATH)")
	rootCmd.PersistentFlags().String("host", "", "headset IP address for a WiFi connection (default is USB)")
	rootCmd.PersistentFlags().Int("adb-port", 0, "adb TCP port for a WiFi connection (default is 5555)")
	rootCmd.PersistentFlags().String("serial", "", "serial of the USB device to use when several are attached")
	rootCmd.PersistentFlags().String("output-dir", "", "directory for captures (default depends on the OS)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := mgr.BindFlag(key, flag); err != nil {
				return err
			}
		}
	}

	configMgr = mgr
	logger.Init(mgr.Get().LogLevel, true)
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
