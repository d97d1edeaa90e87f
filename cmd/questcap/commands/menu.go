package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/questcap/internal/menu"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Start the interactive menu",
	Long: `Connect to the headset and show a numbered menu of capture actions.
This is also what runs when questcap is started without a command.

When neither --host nor --serial is configured you are asked whether to
connect over USB or WiFi.`,
	Example: `  # Ask for the connection type
  questcap

  # Skip the question and connect over WiFi
  questcap menu --host 192.168.1.20`,
	Args: cobra.NoArgs,
	RunE: runMenu,
}

func init() {
	rootCmd.AddCommand(menuCmd)
}

func runMenu(cmd *cobra.Command, args []string) error {
	fmt.Println("Oculus Quest ADB Screen Capture Tool")
	fmt.Println("=====================================")

	ctx := cmd.Context()
	p := menu.NewPrompter(os.Stdin, os.Stdout)
	cfg := configMgr.Get()

	if cfg.Device.Host == "" && cfg.Device.Serial == "" {
		host, err := p.AskConnection()
		if err != nil {
			return err
		}
		cfg.Device.Host = host
	}

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	a := &actions{sess: sess, cfg: cfg}
	defer a.disconnect(context.WithoutCancel(ctx))

	fmt.Println()
	if err := a.showInfo(ctx, "table"); err != nil {
		fmt.Printf("Could not read device info: %v\n", err)
	}

	if a.dir, err = outputDir(cfg); err != nil {
		return err
	}
	fmt.Printf("All captures will be saved to: %s\n", a.dir)

	return menu.Run(ctx, p, menu.Defaults{
		RecordSeconds: cfg.Capture.RecordSeconds,
		FPS:           cfg.Capture.FPS,
		Scale:         cfg.Capture.Scale,
	}, a)
}
