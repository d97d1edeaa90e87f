package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/questcap/internal/api"
	"github.com/bryanchriswhite/questcap/internal/capture"
	"github.com/bryanchriswhite/questcap/internal/logger"
	"github.com/bryanchriswhite/questcap/internal/output"
	"github.com/bryanchriswhite/questcap/internal/overlay"
	"github.com/bryanchriswhite/questcap/internal/preview"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a live preview to the browser",
	Long: `Capture the headset screen continuously and serve it over HTTP.

The web viewer shows an MJPEG stream with a status banner. Rate and scale can
be changed from the viewer or through the REST API; capture status is pushed
over a WebSocket.`,
	Example: `  # Serve on the default port (8080)
  questcap serve

  # Custom port, full resolution
  questcap serve --port 9090 --scale 1

  # Over WiFi with debug logging
  questcap serve --host 192.168.1.20 --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "HTTP port (default 8080)")
	serveCmd.Flags().Float64("fps", 0, "capture rate in frames per second (default 10)")
	serveCmd.Flags().Float64("scale", 0, "scale factor applied to each frame (default 0.5)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.WithComponent("serve")
	cfg := configMgr.Get()
	log.Info().Str("config", configMgr.GetConfigPath()).Msg("Configuration loaded")

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	a := &actions{sess: sess, cfg: cfg}
	defer a.disconnect(context.WithoutCancel(ctx))

	ctrl := capture.NewControl(cfg.Capture.FPS, cfg.Capture.Scale)
	slot := &capture.Slot{}
	loop := capture.NewLoop(sess, ctrl, slot)

	stream := output.NewMJPEGOutput(output.Config{Quality: cfg.Preview.JPEGQuality})
	var sink output.Output = stream
	if err := sink.Start(); err != nil {
		return fmt.Errorf("failed to start %s output: %w", sink.Name(), err)
	}
	defer sink.Stop()

	server := api.NewServer(api.Options{
		Control: ctrl,
		Stats:   loop,
		Device:  sess,
		Stream:  stream,
		Target:  sess.Target().String(),
	})

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(ctx)
	}()

	banner := overlay.DefaultBanner()
	refresher := preview.New(ctrl, slot, cfg.Preview.RefreshInterval)
	go refresher.Run(ctx, func(frame *capture.Frame, status preview.Status) {
		server.PublishStatus(status)
		if frame == nil || !sink.IsRunning() {
			return
		}
		if err := sink.WriteFrame(banner.Stamp(frame.Image, status.Text)); err != nil {
			log.Warn().Err(err).Msg("Failed to write preview frame")
		}
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.ServerPort)
	}()

	fmt.Println()
	log.Info().Msg("questcap is serving")
	fmt.Printf("   - Viewer: http://localhost:%d\n", cfg.ServerPort)
	fmt.Printf("   - API:    http://localhost:%d/api\n", cfg.ServerPort)
	fmt.Println("   - Press Ctrl+C to stop")
	fmt.Println()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
	case <-ctrl.Done():
		log.Info().Msg("Capture stopped")
	case runErr = <-serverErr:
		if runErr != nil {
			runErr = fmt.Errorf("server error: %w", runErr)
		}
	}
	ctrl.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Server shutdown error")
	}

	if err := <-loopErr; err != nil && runErr == nil {
		runErr = fmt.Errorf("capture stopped: %w", err)
	}
	return runErr
}
