package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/questcap/internal/bridge"
	"github.com/bryanchriswhite/questcap/internal/config"
	"github.com/bryanchriswhite/questcap/internal/device"
	"github.com/bryanchriswhite/questcap/internal/logger"
	"github.com/bryanchriswhite/questcap/internal/output"
)

func newSession(cfg *config.Config) *device.Session {
	return device.NewSession(bridge.NewExecRunner(cfg.ADBPath), device.Options{
		Target: device.Target{
			Host:   cfg.Device.Host,
			Port:   cfg.Device.Port,
			Serial: cfg.Device.Serial,
		},
		Retry: device.RetryPolicy{
			Attempts: cfg.Device.ConnectAttempts,
			Interval: cfg.Device.ConnectInterval,
		},
		RemoteDir: cfg.Device.RemoteDir,
	})
}

// openSession checks the bridge and connects to the configured target.
func openSession(ctx context.Context, cfg *config.Config) (*device.Session, error) {
	sess := newSession(cfg)
	if err := sess.CheckBridge(ctx); err != nil {
		return nil, err
	}

	log := logger.WithComponent("cli")
	log.Info().Str("target", sess.Target().String()).Msg("Connecting to device")
	if err := sess.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to device: %w", err)
	}
	log.Info().Str("session", sess.ID()).Msg("Connected")
	return sess, nil
}

func outputDir(cfg *config.Config) (string, error) {
	return output.ResolveDir(cfg.OutputDir)
}

func writeInfo(w io.Writer, info *device.Info, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		return encoder.Encode(info)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Device Info:")
		fmt.Fprintf(tw, "  Model:\t%s\n", orUnknown(info.Model))
		fmt.Fprintf(tw, "  Android Version:\t%s\n", orUnknown(info.OSVersion))
		fmt.Fprintf(tw, "  Resolution:\t%s\n", orUnknown(info.Resolution))
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (use 'table', 'json' or 'yaml')", format)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
