package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
	"github.com/nerrad567/kommander-bridge/internal/infrastructure/config"
)

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file without connecting",
		Long: `Load and validate the configuration file.

A device URL that does not match ws://host[:port][/path] is reported as a
warning: the bridge still starts and shows a bad-configuration status until
the URL is corrected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), *configPath, cfg)
		},
	}
}

// writeSummary prints the effective settings of cfg.
func writeSummary(w io.Writer, path string, cfg *config.Config) error {
	p := &printer{w: w}
	p.printf("configuration OK: %s\n", path)
	p.printf("  instance:        %s\n", cfg.Instance.ID)
	p.printf("  device url:      %s\n", cfg.Device.URL)
	p.printf("  reconnect:       %t\n", cfg.Device.Reconnect)
	p.printf("  toggle encoding: %s\n", cfg.Device.ToggleEncoding)
	p.printf("  database:        %s\n", enabledDetail(cfg.Database.Enabled, cfg.Database.Path))
	p.printf("  mqtt:            %s\n", enabledDetail(cfg.MQTT.Enabled, fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port)))
	p.printf("  api:             %s\n", enabledDetail(cfg.API.Enabled, fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)))
	p.printf("  influxdb:        %s\n", enabledDetail(cfg.InfluxDB.Enabled, cfg.InfluxDB.URL))
	p.printf("  metrics:         %s\n", enabledDetail(cfg.Metrics.Enabled, cfg.Metrics.Path))

	if err := kommander.ValidateAddress(cfg.Device.URL); err != nil {
		p.printf("warning: %v\n", err)
	}
	return p.err
}

func enabledDetail(enabled bool, detail string) string {
	if !enabled {
		return "disabled"
	}
	return detail
}

// printer remembers the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
