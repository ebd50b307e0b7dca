package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/terraphim-labs/roleforge/pkg/telemetry"
)

var telemetryFormat string

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Inspect the process-wide telemetry aggregator",
}

var telemetryDemoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Record a handful of synthetic requests and print the resulting snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		collector := telemetry.NewCollector(0)
		for i := 0; i < 8; i++ {
			collector.RecordRequest(telemetry.ProviderMetrics{
				Provider:     "primary",
				ResponseTime: time.Duration(80+i*10) * time.Millisecond,
				Tokens:       120,
				Success:      true,
			})
		}
		collector.RecordRequest(telemetry.ProviderMetrics{Provider: "primary", Success: false, ErrorType: "timeout"})
		collector.RecordSessionCreated()
		collector.RecordCacheHit()
		collector.RecordCacheMiss()
		collector.UpdateActiveSessions(1, 100)

		metrics := collector.GetAggregatedMetrics()
		switch telemetryFormat {
		case "prometheus":
			fmt.Print(telemetry.ExportPrometheus(metrics))
		default:
			data, err := collector.ExportJSON()
			if err != nil {
				return fmt.Errorf("export json: %w", err)
			}
			fmt.Println(string(data))
		}
		return nil
	},
}

func init() {
	telemetryDemoCmd.Flags().StringVar(&telemetryFormat, "format", "json", "output format: json or prometheus")
	telemetryCmd.AddCommand(telemetryDemoCmd)
}
