package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"student-portal/models"
	"student-portal/services"
	"student-portal/services/kafka"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

func reportCmd(e *env) *cobra.Command {
	var filter models.AttemptFilter
	var since, outPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the payment attempt ledger to Excel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if since != "" {
				d, err := time.ParseDuration(since)
				if err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
				after := time.Now().Add(-d).UTC()
				filter.CreatedAfter = &after
			}

			attempts, err := e.app.Attempts.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := services.WriteAttemptsWorkbook(f, attempts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d attempts to %s\n", len(attempts), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.ApplicationID, "application", "", "Only attempts for this application")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 0, "Maximum rows (0 for all)")
	cmd.Flags().StringVar(&since, "since", "", "Only attempts newer than this duration (e.g. 72h)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "payment-attempts.xlsx", "Output file")

	return cmd
}

func eventsCmd(e *env) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the payment event topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := kafka.NewReader(e.cfg.KafkaTopic, group)
			if r == nil {
				return fmt.Errorf("kafka is disabled; set KAFKA_BROKERS")
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			return kafka.Consume(cmd.Context(), r, func(msg segkafka.Message) error {
				var evt map[string]interface{}
				if err := json.Unmarshal(msg.Value, &evt); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s  %-26v %s  %v\n", msg.Time.Format(time.RFC3339), evt["event"], msg.Key, evt)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "portalctl", "Consumer group")

	return cmd
}
