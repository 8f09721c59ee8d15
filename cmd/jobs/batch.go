package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Aggregate one UTC day of payments and email the report to operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now().UTC()
			if date != "" {
				parsed, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("--date must be formatted as YYYY-MM-DD: %w", err)
				}
				day = parsed
			}

			rt, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := rt.services.Reconciliation.DailyReconciliation(cmd.Context(), day)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to reconcile (YYYY-MM-DD, default today UTC)")
	return cmd
}

func sendRemindersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-reminders",
		Short: "Send a reminder for every overdue pending payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.services.Reconciliation.SendOverdueReminders(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func overdueSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue-sweep",
		Short: "Mark the invoices of overdue payments as overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.services.Reconciliation.WeeklyOverdueSweep(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
