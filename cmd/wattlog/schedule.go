package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule [cron-expression]",
		Aliases: []string{"sch", "sche", "sched"},
		Short:   "Manage the automatic capture schedule",
		GroupID: gAdvanced,
		Long: `Manage the automatic capture schedule.

The schedule command can be used in multiple ways:
  wattlog schedule 'minute hour day month weekday' Set schedule with cron expression
  wattlog schedule disable                         Disable the schedule
  wattlog schedule show                            Show current schedule

A scheduled run starts a capture session with the configured window
length. If a session is already running when the schedule fires, the
run is skipped.`,
		Example: `  wattlog schedule '0 9 * * 1-5' (At 09:00 on weekdays)
  wattlog schedule '0 0 * * *'   (At midnight every day)
  wattlog schedule '*/30 * * * *' (Every 30 minutes)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// If no arguments, show the current schedule
			if len(args) == 0 {
				return runScheduleShow(cmd)
			}
			// Otherwise, treat as a cron expression to set
			return runScheduleSet(cmd, args[0])
		},
	}

	cmd.AddCommand(
		newScheduleDisableCommand(),
		newScheduleShowCommand(),
	)

	return cmd
}

func newScheduleDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "disable",
		Aliases: []string{"clear"},
		Short:   "Disable the capture schedule",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduleDisable(cmd)
		},
	}
}

func newScheduleShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "show",
		Aliases: []string{"get"},
		Short:   "Show the current capture schedule",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduleShow(cmd)
		},
	}
}

func runScheduleSet(cmd *cobra.Command, cronExpr string) error {
	if cronExpr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}
	if _, err := apiClient.SetSchedule(cronExpr); err != nil {
		return err
	}

	info, err := apiClient.GetSchedule()
	if err != nil {
		return err
	}
	cmd.Printf("Capture scheduled. Next run: %s\n", info.NextRun.Local().Format(time.DateTime))
	return nil
}

func runScheduleDisable(cmd *cobra.Command) error {
	if _, err := apiClient.ClearSchedule(); err != nil {
		return err
	}
	cmd.Println("Capture schedule disabled.")
	return nil
}

func runScheduleShow(cmd *cobra.Command) error {
	info, err := apiClient.GetSchedule()
	if err != nil {
		return err
	}
	if info.Cron == "" {
		cmd.Println("Capture schedule is not set.")
		return nil
	}
	cmd.Printf("Cron: %s\n", info.Cron)
	cmd.Printf("Next run: %s\n", info.NextRun.Local().Format(time.DateTime))
	return nil
}
