package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/powerlab/wattlog/pkg/capture"
	"github.com/powerlab/wattlog/pkg/client"
	"github.com/powerlab/wattlog/pkg/config"
)

type statusData struct {
	status   *capture.Status
	schedule *client.ScheduleInfo
	config   *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	st, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get capture status: %w", err)
	}

	sched, err := apiClient.GetSchedule()
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		status:   st,
		schedule: sched,
		config:   conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of wattlog",
		Long:    `Get capture status, sealed windows, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Get various info first.
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			conf := config.NewFileFromConfig(data.config, "")
			st := data.status

			// Capture status.
			cmd.Println(bold("Capture status:"))

			var state string
			switch st.State {
			case capture.StateRunning:
				state = color.GreenString(string(st.State))
			case capture.StateError:
				state = color.RedString(string(st.State))
			case capture.StateStopping:
				state = color.YellowString(string(st.State))
			default:
				state = string(st.State)
			}
			cmd.Printf("  State: %s\n", bold("%s", state))

			if st.SessionID != "" {
				cmd.Printf("  Session: %s\n", st.SessionID)
			}
			if st.State == capture.StateRunning {
				cmd.Printf("  Started: %s\n", st.StartedAt.Local().Format(time.DateTime))
				cmd.Printf("  Samples captured: %s\n", bold("%d", st.SampleCount))
				cmd.Printf("  Current window: %s\n", bold("#%d", st.WindowIndex))
			}
			if st.LastError != "" {
				cmd.Printf("  Last error: %s\n", color.RedString(st.LastError))
			}
			if st.PendingReseal > 0 {
				cmd.Printf("  Windows pending reseal: %s (run 'wattlog reseal' after freeing disk space)\n",
					color.New(color.Bold, color.FgYellow).Sprintf("%d", st.PendingReseal))
			}

			cmd.Println()

			// Sealed windows of the current/last session.
			cmd.Println(bold("Sealed windows:"))
			if len(st.Windows) == 0 {
				cmd.Println("  (none this session)")
			}
			for _, m := range st.Windows {
				cmd.Printf("  #%d  %s .. %s  %d samples  %s\n",
					m.Index,
					m.Start.Local().Format(time.TimeOnly),
					m.End.Local().Format(time.TimeOnly),
					m.Samples,
					m.Path)
			}

			cmd.Println()

			// Schedule.
			cmd.Println(bold("Schedule:"))
			if data.schedule.Cron == "" {
				cmd.Println("  (not set)")
			} else {
				cmd.Printf("  Cron: %s\n", bold("%s", data.schedule.Cron))
				cmd.Printf("  Next run: %s\n", data.schedule.NextRun.Local().Format(time.DateTime))
			}

			cmd.Println()

			// Config.
			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Window length: %s\n", bold("%ds", conf.WindowSeconds()))
			cmd.Printf("  Ring capacity: %s\n", bold("%d samples", conf.RingCapacity()))
			cmd.Printf("  Log directory: %s\n", bold("%s", conf.LogDir()))
			cmd.Printf("  Sample rate hint: %s\n", bold("%g Hz", conf.SampleRateHint()))
			if conf.ListenAddress() != "" {
				cmd.Printf("  TCP listen address: %s\n", bold("%s", conf.ListenAddress()))
			}
			cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
			return nil
		},
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
