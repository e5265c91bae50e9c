package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/powerlab/wattlog/pkg/client"
	"github.com/powerlab/wattlog/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewStartCommand() *cobra.Command {
	var (
		windowSeconds int
		maxWindows    int
	)

	cmd := &cobra.Command{
		Use:     "start",
		Short:   "Start a capture session",
		GroupID: gBasic,
		Long: `Start a capture session.

The daemon opens the probe and begins writing wall-clock-aligned CSV
windows into its log directory. The first window of a session may be
shorter than the configured window length because it ends on the next
wall-clock boundary.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			st, err := apiClient.Start(client.StartOptions{
				WindowSeconds: windowSeconds,
				MaxWindows:    maxWindows,
			})
			if err != nil {
				return fmt.Errorf("failed to start capture: %v", err)
			}

			logrus.WithFields(logrus.Fields{
				"session": st.SessionID,
				"state":   st.State,
			}).Info("capture session started")

			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&windowSeconds, "window-seconds", "w", 0, "window length in seconds for this session (0 uses the daemon config)")
	f.IntVarP(&maxWindows, "max-windows", "m", 0, "stop after this many sealed windows (0 means unlimited)")

	return cmd
}

func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Short:   "Stop the running capture session",
		GroupID: gBasic,
		Long: `Stop the running capture session.

The open window is sealed to disk before the daemon returns to idle, so
a partial window is persisted rather than discarded.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			st, err := apiClient.Stop()
			if err != nil {
				return fmt.Errorf("failed to stop capture: %v", err)
			}

			logrus.WithFields(logrus.Fields{
				"samples": st.SampleCount,
				"windows": len(st.Windows),
			}).Info("capture session stopped")

			return nil
		},
	}
}

func NewResealCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "reseal",
		Short:   "Retry sealing windows whose flush failed",
		GroupID: gAdvanced,
		Long: `Retry sealing windows whose flush failed.

Windows that could not be written, e.g. because the disk was full, keep
their samples in memory. After freeing space, run reseal to flush them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			metas, err := apiClient.Reseal()
			if err != nil {
				return fmt.Errorf("failed to reseal: %v", err)
			}

			if len(metas) == 0 {
				cmd.Println("No windows were pending reseal.")
				return nil
			}
			cmd.Printf("Resealed %d window(s):\n", len(metas))
			for _, m := range metas {
				cmd.Printf("  - %s (%d samples)\n", m.Path, m.Samples)
			}
			return nil
		},
	}
}

func NewWindowSecondsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "window-seconds [seconds]",
		Short:   "Set the configured window length",
		GroupID: gAdvanced,
		Long: `Set the configured window length in seconds.

The new value is persisted to the daemon config and applies to the next
capture session. A running session keeps its current window length.`,
		RunE: func(_ *cobra.Command, args []string) error {
			seconds, err := parseIntArg(args, "window seconds")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetWindowSeconds(seconds)
			if err != nil {
				return fmt.Errorf("failed to set window seconds: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set window length to %ds", seconds)

			return nil
		},
	}
}
