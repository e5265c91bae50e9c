package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/powerlab/wattlog/pkg/events"
	"github.com/powerlab/wattlog/pkg/types"
)

func NewWatchCommand() *cobra.Command {
	var samplesOnly bool

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Stream live capture events",
		GroupID: gBasic,
		Long: `Stream live capture events from the daemon.

Prints each sample, sealed window and state change as the daemon
publishes them. The stream reconnects automatically if the daemon
restarts. Press Ctrl-C to exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			for ev := range apiClient.SubscribeEvents(ctx) {
				switch ev.Name {
				case events.CaptureSample:
					s, err := events.DecodeAs[types.Sample](ev)
					if err != nil {
						logrus.WithError(err).Debug("skipping undecodable sample event")
						continue
					}
					cmd.Printf("%s  I=%9.6f A  U=%8.5f V  P=%9.6f W  E=%12.9f J\n",
						s.Time.Local().Format("15:04:05.000"),
						s.Current, s.Voltage, s.Power, s.Energy)
				case events.CaptureWindow:
					if samplesOnly {
						continue
					}
					w, err := events.DecodeAs[events.WindowEvent](ev)
					if err != nil {
						continue
					}
					cmd.Printf("-- window #%d sealed: %d samples -> %s\n", w.Index, w.Samples, w.Path)
				case events.CaptureState:
					if samplesOnly {
						continue
					}
					st, err := events.DecodeAs[events.StateEvent](ev)
					if err != nil {
						continue
					}
					if st.Error != "" {
						cmd.Printf("-- state: %s (%s)\n", st.State, st.Error)
					} else {
						cmd.Printf("-- state: %s\n", st.State)
					}
				case events.ScheduleError:
					if samplesOnly {
						continue
					}
					cmd.Printf("-- schedule error: %s\n", ev.Data)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&samplesOnly, "samples-only", false, "only print samples, not window/state events")

	return cmd
}

func NewSnapshotCommand() *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:     "snapshot",
		Short:   "Print the live ring buffer contents",
		GroupID: gBasic,
		Long: `Print the live ring buffer contents, oldest first.

The ring holds the most recent samples independently of the CSV windows,
so this works even while the current window is still open.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			samples, err := apiClient.GetSnapshot()
			if err != nil {
				return err
			}

			if last > 0 && len(samples) > last {
				samples = samples[len(samples)-last:]
			}

			if len(samples) == 0 {
				cmd.Println("Ring buffer is empty.")
				return nil
			}

			for _, s := range samples {
				cmd.Printf("%s  I=%9.6f A  U=%8.5f V  P=%9.6f W  E=%12.9f J\n",
					s.Time.Local().Format(time.StampMilli),
					s.Current, s.Voltage, s.Power, s.Energy)
			}
			cmd.Printf("%d sample(s)\n", len(samples))

			return nil
		},
	}

	cmd.Flags().IntVarP(&last, "last", "n", 0, "only print the newest N samples (0 prints all)")

	return cmd
}
