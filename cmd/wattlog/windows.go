package main

import (
	"time"

	"github.com/spf13/cobra"
)

func NewWindowsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "windows",
		Short:   "List sealed windows of the current session",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			metas, err := apiClient.GetWindows()
			if err != nil {
				return err
			}

			if len(metas) == 0 {
				cmd.Println("No sealed windows this session.")
				return nil
			}

			for _, m := range metas {
				cmd.Printf("#%d  %s .. %s  %d samples  %s\n",
					m.Index,
					m.Start.Local().Format(time.DateTime),
					m.End.Local().Format(time.DateTime),
					m.Samples,
					m.Path)
			}

			return nil
		},
	}
}

func NewFilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "files",
		Short:   "List CSV files in the daemon's log directory",
		GroupID: gBasic,
		Long: `List CSV files in the daemon's log directory, newest first.

Unlike 'wattlog windows', this covers all past sessions, not just the
current one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := apiClient.GetFiles()
			if err != nil {
				return err
			}

			if len(files) == 0 {
				cmd.Println("No window files found.")
				return nil
			}

			for _, f := range files {
				cmd.Printf("%s  %8d bytes  %s\n",
					f.ModTime.Local().Format(time.DateTime), f.Size, f.Name)
			}

			return nil
		},
	}
}

func NewDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "devices",
		Short:   "List energy probes visible to the daemon",
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := apiClient.GetDevices()
			if err != nil {
				return err
			}

			if len(devices) == 0 {
				cmd.Println("No probes found.")
				return nil
			}

			for _, d := range devices {
				cmd.Printf("%s  %s\n", d.ID, d.Name)
			}

			return nil
		},
	}
}
