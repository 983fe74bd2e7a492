package cmd

import (
	"fmt"

	"github.com/smazurov/hlsnode/internal/ffmpeg"
	"github.com/spf13/cobra"
)

// CreateCommandCmd creates the command command, which prints the ffmpeg
// invocation the server would run. build is called at run time.
func CreateCommandCmd(build func() ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "command",
		Short: "Print the ffmpeg command line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := build()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ffmpeg.FormatArgs(args))
			return nil
		},
	}
}
