package cmd

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/smazurov/hlsnode/internal/hls"
	"github.com/smazurov/hlsnode/internal/logging"
	"github.com/spf13/cobra"
)

// CreatePurgeCmd creates the purge command. layout is called at run time,
// after flags and the config file are loaded.
func CreatePurgeCmd(layout func() (hls.Layout, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove the HLS playlist and segments",
		Long: `Deletes the playlist and every segment from the output directory. ` +
			`Refuses to run while a server owns the directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := layout()
			if err != nil {
				return err
			}

			lock, err := l.Lock()
			if errors.Is(err, hls.ErrDirLocked) {
				return fmt.Errorf("%s is in use by a running server", l.Dir)
			}
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			res, err := l.Purge(logging.GetLogger("main"))
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d files (%s) from %s\n",
				res.Files, humanize.IBytes(uint64(res.Bytes)), l.Dir)
			return err
		},
	}
}
