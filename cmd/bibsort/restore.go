package main

import (
	"github.com/spf13/cobra"

	"bibsort/internal/backup"
	"bibsort/internal/digest"
	"bibsort/internal/paths"
)

// RestoreResponseCLI reports a restored snapshot
type RestoreResponseCLI struct {
	Snapshot    string `json:"snapshot" yaml:"snapshot"`
	Destination string `json:"destination" yaml:"destination"`
	Digest      string `json:"digest" yaml:"digest"`
}

func newRestoreCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot> [dest]",
		Short: "Restore a document from a snapshot",
		Long: `Decompress a snapshot taken before an in-place rewrite. Without a
destination the snapshot is written back to the document it was taken from.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			dest := ""
			if len(args) == 2 {
				dest = args[1]
			}
			resp, err := restoreSnapshot(a, args[0], dest)
			if err != nil {
				return err
			}
			return a.print(resp)
		},
	}
}

func restoreSnapshot(a *app, snapshot, dest string) (*RestoreResponseCLI, error) {
	if dest != "" {
		expanded, err := paths.ExpandHome(dest)
		if err != nil {
			return nil, err
		}
		dest = expanded
	}

	written, err := backup.Restore(snapshot, dest)
	if err != nil {
		return nil, err
	}
	sum, err := digest.File(written)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Snapshot restored", "snapshot", snapshot, "dest", written)
	return &RestoreResponseCLI{Snapshot: snapshot, Destination: written, Digest: sum}, nil
}
