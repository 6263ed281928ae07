package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"zonecore/internal/blob"
	"zonecore/internal/core"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Export a point-in-time archive of all engine state to the blob store",
	RunE:  runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(_ *cobra.Command, _ []string) error {
	log := newLogger()
	ctx := context.Background()

	snapshots, err := core.OpenSnapshotStore()
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer func() { _ = snapshots.Close() }()

	blobs, err := blob.OpenFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	store := core.NewStore(core.NewNotifier(log), log)
	service := core.NewService(store, snapshots, log, core.WithBlobStore(blobs))
	if err := service.Load(ctx); err != nil {
		return fmt.Errorf("hydrate state: %w", err)
	}

	key, err := service.ExportArchive(ctx)
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}
