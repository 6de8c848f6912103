package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type queueOpts struct {
	*rootOpts
}

func newQueue(parent *rootOpts) *queueOpts {
	return &queueOpts{rootOpts: parent}
}

func (opts *queueOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queue <image-id>",
		Short:   "Mark an image to be fetched into the cache in the background.",
		Example: makeExample("imagecachectl queue 661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3"),
		RunE:    opts.RunE,
	}
	return cmd
}

func (opts *queueOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("expected an image ID argument")
	}

	ctx := context.Background()

	queued, err := opts.API.QueueImage(ctx, args[0])
	if err != nil {
		return err
	}
	if queued {
		fmt.Fprintf(cmd.OutOrStdout(), "Queued %s for prefetch\n", args[0])
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already cached or queued; nothing to do\n", args[0])
	}
	return nil
}
