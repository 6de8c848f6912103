package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type queuedDeleteOpts struct {
	*rootOpts
	all bool
}

func newQueuedDelete(parent *rootOpts) *queuedDeleteOpts {
	return &queuedDeleteOpts{rootOpts: parent}
}

func (opts *queuedDeleteOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-queued [<image-id>]",
		Short: "Drop an image, or all images, from the prefetch queue.",
		Example: makeExample(
			"imagecachectl delete-queued 661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3",
			"imagecachectl delete-queued --all",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.all, "all", false, "Drop every queued image")
	return cmd
}

func (opts *queuedDeleteOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return newUsageError("expected a single image ID")
	}
	if err := checkExactlyOne("an image ID or --all", len(args) == 1, opts.all); err != nil {
		return err
	}

	ctx := context.Background()

	if opts.all {
		deleted, err := opts.API.DeleteAllQueuedImages(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dropped %d queued images\n", deleted)
		return nil
	}

	if err := opts.API.DeleteQueuedImage(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s from the queue\n", args[0])
	return nil
}
