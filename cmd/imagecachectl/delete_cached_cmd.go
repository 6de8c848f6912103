package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type cachedDeleteOpts struct {
	*rootOpts
	all bool
}

func newCachedDelete(parent *rootOpts) *cachedDeleteOpts {
	return &cachedDeleteOpts{rootOpts: parent}
}

func (opts *cachedDeleteOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-cached [<image-id>]",
		Short: "Remove an image, or all images, from the cache.",
		Example: makeExample(
			"imagecachectl delete-cached 661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3",
			"imagecachectl delete-cached --all",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.all, "all", false, "Remove every cached image")
	return cmd
}

func (opts *cachedDeleteOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return newUsageError("expected a single image ID")
	}
	if err := checkExactlyOne("an image ID or --all", len(args) == 1, opts.all); err != nil {
		return err
	}

	ctx := context.Background()

	if opts.all {
		deleted, err := opts.API.DeleteAllCachedImages(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cached images\n", deleted)
		return nil
	}

	if err := opts.API.DeleteCachedImage(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from the cache\n", args[0])
	return nil
}
