package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type cachedListOpts struct {
	*rootOpts
	match string
}

func newCachedList(parent *rootOpts) *cachedListOpts {
	return &cachedListOpts{rootOpts: parent}
}

func (opts *cachedListOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-cached",
		Short: "List the images currently held in the cache.",
		Example: makeExample(
			"imagecachectl list-cached",
			"imagecachectl list-cached --match '8ff3*'",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.match, "match", "m", "", "Confine the list to image IDs matching a glob pattern")
	return cmd
}

func (opts *cachedListOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}

	ctx := context.Background()

	images, err := opts.API.ListCachedImages(ctx, opts.match)
	if err != nil {
		return err
	}

	w := newTabwriter()
	fmt.Fprintf(w, "IMAGE\tSIZE\tHITS\tLAST ACCESSED\n")
	for _, image := range images {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", image.ID, image.Size, image.Hits, image.LastAccessed.Format(time.RFC822))
	}
	w.Flush()
	return nil
}
