package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type queuedListOpts struct {
	*rootOpts
	match string
}

func newQueuedList(parent *rootOpts) *queuedListOpts {
	return &queuedListOpts{rootOpts: parent}
}

func (opts *queuedListOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list-queued",
		Short:   "List the images waiting to be prefetched.",
		Example: makeExample("imagecachectl list-queued"),
		RunE:    opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.match, "match", "m", "", "Confine the list to image IDs matching a glob pattern")
	return cmd
}

func (opts *queuedListOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}

	ctx := context.Background()

	queued, err := opts.API.ListQueuedImages(ctx, opts.match)
	if err != nil {
		return err
	}

	w := newTabwriter()
	fmt.Fprintf(w, "IMAGE\tQUEUED AT\n")
	for _, image := range queued {
		fmt.Fprintf(w, "%s\t%s\n", image.ID, image.QueuedAt.Format(time.RFC822))
	}
	w.Flush()
	return nil
}
