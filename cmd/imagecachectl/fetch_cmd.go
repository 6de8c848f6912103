package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
)

type imageFetchOpts struct {
	*rootOpts
	output string
	quiet  bool
}

func newImageFetch(parent *rootOpts) *imageFetchOpts {
	return &imageFetchOpts{rootOpts: parent}
}

func (opts *imageFetchOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <image-id>",
		Short: "Download an image payload through the cache.",
		Example: makeExample(
			"imagecachectl fetch 661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3 -o image.raw",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "File to write the payload to; defaults to stdout")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "No progress bar")
	return cmd
}

func (opts *imageFetchOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("expected an image ID argument")
	}

	ctx := context.Background()

	download, err := opts.API.GetImage(ctx, args[0])
	if err != nil {
		return err
	}
	defer download.Body.Close()

	var w io.Writer = os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	// A progress bar would garble the payload when it goes to stdout,
	// and needs a length to count down from.
	var body io.Reader = download.Body
	var bar *pb.ProgressBar
	if !opts.quiet && opts.output != "" && download.Size >= 0 {
		bar = pb.Full.Start64(download.Size)
		body = bar.NewProxyReader(download.Body)
	}

	written, err := io.Copy(w, body)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	if opts.output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s (%d bytes, from %s)\n", args[0], written, download.Source)
	}
	return nil
}
