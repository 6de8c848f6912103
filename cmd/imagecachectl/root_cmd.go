package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imagecached/imagecached/pkg/api"
	transport "github.com/imagecached/imagecached/pkg/http"
	"github.com/imagecached/imagecached/pkg/http/client"
)

const (
	EnvVariableURL = "IMAGECACHE_URL"
)

type rootOpts struct {
	URL string
	API api.Server
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
imagecachectl manages an imagecached instance.

Workflow:
  imagecachectl list-cached                                         # What is in the cache?
  imagecachectl queue 661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3          # Ask for an image to be prefetched.
  imagecachectl fetch 661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3 -o disk  # Download an image through the cache.
  imagecachectl delete-cached --all                                 # Empty the cache.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "imagecachectl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", "http://localhost:9292",
		fmt.Sprintf("base URL of the imagecached API server; you can also set the environment variable %s", EnvVariableURL))

	cmd.AddCommand(
		newVersionCommand(),
		newImageFetch(opts).Command(),
		newImageStatus(opts).Command(),
		newCachedList(opts).Command(),
		newCachedDelete(opts).Command(),
		newQueue(opts).Command(),
		newQueuedList(opts).Command(),
		newQueuedDelete(opts).Command(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	url := os.Getenv(EnvVariableURL)
	if cmd.Flags().Changed("url") || url == "" {
		url = opts.URL
	}

	opts.API = client.New(http.DefaultClient, transport.NewAPIRouter(), url)
	return nil
}

func makeExample(examples ...string) string {
	var buf bytes.Buffer
	for _, ex := range examples {
		fmt.Fprintf(&buf, "  "+ex+"\n")
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
