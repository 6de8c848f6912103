package main

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

type imageStatusOpts struct {
	*rootOpts
	output string
}

func newImageStatus(parent *rootOpts) *imageStatusOpts {
	return &imageStatusOpts{rootOpts: parent}
}

func (opts *imageStatusOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <image-id>",
		Short: "Display where an image stands in the cache.",
		Example: makeExample(
			"imagecachectl status 661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3 --output=yaml",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "yaml", `The format to output ("yaml" or "json")`)
	return cmd
}

func (opts *imageStatusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("expected an image ID argument")
	}

	var marshal func(interface{}) ([]byte, error)
	switch opts.output {
	case "yaml":
		marshal = yaml.Marshal
	case "json":
		marshal = func(v interface{}) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	default:
		return newUsageError("unknown output format " + opts.output)
	}

	ctx := context.Background()

	status, err := opts.API.ImageStatus(ctx, args[0])
	if err != nil {
		return err
	}

	bytes, err := marshal(status)
	if err != nil {
		return errors.Wrap(err, "marshalling to output format "+opts.output)
	}
	cmd.OutOrStdout().Write(bytes)
	return nil
}
