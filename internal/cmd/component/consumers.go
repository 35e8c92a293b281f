package component

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/component"
	"github.com/verdantci/evergreen/internal/iostreams"
)

// ConsumersOptions holds options for the component consumers command.
type ConsumersOptions struct {
	IO    *iostreams.IOStreams
	Store *component.Store

	Component string
	JSON      bool
}

func newCmdConsumers(f *cmdutil.Factory, runF func(context.Context, *ConsumersOptions) error) *cobra.Command {
	opts := &ConsumersOptions{IO: f.IOStreams}
	var registryPath string

	cmd := &cobra.Command{
		Use:   "consumers <component>",
		Short: "List the registered consumers of a component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Component = args[0]
			opts.Store = storeFor(f, registryPath)
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return consumersRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&registryPath, "registry", "", "Registry file (default component-registry.yaml)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output as JSON")

	return cmd
}

func consumersRun(ctx context.Context, opts *ConsumersOptions) error {
	consumers, err := opts.Store.Consumers(ctx, opts.Component)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(opts.IO.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(consumers)
	}

	if len(consumers) == 0 {
		fmt.Fprintf(opts.IO.Out, "No consumers registered for %s.\n", opts.Component)
		return nil
	}
	fmt.Fprintf(opts.IO.Out, "Consumers of %s:\n", opts.Component)
	for _, c := range consumers {
		line := fmt.Sprintf("  %s (%s)", c.ProjectPath, c.IncludeMethod)
		if c.VersionUsed != "" {
			line += " v" + c.VersionUsed
		}
		if c.Contact != "" {
			line += ", contact " + c.Contact
		}
		fmt.Fprintln(opts.IO.Out, line)
	}
	return nil
}
