package component

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/component"
	"github.com/verdantci/evergreen/internal/iostreams"
)

// AddConsumerOptions holds options for the component add-consumer command.
type AddConsumerOptions struct {
	IO    *iostreams.IOStreams
	Store *component.Store

	Component string
	Project   string
	Contact   string
	Version   string
	Method    string
}

func newCmdAddConsumer(f *cmdutil.Factory, runF func(context.Context, *AddConsumerOptions) error) *cobra.Command {
	opts := &AddConsumerOptions{IO: f.IOStreams}
	var registryPath string

	cmd := &cobra.Command{
		Use:   "add-consumer",
		Short: "Record a project as a consumer of a component",
		Example: `  evergreen component add-consumer --component helloworld \
    --project teams/billing/api --contact billing@example.com --version 1.0.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch opts.Method {
			case component.IncludeComponent, component.IncludeProject:
			default:
				return cmdutil.FlagErrorf("invalid --method %q: must be %q or %q",
					opts.Method, component.IncludeComponent, component.IncludeProject)
			}
			opts.Store = storeFor(f, registryPath)
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return addConsumerRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&registryPath, "registry", "", "Registry file (default component-registry.yaml)")
	cmd.Flags().StringVar(&opts.Component, "component", "", "Component name")
	cmd.Flags().StringVar(&opts.Project, "project", "", "Consuming project path (group/project)")
	cmd.Flags().StringVar(&opts.Contact, "contact", "", "Contact for the consuming project")
	cmd.Flags().StringVar(&opts.Version, "version", "", "Component version the project uses")
	cmd.Flags().StringVar(&opts.Method, "method", component.IncludeComponent, "Include method (component or project)")
	cmd.MarkFlagRequired("component")
	cmd.MarkFlagRequired("project")

	return cmd
}

func addConsumerRun(ctx context.Context, opts *AddConsumerOptions) error {
	err := opts.Store.AddConsumer(ctx, opts.Component, component.Consumer{
		ProjectPath:   opts.Project,
		Contact:       opts.Contact,
		VersionUsed:   opts.Version,
		IncludeMethod: opts.Method,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(opts.IO.Out, "Added %s as a consumer of %s\n", opts.Project, opts.Component)
	return nil
}
