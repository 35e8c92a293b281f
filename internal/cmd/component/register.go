package component

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/component"
	"github.com/verdantci/evergreen/internal/iostreams"
)

// RegisterOptions holds options for the component register command.
type RegisterOptions struct {
	IO    *iostreams.IOStreams
	Store *component.Store

	Name        string
	Project     string
	Path        string
	Version     string
	Description string
	Maintainer  string
}

func newCmdRegister(f *cmdutil.Factory, runF func(context.Context, *RegisterOptions) error) *cobra.Command {
	opts := &RegisterOptions{IO: f.IOStreams}
	var registryPath string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a component, or record a new version",
		Example: `  evergreen component register --name helloworld \
    --project components/helloworld --path templates/helloworld.yml --version 1.0.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Store = storeFor(f, registryPath)
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return registerRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&registryPath, "registry", "", "Registry file (default component-registry.yaml)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Component name")
	cmd.Flags().StringVar(&opts.Project, "project", "", "Project hosting the component (group/project)")
	cmd.Flags().StringVar(&opts.Path, "path", "", "Template path inside the project")
	cmd.Flags().StringVar(&opts.Version, "version", "", "Component version")
	cmd.Flags().StringVar(&opts.Description, "description", "", "Short description")
	cmd.Flags().StringVar(&opts.Maintainer, "maintainer", "", "Maintainer contact")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("version")

	return cmd
}

func registerRun(ctx context.Context, opts *RegisterOptions) error {
	err := opts.Store.Register(ctx, component.Component{
		Name:           opts.Name,
		Project:        opts.Project,
		Path:           opts.Path,
		CurrentVersion: opts.Version,
		Description:    opts.Description,
		Maintainer:     opts.Maintainer,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(opts.IO.Out, "Registered %s v%s\n", opts.Name, opts.Version)
	return nil
}
