// Package component provides the component command group for tracking
// CI/CD component usage: a local registry of components and consumers, and
// a scanner for include statements in CI files.
package component

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/component"
)

// defaultRegistryFile is the registry location relative to the working
// directory, overridable with --registry on every subcommand.
const defaultRegistryFile = "component-registry.yaml"

// NewCmdComponent creates the component command group.
func NewCmdComponent(f *cmdutil.Factory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "component <command>",
		Short: "Track CI/CD component usage",
		Long: `Maintains a registry of CI/CD components and their consumers, and
discovers component usage by scanning .gitlab-ci.yml include statements.`,
	}

	cmd.AddCommand(newCmdRegister(f, nil))
	cmd.AddCommand(newCmdAddConsumer(f, nil))
	cmd.AddCommand(newCmdConsumers(f, nil))
	cmd.AddCommand(newCmdScan(f, nil))
	cmd.AddCommand(newCmdReport(f, nil))

	return cmd
}

func storeFor(f *cmdutil.Factory, registryPath string) *component.Store {
	if registryPath == "" {
		registryPath = filepath.Join(f.WorkDir, defaultRegistryFile)
	} else if !filepath.IsAbs(registryPath) {
		registryPath = filepath.Join(f.WorkDir, registryPath)
	}
	return component.NewStore(registryPath)
}
