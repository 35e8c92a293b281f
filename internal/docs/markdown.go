// Package docs generates markdown reference documentation for the
// evergreen command tree.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// GenMarkdownTree generates one markdown page per command, named after the
// command path, in dir.
func GenMarkdownTree(cmd *cobra.Command, dir string) error {
	for _, c := range cmd.Commands() {
		if c.Hidden {
			continue
		}
		if err := GenMarkdownTree(c, dir); err != nil {
			return err
		}
	}

	filename := filepath.Join(dir, manualPath(cmd))
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	defer f.Close()

	return GenMarkdown(cmd, f)
}

// GenMarkdown generates the markdown page for a single command.
func GenMarkdown(cmd *cobra.Command, w io.Writer) error {
	cmd.InitDefaultHelpCmd()
	cmd.InitDefaultHelpFlag()

	buf := new(bytes.Buffer)
	name := cmd.CommandPath()

	buf.WriteString("## " + name + "\n\n")

	if cmd.Short != "" {
		buf.WriteString(cmd.Short + "\n\n")
	}

	if cmd.Runnable() || hasRunnableSubcommands(cmd) {
		buf.WriteString("### Synopsis\n\n")
		if cmd.Long != "" {
			buf.WriteString(cmd.Long + "\n\n")
		}
		if cmd.Runnable() {
			buf.WriteString("```\n" + cmd.UseLine() + "\n```\n\n")
		}
	}

	if cmd.Example != "" {
		buf.WriteString("### Examples\n\n")
		buf.WriteString("```\n" + cmd.Example + "\n```\n\n")
	}

	if subcommands := visibleSubcommands(cmd); len(subcommands) > 0 {
		buf.WriteString("### Subcommands\n\n")
		for _, c := range subcommands {
			fmt.Fprintf(buf, "* [%s](%s) - %s\n", c.CommandPath(), manualPath(c), c.Short)
		}
		buf.WriteString("\n")
	}

	if flags := cmd.NonInheritedFlags(); flags.HasAvailableFlags() {
		buf.WriteString("### Options\n\n")
		buf.WriteString("```\n")
		buf.WriteString(flags.FlagUsages())
		buf.WriteString("```\n\n")
	}

	if flags := cmd.InheritedFlags(); flags.HasAvailableFlags() {
		buf.WriteString("### Options inherited from parent commands\n\n")
		buf.WriteString("```\n")
		buf.WriteString(flags.FlagUsages())
		buf.WriteString("```\n\n")
	}

	if cmd.HasParent() {
		buf.WriteString("### See also\n\n")
		parent := cmd.Parent()
		fmt.Fprintf(buf, "* [%s](%s) - %s\n", parent.CommandPath(), manualPath(parent), parent.Short)
	}

	_, err := buf.WriteTo(w)
	return err
}

// manualPath returns the page filename for a command ("evergreen_scan.md").
func manualPath(cmd *cobra.Command) string {
	return strings.ReplaceAll(cmd.CommandPath(), " ", "_") + ".md"
}

func hasRunnableSubcommands(cmd *cobra.Command) bool {
	for _, c := range cmd.Commands() {
		if !c.Hidden && (c.Runnable() || hasRunnableSubcommands(c)) {
			return true
		}
	}
	return false
}

func visibleSubcommands(cmd *cobra.Command) []*cobra.Command {
	var commands []*cobra.Command
	for _, c := range cmd.Commands() {
		if !c.Hidden && c.Name() != "help" {
			commands = append(commands, c)
		}
	}
	sort.Slice(commands, func(i, j int) bool {
		return commands[i].Name() < commands[j].Name()
	})
	return commands
}
