package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/michaellans/Badger/internal/config"
	"github.com/michaellans/Badger/internal/plugin"
	"github.com/michaellans/Badger/internal/plugins/builtin"
)

var (
	initRoot      string
	initOverwrite bool
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Inspect and install plugins",
}

var listPluginsCmd = &cobra.Command{
	Use:       "list [interface|environment|generator]",
	Short:     "List plugins and whether they load",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"interface", "environment", "generator"},
	RunE:      runListPlugins,
}

var showPluginCmd = &cobra.Command{
	Use:   "show <kind> <name>",
	Short: "Show the resolved declaration of a plugin",
	Args:  cobra.ExactArgs(2),
	RunE:  runShowPlugin,
}

var docsPluginCmd = &cobra.Command{
	Use:   "docs <kind> <name>",
	Short: "Print the documentation of a plugin",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocsPlugin,
}

var initPluginsCmd = &cobra.Command{
	Use:   "init",
	Short: "Install the bundled plugins into the plugin root",
	RunE:  runInitPlugins,
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
	pluginsCmd.AddCommand(listPluginsCmd, showPluginCmd, docsPluginCmd, initPluginsCmd)

	initPluginsCmd.Flags().StringVar(&initRoot, "root", "", "Plugin root to install into (default from settings)")
	initPluginsCmd.Flags().BoolVar(&initOverwrite, "overwrite", false, "Replace existing plugin files")
}

func runListPlugins(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	kinds := plugin.Kinds()
	if len(args) == 1 {
		k, err := plugin.ParseKind(args[0])
		if err != nil {
			return err
		}
		kinds = []plugin.Kind{k}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAME\tVERSION\tSTATUS\tDESCRIPTION")
	for _, k := range kinds {
		summaries, err := reg.Summaries(k)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			status := "ok"
			if !s.Available {
				status = "error: " + s.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Kind, s.Name, s.Version, status, s.Description)
		}
		for _, n := range undeclared(k, summaries) {
			fmt.Fprintf(w, "%s\t%s\t-\tcompiled in, no declaration\t\n", k, n)
		}
	}
	return w.Flush()
}

// undeclared returns the compiled-in plugins of kind that have no
// declaration under the plugin root.
func undeclared(kind plugin.Kind, summaries []plugin.Summary) []string {
	declared := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		declared[s.Name] = true
	}
	var names []string
	for _, n := range plugin.Registered(kind) {
		if !declared[n] {
			names = append(names, n)
		}
	}
	return names
}

func runShowPlugin(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	kind, err := plugin.ParseKind(args[0])
	if err != nil {
		return err
	}

	var cfg *plugin.Config
	if kind == plugin.KindGenerator {
		_, cfg, err = reg.Generator(args[1])
	} else {
		_, cfg, err = reg.Get(kind, args[1])
	}
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize plugin config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runDocsPlugin(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	kind, err := plugin.ParseKind(args[0])
	if err != nil {
		return err
	}
	docs, err := reg.Docs(kind, args[1])
	if err != nil {
		return err
	}
	fmt.Println(docs)
	return nil
}

func runInitPlugins(cmd *cobra.Command, args []string) error {
	root := initRoot
	if root == "" {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		root = s.PluginRoot
	}
	if root == "" {
		return fmt.Errorf("no plugin root: pass --root or set %s", config.EnvPluginRoot)
	}

	written, err := builtin.Install(root, initOverwrite)
	if err != nil {
		return err
	}
	for _, f := range written {
		fmt.Println("  " + f)
	}
	fmt.Printf("Installed %d file(s) into %s\n", len(written), root)
	return nil
}
