package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or save the effective settings",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the settings after file and environment overrides",
	RunE:  runShowConfig,
}

var saveConfigCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Write the effective settings to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSaveConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(showConfigCmd, saveConfigCmd)
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func runSaveConfig(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if err := s.Save(args[0]); err != nil {
		return err
	}
	fmt.Printf("Settings saved to %s\n", args[0])
	return nil
}
