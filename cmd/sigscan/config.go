package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// applyConfig presets the flags of cmd from a YAML file. Keys are flag
// names, with underscores accepted for dashes:
//
//	signatures: ./sigs
//	extract: [zip, gzip]
//	context_bytes: 32
//
// Flags given on the command line win. Keys naming no flag of cmd are
// ignored, so one file can serve several subcommands.
func applyConfig(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	for key, value := range values {
		name := strings.ReplaceAll(key, "_", "-")
		flag := cmd.Flags().Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}
		if err := cmd.Flags().Set(name, configValue(value)); err != nil {
			return fmt.Errorf("config %s: %s: %w", path, key, err)
		}
	}
	return nil
}

// configValue renders a YAML value as flag text. Lists become
// comma-separated.
func configValue(v interface{}) string {
	list, ok := v.([]interface{})
	if !ok {
		return fmt.Sprint(v)
	}
	parts := make([]string, len(list))
	for i, item := range list {
		parts[i] = fmt.Sprint(item)
	}
	return strings.Join(parts, ",")
}
