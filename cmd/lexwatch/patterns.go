package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexwatch/lexwatch/internal/correlation"
)

func patternsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Print the effective pattern library as YAML",
		Long: `Print the built-in correlation patterns, plus those from --file, in the
YAML layout accepted by PATTERNS_FILE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns, err := effectivePatterns(file)
			if err != nil {
				return err
			}
			out, err := correlation.MarshalPatterns(patterns)
			if err != nil {
				return fmt.Errorf("encode patterns: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Additional pattern file to merge")
	return cmd
}

// effectivePatterns returns the built-in library followed by the patterns
// in file. A file pattern may not reuse a built-in id.
func effectivePatterns(file string) ([]correlation.Pattern, error) {
	patterns := correlation.BuiltinPatterns()
	if file == "" {
		return patterns, nil
	}
	extra, err := correlation.LoadPatternFile(file)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		known[p.ID] = true
	}
	for _, p := range extra {
		if known[p.ID] {
			return nil, fmt.Errorf("%w: %s", correlation.ErrPatternExists, p.ID)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}
