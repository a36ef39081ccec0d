package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/airway/internal/config"
	"github.com/kingrea/airway/internal/steps"
)

func stepsCmd(projectDir *string) *cobra.Command {
	var (
		file     string
		validate bool
	)
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Print the step graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, source, err := resolveCatalog(*projectDir, file)
			if err != nil {
				return err
			}
			if validate {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d steps, graph is valid\n", source, len(catalog.Steps()))
				return nil
			}
			printGraph(cmd.OutOrStdout(), catalog)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Catalog file to read instead of the configured one")
	cmd.Flags().BoolVar(&validate, "validate", false, "Only check the catalog and report")
	return cmd
}

// resolveCatalog picks --file, then catalog.steps from the project config,
// then the embedded graph. Loading validates the graph.
func resolveCatalog(projectDir, file string) (*steps.Catalog, string, error) {
	if file != "" {
		catalog, err := steps.LoadCatalogFile(file)
		return catalog, file, err
	}
	if projectDir != "" {
		cfg, err := config.NewConfig(projectDir)
		if err != nil {
			return nil, "", err
		}
		if path := cfg.StepsCatalogPath(); path != "" {
			catalog, err := steps.LoadCatalogFile(path)
			return catalog, path, err
		}
	}
	return steps.Default(), "embedded", nil
}

func printGraph(w io.Writer, catalog *steps.Catalog) {
	for _, s := range catalog.Steps() {
		fmt.Fprintf(w, "%s [%s, %s] %s\n", s.ID, s.Branch, s.Kind, s.Title)
		if len(s.Requires) > 0 {
			fields := make([]string, len(s.Requires))
			for i, f := range s.Requires {
				fields[i] = string(f)
			}
			fmt.Fprintf(w, "  requires %s (recover: %s)\n", strings.Join(fields, ", "), s.Recover)
		}
		for _, e := range s.Next {
			when := e.When
			if when == "" {
				when = steps.GuardAlways
			}
			fmt.Fprintf(w, "  -> %s when %s\n", e.To, when)
		}
	}
}
