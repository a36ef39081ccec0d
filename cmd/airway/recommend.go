package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/airway/internal/classify"
	"github.com/kingrea/airway/internal/recommend"
	"github.com/kingrea/airway/internal/record"
)

func recommendCmd() *cobra.Command {
	var (
		recordPath string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank add-on biologic therapies for a patient record file",
		Example: `  airway recommend --record patient.yaml
  airway recommend --record patient.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readRecord(recordPath)
			if err != nil {
				return err
			}
			eligible := recommend.Eligible(rec)
			recs := recommend.Evaluate(rec, eligible)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rec, eligible, recs)
			}
			writeTable(cmd.OutOrStdout(), rec, eligible, recs)
			return nil
		},
	}
	cmd.Flags().StringVar(&recordPath, "record", "", "YAML or JSON patient record")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	_ = cmd.MarkFlagRequired("record")
	return cmd
}

// readRecord loads a record file. JSON is valid YAML, so one decoder serves
// both.
func readRecord(path string) (record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return record.Record{}, fmt.Errorf("read record: %w", err)
	}
	var rec record.Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return record.Record{}, fmt.Errorf("parse record %s: %w", path, err)
	}
	return rec, nil
}

func writeJSON(w io.Writer, rec record.Record, eligible bool, recs []recommend.Recommendation) error {
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"eligible":        eligible,
		"phenotype":       classify.PhenotypeOf(rec),
		"recommendations": recs,
	})
}

func writeTable(w io.Writer, rec record.Record, eligible bool, recs []recommend.Recommendation) {
	phenotype := classify.PhenotypeOf(rec)
	fmt.Fprintf(w, "Phenotype: %s", phenotype.Phenotype)
	if len(phenotype.Drivers) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(phenotype.Drivers, ", "))
	}
	fmt.Fprintln(w)
	if !eligible {
		fmt.Fprintln(w, "Not eligible for add-on biologic therapy: needs step 4-5 or high-dose ICS, with poor control or frequent exacerbations.")
		return
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "No candidate qualifies on this record.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCANDIDATE\tSCORE\tSTRENGTH\tREASON")
	for i, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", i+1, r.Name, r.Score, r.Strength, r.Reason)
	}
	_ = tw.Flush()
}
