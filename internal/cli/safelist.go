package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"phonecheck/internal/app"
	"phonecheck/internal/safelist"
)

func importSafelistCmd(g *globals) *cobra.Command {
	var vcfPath, jsonPath string

	c := &cobra.Command{
		Use:   "import-safelist",
		Short: "Import trusted numbers from a vCard export or a JSON {number: label} file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (vcfPath == "") == (jsonPath == "") {
				return errors.New("exactly one of --vcf or --json is required")
			}

			var entries []safelist.RawEntry
			var err error
			if vcfPath != "" {
				entries, err = readVCard(vcfPath)
			} else {
				entries, err = readSafelistJSON(jsonPath)
			}
			if err != nil {
				return err
			}

			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Safelist.ImportBulk(ctx, entries)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "imported %d numbers\n", res.Imported)
				for _, s := range res.Skipped {
					fmt.Fprintf(out, "skipped %q\n", s)
				}
				return nil
			})
		},
	}

	c.Flags().StringVar(&vcfPath, "vcf", "", "vCard file (e.g. Contacts.vcf)")
	c.Flags().StringVar(&jsonPath, "json", "", "JSON object mapping numbers to labels")
	return c
}

func readVCard(path string) ([]safelist.RawEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return safelist.ParseVCard(f)
}

func readSafelistJSON(path string) ([]safelist.RawEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	entries := make([]safelist.RawEntry, 0, len(m))
	for number, label := range m {
		entries = append(entries, safelist.RawEntry{Number: number, Label: label})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Number < entries[j].Number })
	return entries, nil
}
