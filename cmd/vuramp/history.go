package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/torosent/vuramp/internal/history"
)

const defaultHistoryDB = "vuramp-history.db"

func newHistoryCmd(stdout io.Writer) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded run summaries",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "history-db", defaultHistoryDB, "History database written by 'run --history-db'")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			store, err := history.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.List(limit)
			if err != nil {
				return err
			}
			return writeEntries(stdout, entries)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")

	var format string
	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the summary document of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := history.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			doc, err := store.Get(args[0])
			if err != nil {
				if errors.Is(err, history.ErrNotFound) {
					return fmt.Errorf("no run %s in %s", args[0], dbPath)
				}
				return err
			}
			switch format {
			case "json":
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			case "yaml":
				enc := yaml.NewEncoder(stdout)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(doc)
			default:
				return withCode(exitConfigError, fmt.Errorf("unknown format %q (json or yaml)", format))
			}
		},
	}
	show.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: json or yaml")

	cmd.AddCommand(list, show)
	return cmd
}

func writeEntries(w io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tNAME\tSTARTED\tDURATION\tVUS\tREQUESTS\tITERATIONS\tRESULT")
	for _, e := range entries {
		result := "PASS"
		if !e.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			e.RunID, e.Name, e.StartedAt.Local().Format(time.DateTime),
			e.Duration.Round(time.Millisecond), e.VUsMax, e.Requests, e.Iterations, result)
	}
	return tw.Flush()
}
