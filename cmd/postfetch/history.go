package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/young1lin/postfetch/internal/models"
	"github.com/young1lin/postfetch/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived fetches, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		archive, err := storage.NewArchive(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer archive.Close()

		records, err := archive.List(historyLimit)
		if err != nil {
			return err
		}
		writeHistory(cmd.OutOrStdout(), records)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an archived fetch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		archive, err := storage.NewArchive(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer archive.Close()

		record, err := archive.Get(args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no archived fetch with id %s", args[0])
		}
		if err != nil {
			return err
		}

		if !record.Succeeded() {
			writeDiagnostic(cmd.ErrOrStderr(), record.Error, record.ErrorKind, record.Detail)
			return errReported
		}
		writeResult(cmd.OutOrStdout(), record.Text, record.Citations)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum entries to list (0 for all)")
}

func writeHistory(w io.Writer, records []models.ArchivedFetch) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No archived fetches.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFETCHED\tPROVIDER\tSTATUS\tURL")
	for _, r := range records {
		status := "ok"
		if !r.Succeeded() {
			status = r.ErrorKind
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.FetchedAt.Local().Format("2006-01-02 15:04:05"),
			r.Provider,
			status,
			r.URL,
		)
	}
	tw.Flush()
}
