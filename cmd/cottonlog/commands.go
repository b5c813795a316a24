package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/cottonlog/internal/core/domain"
	"github.com/kirillkom/cottonlog/internal/core/ports"
	"github.com/kirillkom/cottonlog/internal/infrastructure/tabular/xlsx"
)

func (c *cli) sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, show and delete sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := c.app.Workflow.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tMODE\tBALES\tCREATED")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.Name, s.Mode, len(s.Bales), s.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its next candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, candidate, err := c.app.Workflow.ResumeSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printBales(cmd, session)
			if candidate != nil {
				fmt.Fprintf(out(cmd), "next candidate: %s\n", candidate.ID)
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Workflow.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, remove)
	return cmd
}

func (c *cli) manualCmd() *cobra.Command {
	var setup ports.ManualSetup
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Start a purely sequential session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, candidate, err := c.app.Workflow.CreateManualSession(cmd.Context(), setup)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "created %s (%s), next candidate %s\n", session.ID, session.Name, candidate.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&setup.Lot, "lot", "", "starting mill lot")
	cmd.Flags().IntVar(&setup.StartNumber, "start", 1, "starting mill bale number")
	_ = cmd.MarkFlagRequired("lot")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	var setup ports.InventorySetup
	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Create an inventory session from a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			table, err := c.app.Importer.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			setup.Table = table
			session, err := c.app.Workflow.CreateInventorySession(cmd.Context(), setup)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "created %s (%s) with %d bales\n", session.ID, session.Name, len(session.Bales))
			return nil
		},
	}
	cmd.Flags().StringVar(&setup.IDColumn, "id-column", "", "column holding the bale identifier")
	cmd.Flags().StringSliceVar(&setup.QualityColumns, "quality", nil, "up to two quality columns")
	cmd.Flags().StringVar(&setup.Lot, "lot", "", "starting mill lot")
	cmd.Flags().IntVar(&setup.StartNumber, "start", 1, "starting mill bale number")
	_ = cmd.MarkFlagRequired("id-column")
	_ = cmd.MarkFlagRequired("lot")
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <session-id> <query>",
		Short: "Fuzzy search bale ids of an inventory session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _, err := c.app.Workflow.ResumeSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = c.app.Config.MatchLimit
			}
			results := c.app.Workflow.Search(session, args[1])
			for i, b := range results {
				if limit > 0 && i == limit {
					fmt.Fprintf(out(cmd), "... %d more\n", len(results)-limit)
					break
				}
				fmt.Fprintf(out(cmd), "%s\t%s\n", b.ID, b.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results to print (default MATCH_LIMIT, 0 prints all)")
	return cmd
}

func (c *cli) reportCmd() *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Print progress and value distributions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := c.app.Reports.Summary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := out(cmd)
			fmt.Fprintf(w, "completed %d/%d (%d%%), total weight %.2f, duplicates %d\n",
				summary.Completed, summary.Total, summary.Progress, summary.TotalWeight, summary.Duplicates)
			fmt.Fprintf(w, "next: %s\n", domain.CandidateID(summary.NextLot, summary.NextNumber))

			for _, field := range fields {
				entries, err := c.app.Reports.Frequencies(cmd.Context(), args[0], field)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "\n%s\n", field)
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%d\n", e.Value, e.Count)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&fields, "field", nil, "fields to tabulate (id, value1, value2 or a mapped column)")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write the session as a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _, err := c.app.Workflow.ResumeSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path := filepath.Join(dir, xlsx.FileName(session.Name))
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := c.app.Exporter.Export(cmd.Context(), f, session); err != nil {
				_ = f.Close()
				_ = os.Remove(path)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	return cmd
}

func (c *cli) ledgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <session-id>",
		Short: "List completions recorded by the worker (postgres backend only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.app.Ledger == nil {
				return errors.New("completion ledger requires STORE_BACKEND=postgres")
			}
			events, err := c.app.Ledger.ListBySession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LOT\tNUMBER\tBALE\tWEIGHT\tCOMPLETED")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%.2f\t%s\n", e.MillLot, e.MillBaleNumber, e.BaleID, e.Weight, e.CompletedAt)
			}
			return tw.Flush()
		},
	}
}

func printBales(cmd *cobra.Command, session *domain.Session) {
	w := out(cmd)
	fmt.Fprintf(w, "%s (%s, %s)\n", session.Name, session.ID, session.Mode)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tLOT\tNUMBER\tWEIGHT")
	for _, b := range session.Bales {
		weight := "-"
		if b.Weight != nil {
			weight = fmt.Sprintf("%.2f", *b.Weight)
		}
		lot, number := "-", "-"
		if b.IsCompleted() {
			lot, number = b.MillLot, fmt.Sprint(b.MillBaleNumber)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Status, lot, number, weight)
	}
	_ = tw.Flush()
}
