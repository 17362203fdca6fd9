package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"CovidSentinel/internal/calculator"
	"CovidSentinel/internal/integrity"
	"CovidSentinel/internal/model"
	"CovidSentinel/internal/recorder"
)

func verifyCmd() *cobra.Command {
	var today string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the record store for missing days",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if today == "" {
				today = model.FormatDate(time.Now())
			} else if _, err := model.ParseDate(today); err != nil {
				return err
			}
			svc := newService(cfg, recorder.NewNoopRecorder())
			records, err := svc.Records.ReadAll()
			if err != nil {
				return err
			}
			if integrity.IsStoreValid(records, cfg.Excluded(), today) {
				fmt.Printf("store valid: %d records, newest %s\n", len(records), records[0].Date)
				return nil
			}
			return fmt.Errorf("store invalid: first missing day %s", integrity.FirstGap(records, cfg.Excluded(), today))
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "date to verify against (YYYY-MM-DD), defaults to the current date")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [date|latest]",
		Short: "Print one stored record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			records, err := newService(cfg, recorder.NewNoopRecorder()).Records.ReadAll()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return errors.New("record store is empty")
			}
			idx := 0
			if len(args) == 1 && args[0] != "latest" {
				idx = -1
				for i, r := range records {
					if r.Date == args[0] {
						idx = i
						break
					}
				}
				if idx < 0 {
					return fmt.Errorf("no record for %s", args[0])
				}
			}
			renderRecord(records[idx])
			return nil
		},
	}
}

func renderRecord(rec model.DailyRecord) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("%s (day %d)", rec.Date, rec.Day)
	tbl.AppendHeader(table.Row{"", model.Cases, model.Deaths})

	c, d := rec.Cases, rec.Deaths
	tbl.AppendRow(table.Row{"New", c.New, d.New})
	tbl.AppendRow(table.Row{"Change", c.Change, d.Change})
	tbl.AppendRow(table.Row{"Corrections", c.Corrections, d.Corrections})
	tbl.AppendRow(table.Row{"Total", c.Total, d.Total})
	tbl.AppendSeparator()
	for _, w := range calculator.Windows {
		ca, da := c.RollingAverages.Window(w), d.RollingAverages.Window(w)
		tbl.AppendRow(table.Row{fmt.Sprintf("RA(%d) average", w), ca.Average, da.Average})
		tbl.AppendRow(table.Row{fmt.Sprintf("RA(%d) change", w), ca.Change, da.Change})
	}
	tbl.AppendFooter(table.Row{"Fatality rate", rec.CaseFatality.Rate, rec.CaseFatality.Change})
	tbl.Render()
}

func peaksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peaks",
		Short: "Print the stored rolling average peaks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			state, err := newService(cfg, recorder.NewNoopRecorder()).Peaks.Load()
			if err != nil {
				return err
			}

			tbl := table.NewWriter()
			tbl.SetOutputMirror(os.Stdout)
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"Metric", "Kind", "Date", "RA(7)"})
			for _, m := range model.TrackedMetrics {
				for _, k := range []model.PeakKind{model.PeakLocal, model.PeakGlobal} {
					p := state[m].Get(k)
					date := "-"
					if p.IsSet() {
						date = p.Date
					}
					tbl.AppendRow(table.Row{m, k, date, p.Value})
				}
			}
			tbl.Render()
			return nil
		},
	}
}
