package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"arcmigrate/internal/config"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/migration"
	"arcmigrate/internal/report"
	"arcmigrate/internal/workstore"
)

type statusView struct {
	Batch      string       `json:"batch"`
	Mode       string       `json:"mode"`
	CreatedAt  time.Time    `json:"created_at"`
	SoftStop   bool         `json:"soft_stop"`
	Stats      statusStats  `json:"stats"`
	FreeBytes  *uint64      `json:"free_bytes,omitempty"`
	Incomplete []statusLine `json:"incomplete"`
	Quarantine int          `json:"quarantined"`
}

type statusStats struct {
	Total      int            `json:"total"`
	InWork     int            `json:"in_work"`
	Stages     map[string]int `json:"stages"`
	OrigBytes  int64          `json:"orig_bytes"`
	DstBytes   int64          `json:"dst_bytes"`
	SavedBytes int64          `json:"saved_bytes"`
}

type statusLine struct {
	ID     int64  `json:"id"`
	Stage  string `json:"stage"`
	Source string `json:"source"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var batchName string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show progress of the newest (or a named) batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(cfg *config.Config, store *workstore.Store) error {
				view, err := buildStatusView(cmd, cfg, store, strings.TrimSpace(batchName))
				if err != nil {
					return err
				}
				if view == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No batches recorded yet")
					return nil
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				printStatus(cmd, view)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&batchName, "batch", "", "Batch name (YYYY-MM-DD); defaults to the newest batch")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of tables")
	return cmd
}

func buildStatusView(cmd *cobra.Command, cfg *config.Config, store *workstore.Store, name string) (*statusView, error) {
	ctx := cmd.Context()
	batch, err := findBatch(cmd, store, name)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		if name != "" {
			return nil, fmt.Errorf("batch %s does not exist", name)
		}
		return nil, nil
	}

	stop := migration.NewStopFlag(cfg.StopFilePath(), logging.NewNop())
	snapshot, err := report.NewBuilder(cfg, store, stop, logging.NewNop()).Snapshot(ctx, batch.Name)
	if err != nil {
		return nil, err
	}
	quarantined, err := store.ListQuarantine(ctx)
	if err != nil {
		return nil, err
	}

	stats := snapshot.Stats
	view := &statusView{
		Batch:     batch.Name,
		Mode:      batch.Mode,
		CreatedAt: batch.CreatedAt,
		SoftStop:  stop.Requested(),
		Stats: statusStats{
			Total:      stats.Total,
			InWork:     stats.InWork,
			Stages:     make(map[string]int, len(workstore.StageFlags)),
			OrigBytes:  stats.OrigBytes,
			DstBytes:   stats.DstBytes,
			SavedBytes: stats.SavedBytes(),
		},
		Incomplete: make([]statusLine, 0, len(snapshot.Incomplete)),
		Quarantine: len(quarantined),
	}
	for _, flag := range workstore.StageFlags {
		view.Stats.Stages[string(flag)] = stats.Count(flag)
	}
	if snapshot.FreeKnown {
		free := snapshot.FreeBytes
		view.FreeBytes = &free
	}
	for _, line := range snapshot.Incomplete {
		view.Incomplete = append(view.Incomplete, statusLine{ID: line.ItemID, Stage: string(line.Stage), Source: line.SourcePath})
	}
	return view, nil
}

// findBatch returns the named batch, or the newest one when name is empty.
func findBatch(cmd *cobra.Command, store *workstore.Store, name string) (*workstore.Batch, error) {
	if name == "" {
		return store.LatestBatch(cmd.Context())
	}
	batches, err := store.ListBatches(cmd.Context())
	if err != nil {
		return nil, err
	}
	for _, b := range batches {
		if b.Name == name {
			return b, nil
		}
	}
	return nil, nil
}

func printStatus(cmd *cobra.Command, view *statusView) {
	out := cmd.OutOrStdout()
	p := newPrinter(out)

	p.header("Batch " + view.Batch)
	p.line("Mode", levelInfo, view.Mode)
	p.line("Created", levelInfo, view.CreatedAt.Local().Format(time.DateTime))
	if view.SoftStop {
		p.line("Soft stop", levelWarn, "requested (run `arcmigrate resume` to clear)")
	} else {
		p.line("Soft stop", levelOK, "not requested")
	}
	if view.Stats.InWork > 0 {
		p.line("In work", levelWarn, strconv.Itoa(view.Stats.InWork))
	}
	if view.Quarantine > 0 {
		p.line("Quarantined", levelWarn, strconv.Itoa(view.Quarantine))
	}
	if view.FreeBytes != nil {
		p.line("Free space", levelInfo, humanize.IBytes(*view.FreeBytes))
	}
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(workstore.StageFlags))
	for _, flag := range workstore.StageFlags {
		done := view.Stats.Stages[string(flag)]
		rows = append(rows, []string{string(flag), strconv.Itoa(done), strconv.Itoa(view.Stats.Total - done)})
	}
	fmt.Fprintln(out, tableSpec{
		headers: []string{"Stage", "Done", "Pending"},
		aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
		rows:    rows,
		footer:  []string{"Total", strconv.Itoa(view.Stats.Total), ""},
	}.render())

	fmt.Fprintf(out, "Original %s, transcoded %s, saved %s\n",
		humanize.IBytes(nonNegative(view.Stats.OrigBytes)),
		humanize.IBytes(nonNegative(view.Stats.DstBytes)),
		humanize.IBytes(nonNegative(view.Stats.SavedBytes)),
	)

	if len(view.Incomplete) == 0 {
		return
	}
	fmt.Fprintln(out)
	incomplete := make([][]string, 0, len(view.Incomplete))
	for _, line := range view.Incomplete {
		incomplete = append(incomplete, []string{
			strconv.FormatInt(line.ID, 10),
			report.StageLabel(workstore.Flag(line.Stage)),
			line.Source,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Waiting on", "Source"},
		incomplete,
		[]columnAlignment{alignRight, alignLeft, alignLeft},
	))
}

func nonNegative(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}
