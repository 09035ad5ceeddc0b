package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clinicreport/internal"
	"clinicreport/internal/category"
	"clinicreport/internal/config"
	"clinicreport/internal/export"
	"clinicreport/internal/logging"
	"clinicreport/internal/reconcile"
	"clinicreport/internal/sources"
	"clinicreport/internal/storage"
	"clinicreport/internal/util"
)

// ErrIncompleteInbox is returned by RunInbox when one of the three report
// kinds has no unused file yet.
var ErrIncompleteInbox = errors.New("inbox has no complete report set")

// Runner loads the three report tables, reconciles them and records the run.
type Runner struct {
	db     *storage.DB
	cfg    config.Config
	loc    *time.Location
	rules  reconcile.Rules
	pusher *export.Pusher
	logger *slog.Logger
}

func NewRunner(db *storage.DB, cfg config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		db:     db,
		cfg:    cfg,
		loc:    util.Location(cfg.Timezone),
		rules:  reconcile.RulesFromConfig(cfg),
		pusher: export.NewPusher(cfg, logger),
		logger: logger,
	}
}

type Inputs struct {
	Leads        sources.Table
	Appointments sources.Table
	Sales        sources.Table
	Source       string
	Refs         map[string]string
}

type Result struct {
	RunID    string
	Outcomes []internal.LeadOutcome
	Summary  reconcile.Summary
	Counts   map[string]int
}

// Run reconciles one set of tables. Store exclusions apply to all three
// inputs, the marketing source filter to leads only.
func (r *Runner) Run(ctx context.Context, in Inputs) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()

	leads, err := sources.LoadLeads(in.Leads, r.loc)
	if err != nil {
		return Result{}, err
	}
	appts, err := sources.LoadAppointments(in.Appointments, r.loc)
	if err != nil {
		return Result{}, err
	}
	sales, err := sources.LoadSales(in.Sales, r.loc)
	if err != nil {
		return Result{}, err
	}
	loaded := len(leads)

	leads = sources.KeepLeadSources(sources.DropLeadStores(leads, r.cfg.StoresToRemove), r.cfg.MarketingSources)
	appts = sources.DropAppointmentStores(appts, r.cfg.StoresToRemove)
	sales = sources.DropSaleStores(sales, r.cfg.StoresToRemove)

	leads = category.ProcessLeads(leads)
	outcomes := reconcile.Reconcile(leads, appts, sales, r.rules)
	summary := reconcile.Summarize(outcomes)

	res := Result{
		RunID:    uuid.NewString(),
		Outcomes: outcomes,
		Summary:  summary,
		Counts: map[string]int{
			"leadsLoaded":  loaded,
			"leads":        len(leads),
			"appointments": len(appts),
			"sales":        len(sales),
			"notFound":     summary.NotFound,
			"attended":     summary.Attended,
			"purchased":    summary.Purchased,
		},
	}

	if r.db != nil {
		run := internal.RunRow{ID: res.RunID, Source: in.Source, Counts: res.Counts, Inputs: in.Refs}
		if err := r.db.InsertRun(run, outcomes); err != nil {
			return res, fmt.Errorf("store run: %w", err)
		}
	}

	r.logger.Info("run finished",
		"run_id", res.RunID,
		"source", in.Source,
		"leads", len(leads),
		"not_found", summary.NotFound,
		"purchased", summary.Purchased,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

type Files struct {
	Leads        string
	Appointments string
	Sales        string
}

func (r *Runner) RunFiles(ctx context.Context, files Files) (Result, error) {
	leads, err := sources.ReadXLSXFile(files.Leads)
	if err != nil {
		return Result{}, err
	}
	appts, err := sources.ReadXLSXFile(files.Appointments)
	if err != nil {
		return Result{}, err
	}
	sales, err := sources.ReadXLSXFile(files.Sales)
	if err != nil {
		return Result{}, err
	}
	return r.Run(ctx, Inputs{
		Leads:        leads,
		Appointments: appts,
		Sales:        sales,
		Source:       internal.SourceFile,
		Refs: map[string]string{
			internal.KindLeads:        files.Leads,
			internal.KindAppointments: files.Appointments,
			internal.KindSales:        files.Sales,
		},
	})
}

// RunAPI fetches the three reports for [start, end] from the CRM API.
func (r *Runner) RunAPI(ctx context.Context, client *sources.Client, start, end string) (Result, error) {
	leads, appts, sales, err := client.FetchTables(ctx, start, end)
	if err != nil {
		return Result{}, fmt.Errorf("crm api: %w", err)
	}
	return r.Run(ctx, Inputs{
		Leads:        leads,
		Appointments: appts,
		Sales:        sales,
		Source:       internal.SourceAPI,
		Refs:         map[string]string{"start": start, "end": end},
	})
}

// RunInbox runs the latest unused ingested file of each kind and marks the
// files as consumed by the run.
func (r *Runner) RunInbox(ctx context.Context) (Result, error) {
	latest, err := r.db.LatestUnusedReportFiles()
	if err != nil {
		return Result{}, err
	}
	kinds := []string{internal.KindLeads, internal.KindAppointments, internal.KindSales}
	missing := []string{}
	for _, k := range kinds {
		if _, ok := latest[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: missing %v", ErrIncompleteInbox, missing)
	}

	tables := map[string]sources.Table{}
	refs := map[string]string{}
	ids := make([]int, 0, len(kinds))
	for _, k := range kinds {
		f := latest[k]
		t, err := sources.ReadXLSXFile(f.Path)
		if err != nil {
			return Result{}, err
		}
		tables[k] = t
		refs[k] = f.Path
		ids = append(ids, f.ID)
	}

	res, err := r.Run(ctx, Inputs{
		Leads:        tables[internal.KindLeads],
		Appointments: tables[internal.KindAppointments],
		Sales:        tables[internal.KindSales],
		Source:       "inbox",
		Refs:         refs,
	})
	if err != nil {
		return res, err
	}
	if err := r.db.MarkReportFilesUsed(res.RunID, ids); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) Export(res Result, outputPath string) error {
	return export.WriteOutcomesXLSX(res.Outcomes, res.Summary, outputPath)
}

// Push sends a stored run to the backend. A run already pushed is refused
// unless force resets its save state.
func (r *Runner) Push(ctx context.Context, runID string, force bool) (export.PushResult, error) {
	row, err := r.db.GetExportState(runID)
	if err != nil {
		return export.PushResult{}, err
	}
	if row == nil {
		return export.PushResult{}, fmt.Errorf("run %s not found", runID)
	}
	outcomes, err := r.db.GetOutcomes(runID)
	if err != nil {
		return export.PushResult{}, err
	}

	state := export.SaveState{Submitted: row.Submitted, Completed: row.Completed, Error: row.Error}
	if force {
		state.Reset()
	}

	res, pushErr := r.pusher.Push(ctx, outcomes, &state)
	if errors.Is(pushErr, export.ErrAlreadyPushed) {
		return res, pushErr
	}

	saveErr := r.db.SaveExportState(internal.ExportStateRow{
		RunID:     runID,
		Submitted: state.Submitted,
		Completed: state.Completed,
		Error:     state.Error,
		Saved:     res.Saved,
		Failed:    res.Failed(),
	})
	if pushErr != nil {
		return res, pushErr
	}
	return res, saveErr
}

var categorizedHeaders = []string{
	"ID do lead", "Nome do lead", "Email do lead", "Telefone do lead", "Unidade",
	"Fonte", "Content", "Mensagem", "Dia da entrada", "Categoria",
}

// CategorizeFile labels every lead of an xlsx export and writes the result.
func CategorizeFile(inputPath, outputPath string, loc *time.Location) (int, error) {
	t, err := sources.ReadXLSXFile(inputPath)
	if err != nil {
		return 0, err
	}
	leads, err := sources.LoadLeads(t, loc)
	if err != nil {
		return 0, err
	}
	leads = category.ProcessLeads(leads)

	out := sources.Table{Name: "Leads", Headers: categorizedHeaders}
	for _, l := range leads {
		entry := ""
		if l.EntryAt != nil {
			entry = l.EntryAt.Format("02/01/2006 15:04")
		}
		out.Rows = append(out.Rows, []string{
			l.ID, l.Name, l.Email, l.Phone, l.Store,
			l.Source, l.UTMContent, l.Message, entry, l.Category,
		})
	}
	if err := sources.WriteXLSX(out, outputPath); err != nil {
		return 0, err
	}
	return len(leads), nil
}
