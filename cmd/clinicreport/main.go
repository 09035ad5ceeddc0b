package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"clinicreport/internal/config"
	"clinicreport/internal/connectors"
	"clinicreport/internal/listener"
	"clinicreport/internal/logging"
	"clinicreport/internal/pipeline"
	"clinicreport/internal/reconcile"
	"clinicreport/internal/report"
	"clinicreport/internal/sources"
	"clinicreport/internal/storage"
	"clinicreport/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := logging.New(cfg.AppEnv, cfg.LogLevel)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	// Commands that only touch files do not need the database.
	switch cmd {
	case "leads:categorize":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "leads xlsx")
		output := fs.String("output", "", "output xlsx path")
		_ = fs.Parse(args)
		if *input == "" || *output == "" {
			must(fmt.Errorf("--input and --output are required"))
		}
		n, err := pipeline.CategorizeFile(*input, *output, util.Location(cfg.Timezone))
		must(err)
		fmt.Printf("categorized %d leads to %s\n", n, *output)
		return
	case "report:format":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "report xlsx")
		output := fs.String("output", "", "output xlsx path")
		preset := fs.String("preset", report.PresetLeadsByUser, "leads_by_user|leads_by_store|follow_up")
		at := fs.String("at", "", "time of day HH:MM for thresholds (default now)")
		_ = fs.Parse(args)
		if *input == "" || *output == "" {
			must(fmt.Errorf("--input and --output are required"))
		}
		now, err := clockTime(*at, util.Location(cfg.Timezone))
		must(err)
		opts, err := report.Preset(*preset, now)
		must(err)
		table, err := sources.ReadXLSXFile(*input)
		must(err)
		styled := report.Format(table, opts)
		must(report.WriteStyledXLSX(styled, *output))
		fmt.Printf("formatted %d rows preset=%s threshold=%d output=%s\n", len(styled.Rows), *preset, opts.Threshold, *output)
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	switch cmd {
	case "marketing:run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		leads := fs.String("leads", "", "leads xlsx")
		appts := fs.String("appointments", "", "appointments xlsx")
		sales := fs.String("sales", "", "sales xlsx")
		output := fs.String("output", "", "output xlsx path")
		push := fs.Bool("push", false, "push outcomes to the backend")
		_ = fs.Parse(args)
		if *leads == "" || *appts == "" || *sales == "" {
			must(fmt.Errorf("--leads --appointments --sales are required"))
		}
		runner := pipeline.NewRunner(db, cfg, logger)
		res, err := runner.RunFiles(ctx, pipeline.Files{Leads: *leads, Appointments: *appts, Sales: *sales})
		must(err)
		finishRun(ctx, runner, res, *output, *push)
	case "marketing:api":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		start := fs.String("start", "", "YYYY-MM-DD")
		end := fs.String("end", "", "YYYY-MM-DD")
		output := fs.String("output", "", "output xlsx path")
		push := fs.Bool("push", false, "push outcomes to the backend")
		_ = fs.Parse(args)
		if *start == "" || *end == "" {
			must(fmt.Errorf("--start and --end are required"))
		}
		must(cfg.Require("CRM_API_TOKEN", cfg.CRMAPIToken))
		runner := pipeline.NewRunner(db, cfg, logger)
		res, err := runner.RunAPI(ctx, sources.NewClient(cfg), *start, *end)
		must(err)
		finishRun(ctx, runner, res, *output, *push)
	case "export:push":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		runID := fs.String("run", "", "run id")
		force := fs.Bool("force", false, "push again even if already pushed")
		_ = fs.Parse(args)
		if strings.TrimSpace(*runID) == "" {
			must(fmt.Errorf("--run is required"))
		}
		runner := pipeline.NewRunner(db, cfg, logger)
		pushed, err := runner.Push(ctx, *runID, *force)
		must(err)
		printPush(pushed.Saved, pushed.Failed(), pushed.Errors)
	case "runs:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs")
		_ = fs.Parse(args)
		runs, err := db.ListRuns(*limit)
		must(err)
		for _, r := range runs {
			st, err := db.GetExportState(r.ID)
			must(err)
			pushed := st != nil && st.Completed
			fmt.Printf("%s  %s  source=%s leads=%d pushed=%t\n", r.ID, r.CreatedAt, r.Source, r.Counts["leads"], pushed)
		}
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		subject := fs.String("subject", cfg.MailSubjectFilter, "subject filter")
		days := fs.Int("days", cfg.MailSinceDays, "only mails of the last N days (0 = all)")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(args)
		conn, err := listener.MakeConnector(ctx, cfg, *provider)
		must(err)
		q := connectors.Query{Label: *label, Subject: *subject, Max: *max}
		if *days > 0 {
			q.Since = time.Now().AddDate(0, 0, -*days)
		}
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn, logger)
		result, err := fetch.FetchAndStore(ctx, q)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d skipped=%d\n", *provider, result.Fetched, result.Stored, result.Skipped)
	case "mail:ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		batch := fs.Int("batch", cfg.MailListenerIngestBatch, "batch size")
		run := fs.Bool("run", false, "run the report when a complete set is available")
		output := fs.String("output", "", "output xlsx path for --run")
		_ = fs.Parse(args)
		ingest := pipeline.NewIngestService(db, cfg, logger)
		mails, files, err := ingest.IngestPending(*batch)
		must(err)
		fmt.Printf("ingested mails=%d report_files=%d\n", mails, files)
		if *run {
			runner := pipeline.NewRunner(db, cfg, logger)
			res, err := runner.RunInbox(ctx)
			must(err)
			finishRun(ctx, runner, res, *output, false)
		}
	case "mail:listen":
		s := listener.NewService(db, cfg, logger)
		must(s.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func finishRun(ctx context.Context, runner *pipeline.Runner, res pipeline.Result, output string, push bool) {
	fmt.Printf("run %s leads=%d\n", res.RunID, len(res.Outcomes))
	printSummary(res.Summary)
	if output != "" {
		must(runner.Export(res, output))
		abs, _ := filepath.Abs(output)
		fmt.Printf("exported %d rows to %s\n", len(res.Outcomes), abs)
	}
	if push {
		pushed, err := runner.Push(ctx, res.RunID, false)
		must(err)
		printPush(pushed.Saved, pushed.Failed(), pushed.Errors)
	}
}

func printSummary(s reconcile.Summary) {
	for _, row := range s.Rows() {
		fmt.Printf("  %-40s %s\n", row.Indicator, row.Value)
	}
}

func printPush(saved, failed int, errs []string) {
	fmt.Printf("push done saved=%d failed=%d\n", saved, failed)
	for _, e := range errs {
		fmt.Printf("  %s\n", e)
	}
}

// clockTime returns today at HH:MM in loc, or now when s is empty.
func clockTime(s string, loc *time.Location) (time.Time, error) {
	now := time.Now().In(loc)
	if s == "" {
		return now, nil
	}
	t, err := time.ParseInLocation("15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be HH:MM: %w", err)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

func usage() {
	fmt.Println("usage: clinicreport <command>")
	fmt.Println("commands:")
	fmt.Println("  marketing:run --leads=... --appointments=... --sales=... [--output=...xlsx] [--push]")
	fmt.Println("  marketing:api --start=YYYY-MM-DD --end=YYYY-MM-DD [--output=...xlsx] [--push]")
	fmt.Println("  leads:categorize --input=... --output=...xlsx")
	fmt.Println("  export:push --run=<id> [--force]")
	fmt.Println("  runs:list [--limit=20]")
	fmt.Println("  report:format --input=... --output=...xlsx --preset=leads_by_user|leads_by_store|follow_up [--at=HH:MM]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:ingest [--batch=20] [--run] [--output=...xlsx]")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
