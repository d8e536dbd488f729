package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"bulk-email-sender/ledger"
	"bulk-email-sender/models"
	"bulk-email-sender/services"
)

type batchOptions struct {
	CSVPath    string
	OutPath    string
	ReportPath string
	DryRun     bool
}

// runBatch sends to every pending recipient of opts.CSVPath and writes the
// updated table back. In dry-run mode each message is only rendered.
func runBatch(ctx context.Context, sender services.Sender, renderer services.Renderer, opts batchOptions, log *slog.Logger) (models.BatchReport, error) {
	f, err := os.Open(opts.CSVPath)
	if err != nil {
		return models.BatchReport{}, err
	}
	l, err := ledger.Load(f)
	f.Close()
	if err != nil {
		return models.BatchReport{}, fmt.Errorf("load %s: %w", opts.CSVPath, err)
	}

	total, _, pending := l.Counts()
	log.Info("recipients loaded", "file", opts.CSVPath, "rows", total, "pending", pending)

	if opts.DryRun {
		for _, row := range l.Pending() {
			if _, err := renderer.Render(row.Name, row.Email); err != nil {
				return models.BatchReport{}, fmt.Errorf("render message for %s: %w", row.Email, err)
			}
			log.Info("would send", "name", row.Name, "email", row.Email)
		}
		return models.BatchReport{Total: pending}, nil
	}

	o := services.NewOrchestrator(sender, log)
	report := o.SendPending(ctx, l, func(u models.ProgressUpdate) {
		log.Info("progress", "current", u.Current, "total", u.Total, "email", u.Email, "status", u.Status)
	})

	out := opts.OutPath
	if out == "" {
		out = opts.CSVPath
	}
	if err := writeFileAtomic(out, l.Export); err != nil {
		return report, fmt.Errorf("write %s: %w", out, err)
	}

	if opts.ReportPath != "" {
		err := writeFileAtomic(opts.ReportPath, func(w io.Writer) error {
			return services.WriteReport(w, report.Results)
		})
		if err != nil {
			return report, fmt.Errorf("write report %s: %w", opts.ReportPath, err)
		}
	}
	return report, nil
}

// writeFileAtomic replaces path with the output of write. An existing file
// keeps its permissions.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
