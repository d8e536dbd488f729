package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bulk-email-sender/ledger"
	"bulk-email-sender/models"
)

// ProgressFunc receives an update after each recipient of a batch.
type ProgressFunc func(models.ProgressUpdate)

// Orchestrator drives sends against a ledger and applies their outcomes.
// It never sends concurrently; each transport call blocks until it returns.
type Orchestrator struct {
	sender Sender
	logger *slog.Logger
	now    func() time.Time
}

func NewOrchestrator(sender Sender, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{sender: sender, logger: logger, now: time.Now}
}

// SendOne attempts row and marks it sent on success.
func (o *Orchestrator) SendOne(ctx context.Context, l *ledger.Ledger, row ledger.Row) models.SendResult {
	res := o.attempt(context.WithoutCancel(ctx), row)
	if res.OK() {
		l.MarkSent(row.Email)
	}
	return res
}

// SendPending sends to every row pending at call time, in order. A failure is
// recorded and the loop moves on; the ledger is only touched on success.
// The pending set is captured once and not re-checked between sends.
func (o *Orchestrator) SendPending(ctx context.Context, l *ledger.Ledger, progress ProgressFunc) models.BatchReport {
	ctx = context.WithoutCancel(ctx)
	pending := l.Pending()

	report := models.BatchReport{
		Total:   len(pending),
		Results: make([]models.SendResult, 0, len(pending)),
	}

	for i, row := range pending {
		res := o.attempt(ctx, row)
		if res.OK() {
			l.MarkSent(row.Email)
			report.Sent++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)

		if progress != nil {
			progress(models.ProgressUpdate{
				Current:    i + 1,
				Total:      report.Total,
				Sent:       report.Sent,
				Failed:     report.Failed,
				Percentage: float64(i+1) / float64(report.Total) * 100,
				Email:      row.Email,
				Status:     res.Status,
				Error:      res.Error,
			})
		}
	}

	o.logger.Info("batch finished", "total", report.Total, "sent", report.Sent, "failed", report.Failed)
	return report
}

func (o *Orchestrator) attempt(ctx context.Context, row ledger.Row) (res models.SendResult) {
	res = models.SendResult{
		Name:        row.Name,
		Email:       row.Email,
		AttemptedAt: o.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			res.Status = models.ResultFailed
			res.Error = fmt.Sprintf("sender panic: %v", r)
			o.logger.Error("send failed", "email", row.Email, "error", res.Error)
		}
	}()

	if err := o.sender.Send(ctx, row); err != nil {
		res.Status = models.ResultFailed
		res.Error = err.Error()
		o.logger.Warn("send failed", "email", row.Email, "error", err)
		return res
	}

	res.Status = models.ResultSent
	return res
}
