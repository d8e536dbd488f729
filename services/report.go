package services

import (
	"fmt"
	"io"
	"time"

	"bulk-email-sender/models"

	"github.com/gocarina/gocsv"
)

type reportRow struct {
	Name        string `csv:"Name"`
	Email       string `csv:"Email"`
	Outcome     string `csv:"Outcome"`
	Error       string `csv:"Error"`
	AttemptedAt string `csv:"AttemptedAt"`
}

// WriteReport writes one CSV line per send attempt.
func WriteReport(w io.Writer, results []models.SendResult) error {
	rows := make([]*reportRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, &reportRow{
			Name:        r.Name,
			Email:       r.Email,
			Outcome:     r.Status,
			Error:       r.Error,
			AttemptedAt: r.AttemptedAt.UTC().Format(time.RFC3339),
		})
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
