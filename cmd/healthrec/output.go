package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"healthrec/internal/api"
	"healthrec/internal/format"
	"healthrec/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeStructured(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

const recordTableHeader = "ID\tDATE\tTIME\tNAME\tAGE\tGENDER\tSIZE"

func writeRecordTable(w io.Writer, records []models.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, recordTableHeader)
	for _, record := range records {
		fmt.Fprintln(tw, formatRecordRow(record))
	}
	return tw.Flush()
}

func formatRecordRow(record models.Record) string {
	return strings.Join([]string{
		fmt.Sprintf("%d", record.ID),
		record.Date,
		record.Time,
		record.Name,
		fmt.Sprintf("%d", record.Age),
		string(record.Gender),
		humanize.IBytes(uint64(max(record.SizeBytes, 0))),
	}, "\t")
}

func writeRecordDetail(record models.Record) error {
	lines := []string{
		fmt.Sprintf("id: %d", record.ID),
		fmt.Sprintf("date: %s", record.Date),
		fmt.Sprintf("time: %s", record.Time),
		fmt.Sprintf("name: %s", record.Name),
		fmt.Sprintf("age: %d", record.Age),
		fmt.Sprintf("gender: %s", record.Gender),
		fmt.Sprintf("blob_id: %s", record.BlobID),
		fmt.Sprintf("size: %s", humanize.IBytes(uint64(max(record.SizeBytes, 0)))),
	}
	if record.Digest != "" {
		lines = append(lines, fmt.Sprintf("digest: %s", record.Digest))
	}
	if at, err := record.RegisteredAt(); err == nil {
		lines = append(lines, fmt.Sprintf("registered: %s", humanize.Time(at)))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeSaveResult(resp api.SaveEditsResponse) error {
	for _, id := range resp.Updated {
		if err := writePlain("saved %d\n", id); err != nil {
			return err
		}
	}
	for _, failure := range resp.Failed {
		if err := writePlain("failed %d: %s\n", failure.ID, failure.Error); err != nil {
			return err
		}
	}
	return nil
}

func writeSweepReport(report models.SweepReport) error {
	mode := "applied"
	if report.DryRun {
		mode = "dry run"
	}
	_ = writePlain("sweep (%s): %d records, %d blobs checked\n", mode, report.RecordsChecked, report.BlobsChecked)
	_ = writePlain("orphan blobs: %d\n", report.OrphanBlobs)
	_ = writePlain("missing blobs: %d\n", report.MissingBlobs)
	_ = writePlain("digest mismatches: %d\n", report.DigestMismatch)
	if !report.DryRun {
		_ = writePlain("deleted: %d (%s reclaimed), failed: %d\n",
			report.DeletedCount, humanize.IBytes(uint64(max(report.ReclaimedBytes, 0))), report.FailedCount)
	}
	for _, issue := range report.Issues {
		line := fmt.Sprintf("  %s blob=%s", issue.Type, issue.BlobID)
		if issue.RecordID != 0 {
			line += fmt.Sprintf(" record=%d", issue.RecordID)
		}
		if issue.Deleted {
			line += " deleted"
		}
		if issue.Detail != "" {
			line += " (" + issue.Detail + ")"
		}
		if err := writePlain("%s\n", line); err != nil {
			return err
		}
	}
	return nil
}
