package main

import (
	"context"
	"errors"
	"net"

	"healthrec/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "blob_missing":
			lines = append(lines, "hint: the record exists but its data file is gone; run: healthrec sweep")
		case "not_found":
			lines = append(lines, "hint: list registered records with: healthrec list")
		case "resource_exhausted":
			lines = append(lines, "hint: a sweep is already running; retry shortly.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify HEALTHREC_API_URL points to a healthrec server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase HEALTHREC_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a healthrec server is running at HEALTHREC_API_URL.",
			"hint: start local server manually with: healthrec srv",
			"hint: you can increase HEALTHREC_HTTP_TIMEOUT for slower environments.",
		)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
