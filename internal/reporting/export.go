package reporting

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary    = "Summary"
	sheetOutcomes   = "Outcomes"
	sheetObjections = "Objections"
	sheetFunnel     = "Milestones"
)

// ExportXLSX renders the dashboard as a workbook with one sheet per report.
func (s *Service) ExportXLSX(ctx context.Context, req Request) (string, []byte, error) {
	d, err := s.Dashboard(ctx, req)
	if err != nil {
		return "", nil, err
	}
	buf, err := RenderXLSX(d)
	if err != nil {
		return "", nil, err
	}
	name := fmt.Sprintf("callos_%s_%s.xlsx", d.Range.From.UTC().Format("20060102"), d.Range.To.UTC().Format("20060102"))
	return name, buf.Bytes(), nil
}

func RenderXLSX(d Dashboard) (*bytes.Buffer, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), sheetSummary)
	for _, name := range []string{sheetOutcomes, sheetObjections, sheetFunnel} {
		if _, err := xl.NewSheet(name); err != nil {
			return nil, fmt.Errorf("reporting: sheet %s: %w", name, err)
		}
	}

	c := d.Calls
	summary := [][]any{
		{"metric", "value"},
		{"total_calls", c.TotalCalls},
		{"scheduled", c.ScheduledCalls},
		{"in_progress", c.InProgressCalls},
		{"completed", c.CompletedCalls},
		{"cancelled", c.CancelledCalls},
		{"gate_overrides", c.GateOverrides},
		{"total_duration_seconds", c.TotalDurationSeconds},
		{"average_duration_seconds", c.AverageDurationSeconds},
	}
	if err := writeRows(xl, sheetSummary, summary); err != nil {
		return nil, err
	}

	outcomeRows := [][]any{{"outcome", "count"}}
	for _, k := range sortedKeys(d.Outcomes.Counts) {
		outcomeRows = append(outcomeRows, []any{k, d.Outcomes.Counts[k]})
	}
	outcomeRows = append(outcomeRows, []any{"total", d.Outcomes.Total}, []any{"coaching_rate", d.Outcomes.CoachingRate})
	if err := writeRows(xl, sheetOutcomes, outcomeRows); err != nil {
		return nil, err
	}

	objRows := [][]any{{"type", "total", "resolved", "deferred", "disqualified", "resolution_rate"}}
	for _, o := range d.Objections {
		objRows = append(objRows, []any{o.Type, o.Total, o.Resolved, o.Deferred, o.Disqualified, o.ResolutionRate})
	}
	if err := writeRows(xl, sheetObjections, objRows); err != nil {
		return nil, err
	}

	funnelRows := [][]any{{"number", "title", "started", "completed", "skipped"}}
	for _, f := range d.Funnel {
		funnelRows = append(funnelRows, []any{f.Number, f.Title, f.Started, f.Completed, f.Skipped})
	}
	if err := writeRows(xl, sheetFunnel, funnelRows); err != nil {
		return nil, err
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("reporting: write workbook: %w", err)
	}
	return buf, nil
}

func writeRows(xl *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("reporting: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
