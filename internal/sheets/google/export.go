package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gsheet "google.golang.org/api/sheets/v4"

	"kakebo/internal/report"
)

// Statement palette, carried over from the original workbook.
var (
	headerColor   = &gsheet.Color{Red: 0.85, Green: 0.88, Blue: 0.95} // #D9E1F2
	subtotalColor = &gsheet.Color{Red: 0.99, Green: 0.89, Blue: 0.84} // #FCE4D6
)

// ExportAnnual writes the annual statement into a "<year>年度支出清冊"
// sheet of the remote workbook: the positional grid from report.Rows
// plus presentation (merged title banner, header and subtotal styling,
// column widths). Grid semantics stay entirely with the report package.
func (c *Client) ExportAnnual(ctx context.Context, a *report.Annual) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if a == nil {
		return errors.New("nothing to export: empty statement")
	}

	title := fmt.Sprintf("%d年度支出清冊", a.Year)
	sheetID, err := c.ensureSheet(ctx, title)
	if err != nil {
		return err
	}

	rows := a.Rows()
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell
		}
		values[i] = cells
	}
	vr := &gsheet.ValueRange{Values: values}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A1", title), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write statement values: %w", err)
	}

	if err := c.formatStatement(ctx, sheetID, rows); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Annual statement exported",
		"sheet", title,
		"year", a.Year,
		"grand_total", a.GrandTotal)
	return nil
}

// ensureSheet returns the ID of the named sheet, creating it when
// missing and clearing it when present.
func (c *Client) ensureSheet(ctx context.Context, title string) (int64, error) {
	id, err := c.sheetID(ctx, title)
	if err == nil {
		rng := fmt.Sprintf("%s!A:Z", title)
		if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
			return 0, fmt.Errorf("clear %s: %w", rng, err)
		}
		return id, nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %q: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %q: empty reply", title)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (c *Client) formatStatement(ctx context.Context, sheetID int64, rows []report.Row) error {
	var reqs []*gsheet.Request

	// Title banner merged across the seven grid columns.
	reqs = append(reqs,
		&gsheet.Request{MergeCells: &gsheet.MergeCellsRequest{
			Range:     rowRange(sheetID, 0, 0, 7),
			MergeType: "MERGE_ALL",
		}},
		&gsheet.Request{RepeatCell: &gsheet.RepeatCellRequest{
			Range: rowRange(sheetID, 0, 0, 7),
			Cell: &gsheet.CellData{UserEnteredFormat: &gsheet.CellFormat{
				HorizontalAlignment: "CENTER",
				TextFormat:          &gsheet.TextFormat{Bold: true, FontSize: 14},
			}},
			Fields: "userEnteredFormat(horizontalAlignment,textFormat)",
		}},
	)

	for i, row := range rows {
		switch row.Role {
		case report.RoleHeader:
			reqs = append(reqs, &gsheet.Request{RepeatCell: &gsheet.RepeatCellRequest{
				Range: rowRange(sheetID, int64(i), 0, 7),
				Cell: &gsheet.CellData{UserEnteredFormat: &gsheet.CellFormat{
					HorizontalAlignment: "CENTER",
					BackgroundColor:     headerColor,
					TextFormat:          &gsheet.TextFormat{Bold: true},
				}},
				Fields: "userEnteredFormat(horizontalAlignment,backgroundColor,textFormat)",
			}})
		case report.RoleSubtotal:
			reqs = append(reqs, &gsheet.Request{RepeatCell: &gsheet.RepeatCellRequest{
				Range: rowRange(sheetID, int64(i), 0, 7),
				Cell: &gsheet.CellData{UserEnteredFormat: &gsheet.CellFormat{
					BackgroundColor: subtotalColor,
					TextFormat:      &gsheet.TextFormat{Bold: true},
				}},
				Fields: "userEnteredFormat(backgroundColor,textFormat)",
			}})
		case report.RoleGrandTotal:
			reqs = append(reqs,
				&gsheet.Request{MergeCells: &gsheet.MergeCellsRequest{
					Range:     rowRange(sheetID, int64(i), 0, 2),
					MergeType: "MERGE_ALL",
				}},
				&gsheet.Request{RepeatCell: &gsheet.RepeatCellRequest{
					Range: rowRange(sheetID, int64(i), 0, 3),
					Cell: &gsheet.CellData{UserEnteredFormat: &gsheet.CellFormat{
						BackgroundColor: subtotalColor,
						TextFormat:      &gsheet.TextFormat{Bold: true, FontSize: 14},
					}},
					Fields: "userEnteredFormat(backgroundColor,textFormat)",
				}},
			)
		}
	}

	// Day column narrow, summary columns wide, amount columns medium.
	widths := []struct {
		start, end int64
		px         int64
	}{
		{0, 1, 40},
		{1, 2, 240}, {2, 3, 90},
		{3, 4, 240}, {4, 5, 90},
		{5, 6, 240}, {6, 7, 90},
	}
	for _, w := range widths {
		reqs = append(reqs, &gsheet.Request{
			UpdateDimensionProperties: &gsheet.UpdateDimensionPropertiesRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: w.start,
					EndIndex:   w.end,
				},
				Properties: &gsheet.DimensionProperties{PixelSize: w.px},
				Fields:     "pixelSize",
			},
		})
	}

	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("format statement sheet: %w", err)
	}
	return nil
}

func rowRange(sheetID, row, startCol, endCol int64) *gsheet.GridRange {
	return &gsheet.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    row,
		EndRowIndex:      row + 1,
		StartColumnIndex: startCol,
		EndColumnIndex:   endCol,
	}
}
