package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"testing"

	"kakebo/internal/core"
	"kakebo/internal/report"
)

func TestWriteCSV(t *testing.T) {
	a := report.Build([]core.Transaction{
		{Date: core.NewDate(2024, 1, 5), Description: "coffee", Amount: core.Money{Units: 50}},
		{Date: core.NewDate(2024, 1, 5), Description: "tea", Amount: core.Money{Units: 30}},
	})

	var buf bytes.Buffer
	if err := WriteCSV(&buf, a); err != nil {
		t.Fatalf("write: %v", err)
	}

	cr := csv.NewReader(&buf)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}

	if records[0][0] != "2024年 支出清冊" {
		t.Fatalf("unexpected title record: %v", records[0])
	}
	// Day 5 of the first quarter block: title + header + 4 day rows.
	day5 := records[6]
	if day5[0] != "5" || day5[1] != "coffee50 tea30" || day5[2] != "80" {
		t.Fatalf("unexpected day record: %v", day5)
	}
	last := records[len(records)-1]
	if last[0] != "年度總支出" || last[2] != "80" {
		t.Fatalf("unexpected grand total record: %v", last)
	}
}

func TestWriteCSVEmptyStatement(t *testing.T) {
	if err := WriteCSV(io.Discard, nil); err == nil {
		t.Fatal("expected error for nil statement")
	}
}

func TestFilename(t *testing.T) {
	a := report.Build([]core.Transaction{
		{Date: core.NewDate(2023, 7, 1), Description: "x", Amount: core.Money{Units: 1}},
	})
	if got := Filename(a); !strings.Contains(got, "2023") {
		t.Fatalf("filename missing year: %q", got)
	}
}
