package ingest

import (
	"strings"
	"testing"
)

const sampleCSV = `發票日期,品名,金額,店家
2024-01-05,咖啡,50,小七
2024-01-05,茶,$1,小七
2024/1/6,麵包,"1,200",全聯
bad-date,餅乾,30,全聯
2024-01-07,,40,全聯
2024-01-08,糖果,0,全聯
2024-01-05,咖啡,50,小七
`

var sampleMapping = Mapping{Date: "發票日期", Description: "品名", Amount: "金額"}

func TestReadPreview(t *testing.T) {
	p, err := ReadPreview(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	want := []string{"發票日期", "品名", "金額", "店家"}
	if len(p.Headers) != len(want) {
		t.Fatalf("headers = %v, want %v", p.Headers, want)
	}
	for i, h := range want {
		if p.Headers[i] != h {
			t.Fatalf("header %d = %q, want %q", i, p.Headers[i], h)
		}
	}
	if len(p.Rows) != 3 {
		t.Fatalf("preview rows = %d, want 3", len(p.Rows))
	}
}

func TestReadPreviewRejectsNarrowFiles(t *testing.T) {
	if _, err := ReadPreview(strings.NewReader("a,b\n1,2\n")); err == nil {
		t.Fatal("expected error for two-column file")
	}
}

func TestImport(t *testing.T) {
	res, err := Import(strings.NewReader(sampleCSV), sampleMapping)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	// Accepted: 咖啡50, 茶1, 麵包1200. Rejected: bad date, empty item,
	// zero amount. Duplicate: the repeated 咖啡 row.
	if res.Accepted != 3 {
		t.Fatalf("accepted = %d, want 3 (%+v)", res.Accepted, res)
	}
	if res.Rejected != 3 {
		t.Fatalf("rejected = %d, want 3", res.Rejected)
	}
	if res.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", res.Duplicates)
	}

	first := res.Transactions[0]
	if first.Description != "咖啡"+ImportTag {
		t.Fatalf("description not tagged: %q", first.Description)
	}
	if first.Amount.Units != 50 {
		t.Fatalf("amount = %d, want 50", first.Amount.Units)
	}

	third := res.Transactions[2]
	if third.Amount.Units != 1200 {
		t.Fatalf("thousands separator not cleaned: %d", third.Amount.Units)
	}
	if third.Date.Year() != 2024 || third.Date.Month() != 1 || third.Date.Day() != 6 {
		t.Fatalf("slash date not parsed: %v", third.Date)
	}
}

func TestImportKeepsExistingTag(t *testing.T) {
	csv := "d,i,a\n2024-01-05,咖啡" + ImportTag + ",50\n"
	res, err := Import(strings.NewReader(csv), Mapping{Date: "d", Description: "i", Amount: "a"})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Accepted != 1 {
		t.Fatalf("accepted = %d, want 1", res.Accepted)
	}
	if got := res.Transactions[0].Description; strings.Count(got, ImportTag) != 1 {
		t.Fatalf("tag duplicated: %q", got)
	}
}

func TestImportRequiresFullMapping(t *testing.T) {
	if _, err := Import(strings.NewReader(sampleCSV), Mapping{Date: "發票日期"}); err == nil {
		t.Fatal("expected error for incomplete mapping")
	}
}
