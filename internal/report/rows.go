package report

import (
	"fmt"
	"strconv"
)

// Role tags a flattened row so renderers can style it without knowing
// the grid layout.
type Role int

const (
	RoleTitle Role = iota
	RoleHeader
	RoleDay
	RoleSubtotal
	RoleGrandTotal
	RoleBlank
)

// Row is one positional line of the exported worksheet: a day column
// followed by three (summary, amount) column pairs.
type Row struct {
	Role  Role
	Cells []string
}

// Rows flattens the grid into the worksheet layout of the statement:
// a title banner, then per quarter a header row, 31 day rows and a
// subtotal row, and finally the grand-total row. Empty cells are empty
// strings so renderers can write the rows positionally.
func (a *Annual) Rows() []Row {
	rows := make([]Row, 0, 4*(DaysPerMonth+4)+2)
	rows = append(rows, Row{Role: RoleTitle, Cells: []string{fmt.Sprintf("%d年 支出清冊", a.Year)}})

	for q := range a.Quarters {
		quarter := &a.Quarters[q]

		header := []string{"日期"}
		for _, col := range quarter.Months {
			header = append(header, fmt.Sprintf("%d月摘要", col.Month), "金額")
		}
		rows = append(rows, Row{Role: RoleHeader, Cells: header})

		for day := 1; day <= DaysPerMonth; day++ {
			cells := []string{strconv.Itoa(day)}
			for _, col := range quarter.Months {
				cell := col.Days[day-1]
				if cell.Filled {
					cells = append(cells, cell.Description, strconv.FormatInt(cell.Total, 10))
				} else {
					cells = append(cells, "", "")
				}
			}
			rows = append(rows, Row{Role: RoleDay, Cells: cells})
		}

		subtotal := []string{"合計"}
		for _, col := range quarter.Months {
			subtotal = append(subtotal, "本月小計", strconv.FormatInt(col.Subtotal, 10))
		}
		rows = append(rows, Row{Role: RoleSubtotal, Cells: subtotal})
		rows = append(rows, Row{Role: RoleBlank}, Row{Role: RoleBlank})
	}

	rows = append(rows, Row{
		Role:  RoleGrandTotal,
		Cells: []string{"年度總支出", "", strconv.FormatInt(a.GrandTotal, 10)},
	})
	return rows
}
