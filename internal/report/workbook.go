package report

import (
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/linnemanlabs/confide/internal/message"
)

// SheetName is the worksheet holding the report.
const SheetName = "Anonymous Messages Report"

var columns = []struct {
	header string
	width  float64
}{
	{"Date & Time Sent", 20},
	{"Category", 22},
	{"Subject", 30},
	{"Priority", 12},
	{"Status", 15},
	{"HR Note", 40},
	{"Resolved At", 20},
}

var statusFill = map[message.Status]string{
	message.StatusSubmitted:    "E3F2FD",
	message.StatusAcknowledged: "FFF9C4",
	message.StatusResolved:     "C8E6C9",
}

type styles struct {
	title, header, cell, date, bold int
	status                          map[message.Status]int
}

func newStyles(f *excelize.File) (*styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	dateFmt := "yyyy-mm-dd hh:mm"

	var (
		st  = &styles{status: make(map[message.Status]int, len(statusFill))}
		err error
	)
	if st.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"667EEA"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return nil, err
	}
	if st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4A5568"}, Pattern: 1},
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	}); err != nil {
		return nil, err
	}
	if st.cell, err = f.NewStyle(&excelize.Style{
		Border:    border,
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
	}); err != nil {
		return nil, err
	}
	if st.date, err = f.NewStyle(&excelize.Style{
		Border:       border,
		Alignment:    &excelize.Alignment{Vertical: "center"},
		CustomNumFmt: &dateFmt,
	}); err != nil {
		return nil, err
	}
	if st.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return nil, err
	}
	for s, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border: border,
		})
		if err != nil {
			return nil, err
		}
		st.status[s] = id
	}
	return st, nil
}

func (st *styles) forStatus(s message.Status) int {
	if id, ok := st.status[s]; ok {
		return id
	}
	return st.cell
}

// sheetWriter keeps the first excelize error so cell writes can be chained.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) cell(col, row int, v any, style int) {
	if w.err != nil {
		return
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if w.err = w.f.SetCellValue(SheetName, name, v); w.err != nil {
		return
	}
	if style != 0 {
		w.err = w.f.SetCellStyle(SheetName, name, name, style)
	}
}

func (w *sheetWriter) merge(col1, col2, row int, v any, style int) {
	if w.err != nil {
		return
	}
	from, err := excelize.CoordinatesToCellName(col1, row)
	if err != nil {
		w.err = err
		return
	}
	to, err := excelize.CoordinatesToCellName(col2, row)
	if err != nil {
		w.err = err
		return
	}
	if w.err = w.f.MergeCell(SheetName, from, to); w.err != nil {
		return
	}
	if w.err = w.f.SetCellValue(SheetName, from, v); w.err != nil {
		return
	}
	w.err = w.f.SetCellStyle(SheetName, from, to, style)
}

func buildWorkbook(month time.Time, msgs []*message.Message, byStatus []Count) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f}
	w.merge(1, len(columns), 1, "Anonymous Messages Report - "+month.Format("January 2006"), st.title)
	if w.err == nil {
		w.err = f.SetRowHeight(SheetName, 1, 28)
	}

	for i, c := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if w.err == nil {
			w.err = f.SetColWidth(SheetName, col, col, c.width)
		}
		w.cell(i+1, 3, c.header, st.header)
	}

	row := 4
	for _, m := range msgs {
		resolved := ""
		if !m.ResolvedAt.IsZero() {
			resolved = m.ResolvedAt.Format("2006-01-02 15:04")
		}
		w.cell(1, row, m.SubmittedAt, st.date)
		w.cell(2, row, m.Category.Label(), st.cell)
		w.cell(3, row, m.Subject, st.cell)
		w.cell(4, row, m.Priority.Label(), st.cell)
		w.cell(5, row, m.Status.Label(), st.forStatus(m.Status))
		w.cell(6, row, m.HRNote, st.cell)
		w.cell(7, row, resolved, st.cell)
		row++
	}

	row += 2
	w.merge(1, 2, row, "SUMMARY STATISTICS", st.header)
	row++
	w.cell(1, row, "Total Messages:", st.bold)
	w.cell(2, row, len(msgs), 0)
	row++
	for _, c := range byStatus {
		w.cell(1, row, c.Label+":", st.cell)
		w.cell(2, row, c.N, st.cell)
		row++
	}
	if w.err != nil {
		return nil, w.err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
