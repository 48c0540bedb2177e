// Package attendance records clock-in/clock-out events in the attendance
// sheet of the workbook.
package attendance

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// TimestampFormat is the wall-clock format used in the attendance sheet.
const TimestampFormat = "2006-01-02 15:04:05"

// Record is one attendance row. Append-only; rows are never updated or
// deleted. Name is free text, not validated against the registry.
type Record struct {
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
}

// Log appends attendance rows to the workbook. A single mutex serializes
// writers within the process, so concurrent sessions cannot lose rows to
// the read-modify-write cycle. The sheet is rewritten through a temp
// file and renamed into place.
type Log struct {
	mu    sync.Mutex
	path  string
	sheet string
	now   func() time.Time
}

// NewLog creates a log writing to the given sheet of the workbook.
// The workbook is created on first append if it does not exist yet.
func NewLog(path, sheet string) *Log {
	return &Log{
		path:  path,
		sheet: sheet,
		now:   time.Now,
	}
}

// Append writes one row per name with the current wall-clock timestamp
// and the given action label. Returns the appended records.
func (l *Log) Append(names []string, action string) ([]Record, error) {
	if len(names) == 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.now().Format(TimestampFormat)
	records := make([]Record, len(names))
	for i, name := range names {
		records[i] = Record{Name: name, Timestamp: timestamp, Action: action}
	}

	f, err := l.openWorkbook()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing workbook: %v\n", err)
		}
	}()

	existing, err := f.GetRows(l.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", l.sheet, err)
	}

	next := len(existing) + 1
	if len(existing) == 0 {
		header := []any{"Name", "Timestamp", "Action"}
		if err := setRow(f, l.sheet, 1, header); err != nil {
			return nil, err
		}
		next = 2
	}

	for i, rec := range records {
		row := []any{rec.Name, rec.Timestamp, rec.Action}
		if err := setRow(f, l.sheet, next+i, row); err != nil {
			return nil, err
		}
	}

	if err := l.save(f); err != nil {
		return nil, err
	}
	return records, nil
}

// List returns all attendance rows in sheet order. A missing workbook or
// sheet yields an empty list.
func (l *Log) List() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); err != nil {
		return nil, nil
	}

	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(l.sheet)
	if err != nil {
		// Sheet does not exist yet.
		return nil, nil
	}

	var records []Record
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		records = append(records, Record{Name: row[0], Timestamp: row[1], Action: row[2]})
	}
	return records, nil
}

// openWorkbook opens the workbook, creating a fresh file with the
// attendance sheet when it does not exist.
func (l *Log) openWorkbook() (*excelize.File, error) {
	if _, err := os.Stat(l.path); err == nil {
		f, err := excelize.OpenFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		if idx, err := f.GetSheetIndex(l.sheet); err == nil && idx < 0 {
			if _, err := f.NewSheet(l.sheet); err != nil {
				return nil, fmt.Errorf("failed to create sheet %q: %w", l.sheet, err)
			}
		}
		return f, nil
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(l.sheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet %q: %w", l.sheet, err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	return f, nil
}

// save writes the workbook through a temp file in the same directory and
// renames it into place, so a crash mid-write cannot corrupt the sheet.
func (l *Log) save(f *excelize.File) error {
	tmp := l.path + ".tmp"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("failed to compute cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}
