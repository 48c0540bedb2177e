package attendance

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestAppend_CreatesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.xlsx")
	log := NewLog(path, "attendance")

	records, err := log.Append([]string{"Employee1"}, "出勤")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rows, err := log.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Name != "Employee1" || rows[0].Action != "出勤" {
		t.Errorf("unexpected row %+v", rows[0])
	}
	if _, err := time.Parse(TimestampFormat, rows[0].Timestamp); err != nil {
		t.Errorf("timestamp %q does not match format: %v", rows[0].Timestamp, err)
	}
}

func TestAppend_Monotonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.xlsx")
	log := NewLog(path, "attendance")

	const n = 5
	for i := range n {
		name := []string{"Employee1", "Employee2"}[i%2]
		if _, err := log.Append([]string{name}, "出勤"); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	rows, err := log.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != n {
		t.Fatalf("expected exactly %d rows, got %d", n, len(rows))
	}

	var prev time.Time
	for i, row := range rows {
		ts, err := time.Parse(TimestampFormat, row.Timestamp)
		if err != nil {
			t.Fatalf("row %d: bad timestamp %q: %v", i, row.Timestamp, err)
		}
		if ts.Before(prev) {
			t.Errorf("row %d: timestamp %s decreased below %s", i, ts, prev)
		}
		prev = ts
	}
}

func TestAppend_PreservesPriorRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.xlsx")
	log := NewLog(path, "attendance")

	if _, err := log.Append([]string{"Employee1"}, "出勤"); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if _, err := log.Append([]string{"Employee2"}, "退勤"); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	rows, err := log.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Name != "Employee1" || rows[1].Name != "Employee2" {
		t.Errorf("prior rows lost or reordered: %+v", rows)
	}
}

func TestAppend_PreservesOtherSheets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attendance.xlsx")

	// The workbook also carries the registered faces sheet; appending
	// attendance rows must leave it intact.
	f := excelize.NewFile()
	if _, err := f.NewSheet("registered_faces"); err != nil {
		t.Fatalf("failed to create sheet: %v", err)
	}
	header := []any{"Image Path", "Name"}
	if err := f.SetSheetRow("registered_faces", "A1", &header); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save workbook: %v", err)
	}
	f.Close()

	log := NewLog(path, "attendance")
	if _, err := log.Append([]string{"Employee1"}, "出勤"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	reopened, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer reopened.Close()

	rows, err := reopened.GetRows("registered_faces")
	if err != nil {
		t.Fatalf("registered_faces sheet lost: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "Image Path" {
		t.Errorf("registered_faces content changed: %v", rows)
	}
}

func TestAppend_MultipleNamesShareTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.xlsx")
	log := NewLog(path, "attendance")
	log.now = func() time.Time {
		return time.Date(2023, 10, 1, 8, 0, 0, 0, time.Local)
	}

	records, err := log.Append([]string{"Employee1", "Employee2"}, "出勤")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if records[0].Timestamp != "2023-10-01 08:00:00" {
		t.Errorf("unexpected timestamp %q", records[0].Timestamp)
	}
	if records[0].Timestamp != records[1].Timestamp {
		t.Error("rows from one session must share the append timestamp")
	}
}

func TestAppend_NoNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.xlsx")
	log := NewLog(path, "attendance")

	records, err := log.Append(nil, "出勤")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if records != nil {
		t.Error("expected no records for empty name list")
	}

	rows, err := log.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestList_MissingWorkbook(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "nope.xlsx"), "attendance")

	rows, err := log.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty list, got %d rows", len(rows))
	}
}
