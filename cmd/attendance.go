package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect the attendance sheet",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance records, oldest first",
	RunE:  runAttendanceList,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd)

	attendanceListCmd.Flags().Bool("json", false, "Output as JSON")
	attendanceListCmd.Flags().Int("limit", 0, "Show only the last N records (0 = all)")
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	records, err := newAttendanceLog(cfg).List()
	if err != nil {
		return fmt.Errorf("failed to read attendance sheet: %w", err)
	}

	if limit := mustGetInt(cmd, "limit"); limit > 0 && limit < len(records) {
		records = records[len(records)-limit:]
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("No attendance records found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIMESTAMP\tACTION")
	fmt.Fprintln(w, "----\t---------\t------")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Timestamp, r.Action)
	}
	w.Flush()

	fmt.Printf("\n%d records\n", len(records))
	return nil
}
