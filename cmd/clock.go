package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/spf13/cobra"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Run a capture session from the terminal",
}

var clockInCmd = &cobra.Command{
	Use:   "in",
	Short: "Clock in everyone recognized by the camera",
	RunE:  func(cmd *cobra.Command, args []string) error { return runClock(cmd, "in") },
}

var clockOutCmd = &cobra.Command{
	Use:   "out",
	Short: "Clock out everyone recognized by the camera",
	RunE:  func(cmd *cobra.Command, args []string) error { return runClock(cmd, "out") },
}

func init() {
	rootCmd.AddCommand(clockCmd)
	clockCmd.AddCommand(clockInCmd)
	clockCmd.AddCommand(clockOutCmd)

	for _, c := range []*cobra.Command{clockInCmd, clockOutCmd} {
		c.Flags().Duration("duration", 0, "Stop after this long (0 = run until Ctrl+C)")
		c.Flags().Bool("dry-run", false, "Recognize without writing attendance rows")
		c.Flags().String("replay-dir", "", "Read frames from a directory instead of the camera")
	}
}

// runClock drives one capture session without the web server: frames
// until Ctrl+C, the duration limit, or the end of the replay directory,
// then one attendance row per recognized identity.
func runClock(cmd *cobra.Command, direction string) error {
	cfg := config.Load()

	if dir := mustGetString(cmd, "replay-dir"); dir != "" {
		cfg.Camera.ReplayDir = dir
	}
	duration := mustGetDuration(cmd, "duration")
	dryRun := mustGetBool(cmd, "dry-run")

	actionLabel := cfg.Labels.Actions.ClockIn
	if direction == "out" {
		actionLabel = cfg.Labels.Actions.ClockOut
	}

	enc := buildEncoder(cfg)

	fmt.Printf("Loading face registry from %s (sheet %s)...\n", cfg.Workbook.Path, cfg.Workbook.RegistrySheet)
	reg, err := loadRegistry(context.Background(), cfg, enc)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %d faces\n", reg.Len())

	m, err := buildMatcher(cfg, reg)
	if err != nil {
		return err
	}

	device, err := openDevice(cfg)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Println("\nStopping capture...")
		cancel()
	}()

	names := make([]string, reg.Len())
	for i := range names {
		names[i] = reg.NameAt(i)
	}

	runner := &capture.Runner{
		Device:   device,
		Encoder:  enc,
		Matcher:  m,
		Names:    names,
		Interval: cfg.CaptureInterval(),
		OnFrame: func(e capture.FrameEvent) {
			for _, face := range e.Faces {
				if face.Matched {
					fmt.Printf("frame %d: %s (distance %.3f)\n", e.Seq, face.Name, face.Distance)
				}
			}
		},
	}

	fmt.Println("Capturing... press Ctrl+C to finish")
	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if result.Err != nil {
		fmt.Printf("Camera stopped: %v\n", result.Err)
	}

	fmt.Printf("Processed %d frames (%d skipped)\n", result.Frames, result.Skipped)
	if len(result.Recognized) == 0 {
		fmt.Println(cfg.Labels.UI.Failure)
		return nil
	}

	if dryRun {
		fmt.Printf("Dry run: would record %q for %v\n", actionLabel, result.Recognized)
		return nil
	}

	records, err := newAttendanceLog(cfg).Append(result.Recognized, actionLabel)
	if err != nil {
		return fmt.Errorf("failed to record attendance: %w", err)
	}
	for _, r := range records {
		fmt.Printf("%s  %s  %s\n", r.Timestamp, r.Name, r.Action)
	}
	fmt.Println(cfg.Labels.UI.Success)
	return nil
}
