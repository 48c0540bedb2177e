package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk web server",
	Long: `Start the attendance kiosk web server.
The server loads the face registry from the workbook, then serves the
kiosk page where employees clock in and out in front of the camera.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides KIOSK_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides KIOSK_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
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

	server := web.NewServer(cfg, reg, m, enc, newAttendanceLog(cfg),
		func() (camera.Device, error) { return openDevice(cfg) })

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance kiosk on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
