package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "attendance-kiosk",
	Short: "A facial-recognition attendance kiosk",
	Long: `Attendance Kiosk records employee clock-ins and clock-outs by face.
Registered faces are loaded from a spreadsheet, camera frames are matched
against them, and every recognition is appended to the attendance sheet.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
