package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/faceenc"
	"github.com/kozaktomas/attendance-kiosk/internal/registry"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the registered faces sheet",
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered employees",
	RunE:  runRegistryList,
}

var registryVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-encode every registered photo and report problems",
	Long: `Verify re-runs face detection on every photo in the registered faces
sheet. Photos that are missing, unreadable, or contain no detectable
face are reported, so the sheet can be fixed before the kiosk starts.`,
	RunE: runRegistryVerify,
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryVerifyCmd)

	registryListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	enc := buildEncoder(cfg)

	reg, err := loadRegistry(context.Background(), cfg, enc)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		type entry struct {
			Name      string `json:"name"`
			ImagePath string `json:"image_path"`
			Dimension int    `json:"dimension"`
		}
		entries := make([]entry, 0, reg.Len())
		for _, e := range reg.Entries() {
			entries = append(entries, entry{Name: e.Name, ImagePath: e.ImagePath, Dimension: len(e.Encoding)})
		}
		return outputJSON(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tIMAGE\tDIM")
	fmt.Fprintln(w, "----\t-----\t---")
	for _, e := range reg.Entries() {
		fmt.Fprintf(w, "%s\t%s\t%d\n", e.Name, e.ImagePath, len(e.Encoding))
	}
	w.Flush()

	fmt.Printf("\n%d registered faces\n", reg.Len())
	return nil
}

func runRegistryVerify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	enc := buildEncoder(cfg)

	reg, err := loadRegistry(context.Background(), cfg, enc)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(reg.Len(),
		progressbar.OptionSetDescription("Verifying faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var problems []string
	for _, e := range reg.Entries() {
		if issue := verifyEntry(context.Background(), enc, e); issue != "" {
			problems = append(problems, issue)
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	if len(problems) == 0 {
		fmt.Printf("All %d registered faces verified\n", reg.Len())
		return nil
	}

	fmt.Printf("%d of %d photos have problems:\n", len(problems), reg.Len())
	for _, p := range problems {
		fmt.Printf("  - %s\n", p)
	}
	return fmt.Errorf("%d registered photos failed verification", len(problems))
}

// verifyEntry re-encodes one photo. The registry load already rejects
// photos with no face, so this catches only drift since the load:
// photos deleted from disk or ambiguous multi-face images.
func verifyEntry(ctx context.Context, enc *faceenc.Client, e registry.RegisteredFace) string {
	data, err := os.ReadFile(e.ImagePath)
	if err != nil {
		return fmt.Sprintf("%s: cannot read photo %s", e.Name, e.ImagePath)
	}
	result, err := enc.EncodeFaces(ctx, data)
	if err != nil {
		return fmt.Sprintf("%s: encoding failed for %s: %v", e.Name, e.ImagePath, err)
	}
	if result.FacesCount == 0 {
		return fmt.Sprintf("%s: no face detected in %s", e.Name, e.ImagePath)
	}
	if result.FacesCount > 1 {
		return fmt.Sprintf("%s: %d faces in %s, using the first", e.Name, result.FacesCount, e.ImagePath)
	}
	return ""
}
