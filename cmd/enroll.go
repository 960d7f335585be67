package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/detect"
	"github.com/facegate/facegate/internal/imaging"
	"github.com/facegate/facegate/internal/pipeline"
	"github.com/facegate/facegate/internal/recognize"
	"github.com/facegate/facegate/internal/store"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a person from a directory of face images",
	Long: `Enroll a new person using face images from a directory.
Each image should contain the person's face; the largest detected face
in each image becomes a training sample. The trained model is saved so
the person is recognized the next time the service starts.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Display name of the person (required)")
	enrollCmd.Flags().String("employee-id", "", "Unique employee identifier (required)")
	enrollCmd.Flags().String("dir", "", "Directory containing face images (required)")
	enrollCmd.MarkFlagRequired("name")
	enrollCmd.MarkFlagRequired("employee-id")
	enrollCmd.MarkFlagRequired("dir")
}

// imageExtensions are the file types considered enrollment frames.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func loadFrames(files []string) []image.Image {
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Loading frames"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var frames []image.Image
	for _, path := range files {
		bar.Add(1)
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("\nWarning: skipping %s: %v\n", path, err)
			continue
		}
		frame, err := imaging.Decode(data)
		if err != nil {
			fmt.Printf("\nWarning: skipping %s: %v\n", path, err)
			continue
		}
		frames = append(frames, frame)
	}
	fmt.Println()
	return frames
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	employeeID := mustGetString(cmd, "employee-id")
	dir := mustGetString(cmd, "dir")

	cfg := config.Load()

	files, err := listImageFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no image files found in %s", dir)
	}

	s, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening attendance store: %w", err)
	}
	defer s.Close()

	detector, err := detect.New(cfg.Detector)
	if err != nil {
		return fmt.Errorf("initializing face detector: %w", err)
	}

	model := recognize.New(cfg.Recognizer)
	if err := model.Load(); err != nil {
		fmt.Printf("No trained model loaded (%v), starting fresh\n", err)
	}

	frames := loadFrames(files)

	enroller := pipeline.NewEnroller(detector, model, s, cfg.Recognizer.MinSamples)
	userID, err := enroller.Register(context.Background(), frames, name, employeeID)
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	fmt.Printf("Enrolled %s (employee %s) as user %d\n", name, employeeID, userID)
	fmt.Printf("Model now holds %d training samples\n", model.SampleCount())
	return nil
}
