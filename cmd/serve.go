package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/detect"
	"github.com/facegate/facegate/internal/pipeline"
	"github.com/facegate/facegate/internal/recognize"
	"github.com/facegate/facegate/internal/store"
	"github.com/facegate/facegate/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance service",
	Long: `Start the Facegate attendance service.
The service ingests camera frames over HTTP, continuously recognizes
registered people, logs attendance and serves the dashboard API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	s, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening attendance store: %w", err)
	}
	defer s.Close()

	if cfg.Mirror.Enabled {
		if cfg.Mirror.URL == "" {
			return fmt.Errorf("FACEGATE_MIRROR_URL is required when the mirror is enabled")
		}
		s.SetMirror(store.NewRemoteMirror(cfg.Mirror))
		fmt.Printf("Remote attendance mirror enabled (%s)\n", cfg.Mirror.URL)
	}

	detector, err := detect.New(cfg.Detector)
	if err != nil {
		return fmt.Errorf("initializing face detector: %w", err)
	}

	model := recognize.New(cfg.Recognizer)
	if err := model.Load(); err != nil {
		fmt.Printf("No trained model loaded (%v), starting fresh\n", err)
	} else {
		fmt.Printf("Loaded trained model with %d samples\n", model.SampleCount())
	}

	frames := &pipeline.FrameCell{}
	latest := &pipeline.LatestCell{}
	recognizer := pipeline.NewPipeline(detector, model, s, cfg.Recognizer.ConfidenceThreshold)
	enroller := pipeline.NewEnroller(detector, model, s, cfg.Recognizer.MinSamples)
	sampler := pipeline.NewSampler(frames, cfg.Capture)

	port, host := resolveServeHostPort(cmd)
	webCfg := cfg.Web
	webCfg.Host, webCfg.Port = host, port

	server := web.NewServer(webCfg, web.Deps{
		Frames:   frames,
		Latest:   latest,
		Enroller: enroller,
		Sampler:  sampler,
		Store:    s,
		Model:    model,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go recognizer.Run(ctx, frames, cfg.Capture.TickInterval, latest)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Facegate on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
