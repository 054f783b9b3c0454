package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	webview "github.com/webview/webview_go"

	"github.com/IlyassOtmani/car-price-ml/internal/app"
	"github.com/IlyassOtmani/car-price-ml/internal/config"
	"github.com/IlyassOtmani/car-price-ml/internal/logger"
)

var version = "dev"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to a YAML config file (default: ./carprice.yaml if present)")
	port := flag.Int("port", 7860, "HTTP server port")
	modelPath := flag.String("model", config.DefaultModelPath, "Path to the trained pipeline artifact")
	headless := flag.Bool("headless", false, "Run in headless mode (no GUI window)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Car Price Predictor v%s\n", version)
		os.Exit(0)
	}

	// Flags take priority over the config file and environment
	v := config.New()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			v.Set("port", *port)
		case "model":
			v.Set("model_path", *modelPath)
		}
	})
	cfg, err := config.Load(v, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Version = version

	if err := logger.Init(cfg.AppName, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, *headless); err != nil {
		log.Fatal().Err(err).Msg("Car Price Predictor stopped")
	}
}

// run serves until a signal arrives, the window closes or the server fails
func run(cfg config.Config, headless bool) error {
	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Host, cfg.Port, 10)
	if err != nil {
		return fmt.Errorf("failed to find available port: %w", err)
	}
	if availablePort != cfg.Port {
		log.Warn().Msgf("Port %d in use, using port %d instead", cfg.Port, availablePort)
		cfg.Port = availablePort
	}

	log.Info().Msgf("Car Price Predictor v%s starting on port %d", version, cfg.Port)

	a, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	srv := a.Server

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	serverURL := fmt.Sprintf("http://%s", dialAddr(cfg.Host, cfg.Port))
	waitForServer(serverURL, 10*time.Second)

	var serveErr error
	if headless {
		select {
		case serveErr = <-errCh:
		case sig := <-stop:
			log.Info().Msgf("Received %v signal, shutting down...", sig)
		}
	} else {
		// GUI mode: open embedded WebView window
		log.Info().Msg("Opening application window...")
		w := webview.New(false)
		defer w.Destroy()

		w.SetTitle("Car Price Predictor")
		w.SetSize(1200, 900, webview.HintNone)
		w.Navigate(serverURL)

		// When the webview window closes, shut down the server
		go func() {
			select {
			case err := <-errCh:
				if err != nil {
					log.Error().Err(err).Msg("Server error")
				}
			case sig := <-stop:
				log.Info().Msgf("Received %v signal, shutting down...", sig)
			}
			w.Terminate()
		}()

		// Run blocks until the window is closed
		w.Run()
		log.Info().Msg("Window closed, shutting down server...")
	}

	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
	return serveErr
}

func dialAddr(host string, port int) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, fmt.Sprint(port))
}

// waitForServer polls until the server is accepting connections
func waitForServer(url string, timeout time.Duration) {
	addr := strings.TrimPrefix(url, "http://")
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	log.Warn().Msgf("Server may not be ready at %s", url)
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(host string, startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		listener, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
