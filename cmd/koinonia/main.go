package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/evertran/koinonia-desktop/internal/config"
	"github.com/evertran/koinonia-desktop/internal/desktop/tray"
	"github.com/evertran/koinonia-desktop/internal/logger"
	"github.com/evertran/koinonia-desktop/internal/orchestrator"
	"github.com/evertran/koinonia-desktop/internal/ui"
)

const version = "2.0.0"

var (
	configPath  = flag.String("config", "", "Path to configuration file (default: <data dir>/config.json)")
	headless    = flag.Bool("headless", false, "Run without the system tray")
	showVersion = flag.Bool("version", false, "Show version information")
	showHelp    = flag.Bool("help", false, "Show help information")
)

func main() {
	// Parse command-line flags
	flag.Parse()

	// Show version if requested
	if *showVersion {
		fmt.Printf("Koinonia Desktop v%s\n", version)
		os.Exit(0)
	}

	// Show help if requested
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// Set up panic recovery
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC: %v", r)
			log.Printf("Stack trace:\n%s", debug.Stack())
			os.Exit(1)
		}
	}()

	// Load configuration
	path := *configPath
	if path == "" {
		path = filepath.Join(config.DefaultDataDir(), "config.json")
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	if err := logger.Initialize(cfg.Logging.File, cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	logger.Info("=== Koinonia Desktop v%s ===", version)
	logger.Info("Configuration loaded from %s", path)
	logger.Info("Server: %s", cfg.Server.URL)
	logger.Info("Log file: %s", cfg.Logging.File)

	// Create the system tray unless running headless
	var sysTray tray.SystemTray
	if !*headless {
		sysTray = tray.NewPlatformSystemTray(&tray.Config{
			AppName:     "Koinonia",
			TooltipText: "Koinonia Desktop",
		})
		if err := sysTray.Initialize(); err != nil {
			logger.Warn("System tray unavailable, continuing without it: %v", err)
			sysTray = nil
		}
	}

	// Create the orchestrator with the window surface
	window := ui.NewLogWindow()
	orch, err := orchestrator.New(cfg, window, sysTray)
	if err != nil {
		logger.Error("Failed to create orchestrator: %v", err)
		os.Exit(1)
	}

	if err := orch.Start(); err != nil {
		logger.Error("Failed to start orchestrator: %v", err)
		os.Exit(1)
	}

	if sysTray != nil {
		sysTray.SetMenu([]*tray.MenuItem{
			{Label: "Open Koinonia", Enabled: true, OnClick: func() {
				orch.OnWindowRestore()
				window.Present()
			}},
			{Label: "Quit", Enabled: true, OnClick: orch.RequestQuit},
		})

		// The tray event loop owns the main goroutine on desktop platforms.
		go func() {
			orch.Run()
			sysTray.Quit()
		}()
		sysTray.Run()
	} else {
		orch.Run()
	}

	logger.Info("Koinonia Desktop exited cleanly")
}

// printHelp displays usage information
func printHelp() {
	fmt.Printf("Koinonia Desktop v%s\n\n", version)
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n\n", os.Args[0])
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println("\nDescription:")
	fmt.Println("  Koinonia Desktop keeps a realtime connection to the Koinonia server,")
	fmt.Println("  delivers chat and celebration notifications natively, and restores")
	fmt.Println("  the prior session across restarts.")
	fmt.Println("\nExamples:")
	fmt.Printf("  %s\n", os.Args[0])
	fmt.Printf("  %s --config /path/to/config.json\n", os.Args[0])
	fmt.Printf("  %s --headless\n", os.Args[0])
}
