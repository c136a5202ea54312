// Command nesgo runs the NES emulator.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nesgo/internal/app"
	"nesgo/internal/version"
)

func main() {
	var (
		romFile    = flag.String("rom", "", "Path to NES ROM file (optional for GUI mode)")
		configFile = flag.String("config", "", "Path to configuration file")
		nogui      = flag.Bool("nogui", false, "Run without GUI (headless mode)")
		frames     = flag.Int("frames", 120, "Number of frames to run in headless mode")
		help       = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	if *showVer {
		version.PrintBuildInfo()
		os.Exit(0)
	}

	setupGracefulShutdown()

	configPath := *configFile
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}

	application, err := app.NewApplicationWithMode(configPath, *nogui)
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			log.Printf("cleanup error: %v", err)
		}
	}()

	if *romFile != "" {
		if err := application.LoadROM(*romFile); err != nil {
			log.Fatalf("failed to load ROM: %v", err)
		}
	}

	if *nogui {
		if *romFile == "" {
			log.Fatal("a ROM file is required in headless mode (-rom)")
		}
		runHeadlessMode(application, *frames)
		return
	}

	if err := runGUIMode(application); err != nil {
		log.Fatalf("GUI mode failed: %v", err)
	}
}

func runGUIMode(application *app.Application) error {
	config := application.GetConfig()
	w, h := config.GetWindowResolution()
	fmt.Printf("window: %dx%d (scale %dx), filter: %s, vsync: %v\n",
		w, h, config.Window.Scale, config.Video.Filter, config.Video.VSync)

	if err := application.Run(); err != nil {
		return fmt.Errorf("application run failed: %w", err)
	}

	fmt.Printf("frames rendered: %d\n", application.GetFrameCount())
	fmt.Printf("session time: %v\n", application.GetUptime())
	fmt.Printf("average FPS: %.1f\n", application.GetFPS())
	return nil
}

// runHeadlessMode drives the bus directly for a fixed number of frames,
// useful for CI and for capturing reference frame dumps without a window.
func runHeadlessMode(application *app.Application, targetFrames int) {
	b := application.GetBus()
	if b == nil {
		log.Fatal("bus not initialized")
	}

	for frame := 0; frame < targetFrames; frame++ {
		b.Frame()
	}

	fmt.Printf("ran %d frames, %d total cycles\n", targetFrames, b.CycleCount())
}

func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		os.Exit(0)
	}()
}

func printUsage() {
	fmt.Println("nesgo - NES emulator")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  nesgo [options]                     start GUI mode without a ROM")
	fmt.Println("  nesgo -rom <file> [options]         start with a ROM loaded")
	fmt.Println("  nesgo -nogui -rom <file> [options]  run headless for a fixed number of frames")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("CONTROLS (Default):")
	fmt.Println("  Player 1: WASD or Arrow Keys (D-Pad), J (A), K (B), Enter (Start), Space (Select)")
	fmt.Println("  Player 2: 1/2/3/4 (Up/Down/Left/Right), 5 (A), 6 (B), 7 (Start), 8 (Select)")
	fmt.Println("  Escape x2 within 3s: quit")
	fmt.Println()
	fmt.Println("SUPPORTED FORMATS:")
	fmt.Println("  iNES (.nes), mapper 0 (NROM) only")
}
