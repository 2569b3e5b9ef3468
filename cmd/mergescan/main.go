package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kishor/mergescan/internal/app"
	"github.com/kishor/mergescan/internal/tray"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		dataDir     = flag.String("data", "", "data directory (default ~/.mergescan)")
		templateDir = flag.String("templates", "", "template image directory (default <data>/templates)")
		source      = flag.String("source", "", "video source: device ID, file or URL (default device 0)")
		withTray    = flag.Bool("tray", false, "run with a system tray icon")
		live        = flag.Bool("live", false, "start the live scan loop immediately")
	)
	flag.Parse()

	fmt.Println("MergeScan - board template detection")

	cfg := app.Config{
		DataDir:     *dataDir,
		TemplateDir: *templateDir,
		StaticDir:   findWebDir(),
		Addr:        *addr,
	}
	if *source != "" {
		cfg.Source = *source
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if *live {
		if err := a.Engine().Start(); err != nil {
			log.Printf("Failed to start live scan: %v", err)
		}
	}

	if !*withTray {
		if err := a.Run(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	// With the tray enabled, the server runs in the background and the tray
	// loop owns the main goroutine.
	go func() {
		if err := a.Run(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	runTray(a)
}

// runTray wires the tray menu to the engine and blocks until quit.
func runTray(a *app.App) {
	t := tray.New()

	t.OnToggle(func(running bool) {
		if running {
			if err := a.Engine().Start(); err != nil {
				log.Printf("Failed to start live scan: %v", err)
			}
			return
		}
		a.Engine().Stop()
	})

	t.OnCalibrate(func() {
		factor, err := a.Engine().Calibrate(context.Background())
		if err != nil {
			log.Printf("Calibration failed: %v", err)
			return
		}
		log.Printf("Calibrated resize factor to %.1f", factor)
	})

	t.OnSettings(func() {
		log.Printf("Settings: http://localhost%s/", a.Addr())
	})

	t.OnQuit(func() {
		a.Close()
	})

	// Keep the last-scan readout current.
	updates, cancel := a.Engine().Subscribe()
	defer cancel()
	go func() {
		for u := range updates {
			found := 0
			for _, d := range u.Results {
				found += d.Count
			}
			t.SetLastScan(found, len(u.Results))
		}
	}()

	t.Run()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.mergescan/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".mergescan", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
