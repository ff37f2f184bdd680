// ABOUTME: Entry point for the Sidecar EQ player
// ABOUTME: Parses CLI flags and starts the player application
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sidecar-eq/sidecar-go/internal/app"
	"github.com/sidecar-eq/sidecar-go/internal/ui"
	"github.com/sidecar-eq/sidecar-go/internal/version"
)

var (
	storePath  = flag.String("store", "", "Settings database path (default: per-user config dir)")
	sampleRate = flag.Int("sample-rate", 0, "Engine sample rate in Hz (default: 44100)")
	logFile    = flag.String("log-file", "sidecar.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	autoPlay   = flag.Bool("play", false, "Start playback immediately")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	useTUI := !*noTUI

	// Set up logging. In TUI mode the terminal belongs to the UI, so
	// logs go only to the file.
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	controller, err := app.New(app.Config{
		StorePath:  *storePath,
		SampleRate: *sampleRate,
		OnFinished: func() {
			log.Printf("Track finished")
		},
		OnError: func(err error) {
			log.Printf("Playback error: %v", err)
		},
	})
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	if track := flag.Arg(0); track != "" {
		if err := controller.OpenTrack(track); err != nil {
			log.Fatalf("Failed to open %s: %v", track, err)
		}
		log.Printf("Loaded track: %s", track)

		if *autoPlay {
			if err := controller.Play(); err != nil {
				log.Fatalf("Failed to start playback: %v", err)
			}
		}
	}

	if useTUI {
		if err := ui.Run(controller); err != nil {
			log.Printf("TUI error: %v", err)
		}
	} else {
		// Headless mode: play until the process is signalled.
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	if err := controller.Close(); err != nil {
		log.Printf("Error closing player: %v", err)
	}

	log.Printf("Player stopped")
}
