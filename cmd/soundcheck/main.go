package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clapbattle/internal/audio"
	"clapbattle/internal/clap"
	"clapbattle/internal/config"
	"clapbattle/internal/domain"
)

// consoleMeter draws the meter on a single terminal line.
type consoleMeter struct {
	lastDraw time.Time
}

func (c *consoleMeter) Countdown(label domain.Label, n int) {
	if n > 0 {
		fmt.Printf("\rGet ready... %d   ", n)
		return
	}
	fmt.Printf("\rCLAP NOW!          \n")
}

func (c *consoleMeter) Meter(r clap.Reading) {
	if time.Since(c.lastDraw) < 50*time.Millisecond {
		return
	}
	c.lastDraw = time.Now()

	width := int(r.Display / 2)
	bar := strings.Repeat("#", width) + strings.Repeat(".", 50-width)
	note := ""
	if r.Overdrive {
		note = " OVERDRIVE"
	}
	fmt.Printf("\r[%s] %3.0f peak %3.0f %ds%s   ", bar, r.Display, r.Peak, r.TimeLeft, note)
}

func (c *consoleMeter) TimeLeft(domain.Label, int) {}

func (c *consoleMeter) Completed(domain.ClapScore) {
	fmt.Println()
}

func main() {
	var (
		envFile   = flag.String("env", ".env", "Path to a .env file")
		wavPath   = flag.String("wav", "", "Score a WAV file instead of the microphone")
		duration  = flag.Int("duration", 0, "Listening window in seconds (overrides CLAP_DURATION_SECONDS)")
		countdown = flag.Int("countdown", -1, "Countdown start (overrides CLAP_COUNTDOWN_FROM)")
		asJSON    = flag.Bool("json", false, "Print the final score as JSON")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *duration > 0 {
		cfg.ClapDuration = *duration
	}
	if *countdown >= 0 {
		cfg.CountdownFrom = *countdown
	}

	var source clap.LoudnessSource
	if *wavPath != "" {
		source, err = audio.NewFileSource(*wavPath, audio.FileSourceConfig{Sensitivity: cfg.Sensitivity})
		if err != nil {
			log.Fatalf("Failed to load %s: %v", *wavPath, err)
		}
	} else {
		source = audio.NewSampler(audio.SamplerConfig{
			SampleRate:      cfg.SampleRate,
			FramesPerBuffer: cfg.FramesPerBuffer,
			Sensitivity:     cfg.Sensitivity,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clapCfg := clap.DefaultConfig()
	clapCfg.Duration = cfg.ClapDuration
	clapCfg.CountdownFrom = cfg.CountdownFrom

	session := clap.NewSession(domain.LabelA, source, clapCfg, &consoleMeter{})
	score, err := session.Run(ctx)
	if err != nil {
		log.Fatalf("Soundcheck failed: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(score); err != nil {
			log.Fatalf("Failed to encode score: %v", err)
		}
		return
	}

	fmt.Printf("Score: %d/100\n", score.Score)
	switch {
	case score.Overdrive:
		fmt.Println("OVERDRIVE! The room went wild.")
	case score.TooQuiet:
		fmt.Println("Too quiet. Try clapping closer to the microphone or raise MIC_SENSITIVITY.")
	}
}
