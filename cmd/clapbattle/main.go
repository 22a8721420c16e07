package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clapbattle/internal/audio"
	"clapbattle/internal/clap"
	"clapbattle/internal/config"
	"clapbattle/internal/llm"
	"clapbattle/internal/metrics"
	"clapbattle/internal/server"
	"clapbattle/internal/state"
	"clapbattle/internal/tts"
	"clapbattle/internal/verse"
)

func main() {
	var (
		envFile = flag.String("env", ".env", "Path to a .env file")
		addr    = flag.String("addr", "", "Listen address (overrides CLAPBATTLE_ADDR)")
		wavPath = flag.String("wav", "", "Replay a WAV file instead of listening to the microphone")
		mute    = flag.Bool("mute", false, "Disable the spoken announcer")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *mute {
		cfg.SpeechEnabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics("clapbattle")
	hub := server.NewHub(m)

	sources, err := newSourceFactory(cfg, *wavPath)
	if err != nil {
		log.Fatalf("Failed to prepare loudness source: %v", err)
	}

	speech, closeSpeech := newSpeech(cfg)
	defer closeSpeech()

	manager := state.NewManager(state.Options{
		Generator: verse.NewGenerator(newRouter(ctx, cfg)),
		Sources:   sources,
		Clap: clap.Config{
			Duration:      cfg.ClapDuration,
			CountdownFrom: cfg.CountdownFrom,
			Tick:          time.Second,
			FrameInterval: time.Second / 60,
			Smoothing:     clap.DefaultSmoothing,
		},
		Speech:  speech,
		Sink:    hub,
		Metrics: m,
	})
	defer manager.Close()

	srv := server.New(ctx, manager, hub, m)
	if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Goodbye")
}

// newRouter picks the chat provider. Without a credential every generation
// fails fast with the configuration error while the rest of the app runs.
func newRouter(ctx context.Context, cfg config.Config) *llm.Router {
	var primary llm.ChatClient
	if err := cfg.CheckGenerationCredential(); err != nil {
		log.Printf("Verse generation disabled: %v", err)
		primary = llm.Unavailable(err)
	} else if cfg.Provider == "openai" {
		primary = llm.NewOpenAISDKClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	} else {
		primary = llm.NewClientWithConfig(cfg.GitHubToken, cfg.ModelsBaseURL, nil)
	}

	router := llm.NewRouter(primary)
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Printf("Gemini models disabled: %v", err)
		} else {
			router.WithGemini(gemini)
		}
	}
	return router
}

func newSourceFactory(cfg config.Config, wavPath string) (state.SourceFactory, error) {
	if wavPath != "" {
		src, err := audio.NewFileSource(wavPath, audio.FileSourceConfig{
			Sensitivity: cfg.Sensitivity,
			Loop:        true,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("Replaying %s instead of the microphone", wavPath)
		return func() clap.LoudnessSource { return src }, nil
	}

	samplerCfg := audio.SamplerConfig{
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.FramesPerBuffer,
		Sensitivity:     cfg.Sensitivity,
	}
	return func() clap.LoudnessSource { return audio.NewSampler(samplerCfg) }, nil
}

func newSpeech(cfg config.Config) (tts.TextAnnouncer, func()) {
	if !cfg.SpeechEnabled || cfg.OpenAIAPIKey == "" {
		log.Println("Spoken announcer disabled")
		return tts.Silent{}, func() {}
	}

	out, err := audio.NewOutput(audio.DefaultOutputRate)
	if err != nil {
		log.Printf("Spoken announcer disabled: %v", err)
		return tts.Silent{}, func() {}
	}
	synth := tts.NewOpenAISynthesizer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TTSModel, cfg.TTSVoice)
	return tts.NewSpeaker(synth, out), func() {
		if err := out.Close(); err != nil {
			log.Printf("Failed to close audio output: %v", err)
		}
	}
}
