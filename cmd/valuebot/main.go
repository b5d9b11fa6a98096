package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"valuebot/internal/analytics"
	"valuebot/internal/assistant"
	"valuebot/internal/bot"
	"valuebot/internal/bus"
	"valuebot/internal/config"
	"valuebot/internal/conversation"
	"valuebot/internal/httpapi"
	"valuebot/internal/ipc"
	"valuebot/internal/proxy"
	"valuebot/internal/session"
	"valuebot/internal/store"
	"valuebot/internal/telegram"
	"valuebot/internal/tts"
	"valuebot/internal/vision"
	"valuebot/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	configFile := cli.StringP("config", "c", "", "YAML config file")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address (overrides SOCKS_PROXY)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	logJSON := cli.Bool("log-json", false, "Log as JSON")
	cli.Parse()

	opts := &log.HandlerOptions{Level: logLevelMap[*logLevel]}
	if *logJSON {
		log.SetDefault(log.New(log.NewJSONHandler(os.Stdout, opts)))
	} else {
		log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{Level: opts.Level})))
	}

	log.Info("Booting up")

	if err := godotenv.Load(*envFile); err != nil {
		log.Debug("No env file", "path", *envFile)
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *proxyAddr != "" {
		cfg.SocksProxy = *proxyAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("Shut down")
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpClient, err := proxy.NewHTTPClient(cfg.SocksProxy)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.SocksProxy, "err", err)
		return err
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.OpenAIKey),
		option.WithHTTPClient(httpClient),
	)

	if cfg.KnowledgeFile != "" {
		storeID, err := assistant.ProvisionKnowledge(ctx, client, cfg.AssistantID, cfg.KnowledgeFile)
		if err != nil {
			log.Error("Failed to provision knowledge", "file", cfg.KnowledgeFile, "err", err)
			return err
		}
		log.Info("Knowledge attached", "vector_store", storeID)
	}

	values, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to open values store", "err", err)
		return err
	}
	defer values.Close()

	sessions, err := openSessions(cfg)
	if err != nil {
		log.Error("Failed to open session store", "err", err)
		return err
	}
	defer sessions.Close()

	log.Debug("Loaded stores")

	remote := assistant.NewOpenAI(client, cfg.AssistantID)
	resolver := assistant.NewResolver(remote, store.NewSaver(values),
		assistant.WithBackoff(assistant.Backoff{
			Initial:    cfg.Run.PollInterval,
			Max:        cfg.Run.MaxPollInterval,
			Multiplier: 1.5,
			Timeout:    cfg.Run.Timeout,
		}),
	)
	tracker := conversation.NewTracker(sessions, remote, resolver, log.Default())

	engine, closeSTT, err := openSTT(cfg, client)
	if err != nil {
		log.Error("Failed to init speech recognition", "backend", cfg.STT.Backend, "err", err)
		return err
	}
	defer closeSTT()

	events := analytics.New(cfg.AmplitudeKey)
	defer events.Close()

	b := bot.New(bot.Deps{
		Conversation: tracker,
		STT:          engine,
		TTS:          tts.NewSpeaker(client, cfg.Speech.Model, cfg.Speech.Voice),
		Vision:       vision.NewMoodAnalyzer(client, cfg.VisionModel),
		Values:       values,
		Events:       events,
		VoiceReplies: cfg.Speech.VoiceReplies,
	})

	disp := bot.NewDispatcher(cfg.Workers, cfg.Workers*16, b)
	disp.Start(ctx)
	defer disp.Stop()

	log.Info("Boot up - successful")

	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	spawn := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Component failed", "component", name, "err", err)
				errCh <- err
			}
		}()
	}

	var webhook http.Handler
	if cfg.TelegramToken != "" {
		tg, err := telegram.New(cfg.TelegramToken, httpClient)
		if err != nil {
			return err
		}
		if cfg.WebhookURL != "" {
			if err := tg.SetWebhook(cfg.WebhookURL); err != nil {
				return err
			}
			webhook = tg.WebhookHandler(ctx, disp)
		} else {
			spawn("telegram", func() error { return tg.Poll(ctx, disp) })
		}
	}

	if cfg.BusURL != "" {
		shard := bus.New(cfg.BusURL, "valuebot", httpClient)
		spawn("bus", func() error { return shard.Run(ctx, disp) })
	}

	if cfg.ControlSocket != "" {
		ctl := ipc.Control{Sessions: sessions, Resetter: tracker, Values: values}
		srv, err := ipc.Listen(cfg.ControlSocket, ctl.Handle)
		if err != nil {
			log.Error("Failed ipc server", "err", err)
			return err
		}
		go srv.Serve(ctx)
		defer srv.Close()
	}

	if cfg.HTTPAddr != "" {
		router := httpapi.NewRouter(httpapi.Deps{Values: values, Sessions: sessions, Webhook: webhook})
		spawn("http", func() error { return httpapi.Serve(ctx, cfg.HTTPAddr, router) })
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	log.Info("Shutting down")
	cancel()
	stopWait(&wg, 15*time.Second)
	return runErr
}

func openSessions(cfg *config.Config) (session.Store, error) {
	if cfg.SessionStore == config.SessionBolt {
		return session.NewBoltStore(cfg.SessionDBPath)
	}
	return session.NewMemoryStore(), nil
}

func openSTT(cfg *config.Config, client openai.Client) (stt.Engine, func(), error) {
	opt := stt.Options{Language: cfg.STT.Language}
	if cfg.STT.Backend == config.STTWhisper {
		w, err := stt.NewWhisper(cfg.STT.WhisperModel, opt)
		if err != nil {
			return nil, nil, err
		}
		return w, func() { _ = w.Close() }, nil
	}
	return stt.NewOpenAI(client, opt), func() {}, nil
}

// stopWait waits for components to drain, giving up after d.
func stopWait(wg *sync.WaitGroup, d time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		log.Warn("Components did not stop in time")
	}
}
