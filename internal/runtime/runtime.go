package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/inkstory-labs/ink-core/internal/admission"
	"github.com/inkstory-labs/ink-core/internal/bus"
	"github.com/inkstory-labs/ink-core/internal/config"
	"github.com/inkstory-labs/ink-core/internal/genai"
	"github.com/inkstory-labs/ink-core/internal/httpapi"
	"github.com/inkstory-labs/ink-core/internal/media"
	"github.com/inkstory-labs/ink-core/internal/natsserver"
	"github.com/inkstory-labs/ink-core/internal/store"
	"github.com/inkstory-labs/ink-core/internal/ttsgateway"
)

// Runtime owns the service lifecycle: it wires the store, admission
// control, generators and HTTP surface, runs housekeeping, and tears
// everything down in reverse order on shutdown.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	st, err := store.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded NATS server: %w", err)
	}
	defer embedded.Shutdown()

	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		busClient, err = bus.Connect(ctx, r.cfg.Bus, r.logger)
		if err != nil {
			// lifecycle events are advisory, the service runs without them
			r.logger.Warn("bus unavailable, continuing without lifecycle events",
				slog.String("error", err.Error()))
		}
	}
	defer busClient.Close()

	mediaStore, err := media.NewFSStore(r.cfg.Media, r.logger)
	if err != nil {
		return fmt.Errorf("failed to prepare media dir: %w", err)
	}

	limiter := admission.NewLimiter(st, r.logger)
	defer limiter.Close()
	lock := admission.NewLock(st, r.logger)

	deps := httpapi.Deps{
		Store:   st,
		Limiter: limiter,
		Lock:    lock,
		Stories: r.storyGenerator(),
		Images:  r.imageGenerator(),
		Synth:   r.synthesizer(mediaStore),
		Bus:     busClient,
	}

	api := httpapi.New(r.cfg, deps, r.logger)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.housekeeping(ctx, st)
	}()

	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) storyGenerator() genai.StoryGenerator {
	if r.cfg.Story.APIKey != "" {
		return genai.NewChatStoryGenerator(r.cfg.Story)
	}
	if r.cfg.Environment == "development" {
		r.logger.Warn("story API key not configured, using mock generator")
		return genai.NewMockStoryGenerator()
	}
	return nil
}

func (r *Runtime) imageGenerator() genai.ImageGenerator {
	if !r.cfg.Image.Enabled {
		return nil
	}
	return genai.NewArkImageGenerator(r.cfg.Image)
}

func (r *Runtime) synthesizer(sink ttsgateway.AudioSink) ttsgateway.Synthesizer {
	if !r.cfg.TTS.Enabled {
		return nil
	}
	return ttsgateway.New(r.cfg.TTS, sink, r.logger)
}

// housekeeping reaps generation locks abandoned by crashed requests and
// prunes rate-limit rows that have aged out of every window.
func (r *Runtime) housekeeping(ctx context.Context, st *store.Store) {
	interval := time.Duration(r.cfg.Admission.HousekeepingInterval) * time.Millisecond
	staleAfter := time.Duration(r.cfg.Admission.LockStaleAfter) * time.Millisecond

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		reaped, err := st.ReapLocks(ctx, time.Now().Add(-staleAfter))
		if err != nil {
			r.logger.Warn("lock reap failed", slog.String("error", err.Error()))
		} else if reaped > 0 {
			r.logger.Info("reaped stale generation locks", slog.Int64("count", reaped))
		}

		// the widest quota window is one hour; anything older is dead weight
		pruned, err := st.PruneAllRequestsBefore(ctx, time.Now().Add(-2*time.Hour))
		if err != nil {
			r.logger.Warn("rate limit prune failed", slog.String("error", err.Error()))
		} else if pruned > 0 {
			r.logger.Info("pruned expired rate limit rows", slog.Int64("count", pruned))
		}
	}
}
