// Command sensei serves level content to the game client.
//
// It loads the project config from .sensei/, opens the story directory
// (the split layout when levels-index.json exists, the manifest otherwise),
// warms the caches at background priority and starts the content server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/NLarchive/circuit-sensei-sub001/internal/config"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levels"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levelstore"
	"github.com/NLarchive/circuit-sensei-sub001/internal/logging"
	"github.com/NLarchive/circuit-sensei-sub001/internal/server"
	"github.com/NLarchive/circuit-sensei-sub001/internal/taskqueue"
	"github.com/NLarchive/circuit-sensei-sub001/internal/tui"
)

func main() {
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	showTUI := flag.Bool("tui", false, "show the loading screen while content is preloaded")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	if err := run(*projectDir, *showTUI, *debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(projectDir string, showTUI, debug bool) error {
	project := projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	if err := config.InitSenseiDir(absoluteProject); err != nil {
		return fmt.Errorf("init .sensei: %w", err)
	}
	cfg, err := config.Load(absoluteProject)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Mode:  cfg.Project.Logging.Mode,
		File:  cfg.LogFile(),
		Quiet: showTUI,
		Debug: debug,
	})
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := taskqueue.New(taskqueue.WithLogger(logger), taskqueue.WithBaseContext(ctx))
	defer queue.Close()

	catalog, err := openCatalog(cfg, logger)
	if err != nil {
		logger.Error("open story", "dir", cfg.StoryDir(), "error", err)
		return fmt.Errorf("open story %s: %w", cfg.StoryDir(), err)
	}

	preload := queue.Submit(cfg.Project.Queue.Background, func(ctx context.Context) (any, error) {
		if p, ok := catalog.(server.Preloader); ok {
			return nil, p.Preload(ctx)
		}
		_, err := catalog.LoadAllLevels(ctx)
		return nil, err
	})
	if showTUI {
		if err := tui.RunLoading(ctx, queue, preload, tui.WithTitle("Loading circuits")); err != nil {
			if errors.Is(err, tui.ErrInterrupted) {
				return nil
			}
			logger.Error("preload failed", "error", err)
			return fmt.Errorf("preload: %w", err)
		}
	} else {
		go func() {
			if _, err := preload.Wait(ctx); err != nil {
				logger.Warn("preload did not finish", "error", err)
				return
			}
			timings := preload.Timings()
			logger.Info("preload complete", "duration", timings.Finished.Sub(timings.Started).String())
		}()
	}

	settings := server.SettingsFromConfig(cfg)
	if !settings.Enabled {
		if _, err := preload.Wait(ctx); err != nil {
			logger.Error("preload failed", "error", err)
			return fmt.Errorf("preload: %w", err)
		}
		logger.Info("content server disabled; preload finished")
		return nil
	}
	srv, err := server.NewServer(settings, catalog, queue,
		server.WithLogger(logger),
		server.WithProcessor(server.EventProcessorFunc(func(e server.Event) error {
			logger.Info("event", "type", e.Type, "level", e.LevelID, "variant", e.Variant, "session", e.SessionID)
			return nil
		})))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		logger.Error("start server", "error", err)
		return fmt.Errorf("start server: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Serving levels at %s\n", srv.BaseURL())

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	return nil
}

// openCatalog prefers the split story layout and falls back to resolving
// straight from the manifest.
func openCatalog(cfg *config.Config, logger *logging.Logger) (server.Catalog, error) {
	if _, err := os.Stat(filepath.Join(cfg.StoryDir(), levelstore.IndexFile)); err == nil {
		logger.Info("serving split story", "dir", cfg.StoryDir())
		return levelstore.Open(cfg.StoryDir(), levelstore.WithLogger(logger)), nil
	}
	m, err := levels.LoadManifest(cfg.ManifestPath())
	if err != nil {
		return nil, err
	}
	resolver, err := levelstore.NewManifestResolver(m)
	if err != nil {
		return nil, err
	}
	logger.Info("serving manifest", "path", cfg.ManifestPath(), "levels", len(m.Levels))
	return resolver, nil
}
