package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"yaprooms/internal/chat"
	"yaprooms/internal/config"
	"yaprooms/internal/logging"
	"yaprooms/internal/p2p"
	"yaprooms/internal/ui"
	"yaprooms/internal/web"
)

// DefaultRunners wires the chat TUI and the HTTP server to a libp2p node.
func DefaultRunners() Runners {
	return Runners{Chat: runChatApp, Serve: runServeApp}
}

func startNode(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*p2p.Node, error) {
	return p2p.NewNode(ctx, p2p.Config{
		ListenAddrs: cfg.Listen,
		KeyFile:     cfg.KeyFile,
		Logger:      logger,
	})
}

func runChatApp(ctx context.Context, s Settings) (err error) {
	logFile := s.Config.LogFile
	if logFile == "" {
		if dir := config.DefaultDir(); dir != "" {
			logFile = filepath.Join(dir, "yap.log")
		}
	}
	// The terminal belongs to the UI, so logs only go to a file.
	logger, closer, err := logging.New(logging.Options{Level: s.Config.LogLevel, File: logFile})
	if err != nil {
		return err
	}
	defer closer.Close()

	node, err := startNode(ctx, s.Config, logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, node.Close()) }()

	presenter := ui.NewPresenter()
	defer presenter.Close()
	svc := chat.NewService(chat.Options{
		Network:     node,
		Presenter:   presenter,
		Logger:      logger,
		JoinTimeout: s.Config.JoinTimeout.Duration,
	})
	defer svc.Close()

	cmds := ui.NewCommands(svc, s.Config.Name)
	return ui.Run(cmds, presenter, s.Create || s.Ticket != "", s.Ticket)
}

func runServeApp(ctx context.Context, s Settings) (err error) {
	logger, closer, err := logging.New(logging.Options{
		Level:    s.Config.LogLevel,
		File:     s.Config.LogFile,
		Fallback: os.Stderr,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	node, err := startNode(ctx, s.Config, logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, node.Close()) }()

	hub := web.NewHub(&logger)
	svc := chat.NewService(chat.Options{
		Network:     node,
		Presenter:   hub,
		Logger:      logger,
		JoinTimeout: s.Config.JoinTimeout.Duration,
	})
	defer svc.Close()

	if s.Create || s.Ticket != "" {
		joined, err := svc.CreateOrJoin(ctx, s.Config.Name, s.Ticket)
		if err != nil {
			return err
		}
		logger.Info().Str("key", joined.Key).Str("ticket", joined.Ticket).Msg("room ready")
	}

	srv := web.NewServer(web.Config{
		Logger:      &logger,
		Service:     svc,
		Hub:         hub,
		ListenAddr:  s.Config.HTTPAddr,
		DefaultName: s.Config.Name,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 1)
	)
	wg.Add(1)
	go srv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
	return err
}
