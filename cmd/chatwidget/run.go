package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/chatwidget/pkg/widget/api"
	"github.com/go-go-golems/chatwidget/pkg/widget/bootstrap"
	"github.com/go-go-golems/chatwidget/pkg/widget/controller"
	"github.com/go-go-golems/chatwidget/pkg/widget/identity"
	"github.com/go-go-golems/chatwidget/pkg/widget/lifecycle"
	"github.com/go-go-golems/chatwidget/pkg/widget/render"
	"github.com/go-go-golems/chatwidget/pkg/widget/tui"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the chat widget for a tenant",
		Long: `Open the chat widget for a tenant.

The tenant and backend come either from an embed snippet
(--embed '<script src="https://host/widget.js" data-chatbot-id="abc123"></script>'
or --embed @snippet.html) or from --base-url and --chatbot-id.`,
		RunE: runWidget,
	}
	f := cmd.Flags()
	f.String("embed", "", "Embed snippet, or @file containing one")
	f.String("base-url", "", "Backend origin, e.g. https://chat.example.com")
	f.String("chatbot-id", "", "Tenant (chatbot) id")
	f.Duration("timeout", api.DefaultTimeout, "Per-request timeout, 0 disables it")
	f.Duration("rating-close-delay", controller.DefaultRatingCloseDelay, "How long the rating confirmation stays visible; 0 closes immediately")
	f.Bool("markdown", true, "Render assistant replies as markdown")
	bindFlags(f, map[string]string{
		"embed":              "embed",
		"base-url":           "base-url",
		"chatbot-id":         "chatbot-id",
		"timeout":            "timeout",
		"rating-close-delay": "rating-close-delay",
		"markdown":           "markdown",
	})
	return cmd
}

func runWidget(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("run needs an interactive terminal")
	}
	// the UI owns the screen from here on
	if viper.GetString("log-file") == "" {
		if err := logToFile(appPath("chatwidget.log")); err != nil {
			return err
		}
	}

	target, err := resolveTarget(viper.GetString("embed"), viper.GetString("base-url"), viper.GetString("chatbot-id"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := identity.Open(storageSettings())
	if err != nil {
		// the widget still works, it just forgets the session on exit
		log.Warn().Err(err).Msg("session storage unavailable")
		storage = identity.UnavailableStorage{}
	}
	defer func() { _ = storage.Close() }()

	pub, err := lifecycle.NewPublisher(lifecycleSettings())
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	pubCtx, stopPub := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(pubCtx)
	g.Go(func() error { return pub.Run(gctx) })

	closeDelay := viper.GetDuration("rating-close-delay")
	w, err := bootstrap.Mount(ctx, bootstrap.Options{
		TenantID:         target.TenantID,
		BaseURL:          target.BaseURL,
		Storage:          storage,
		Timeout:          viper.GetDuration("timeout"),
		RatingCloseDelay: &closeDelay,
		Observer:         pub,
	})
	if err != nil {
		stopPub()
		_ = g.Wait()
		return err
	}

	surfaces := render.NewSurfaces(w.Config, render.WithMarkdown(viper.GetBool("markdown")))
	p := tea.NewProgram(tui.New(ctx, w.Controller, surfaces), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = nil
	}

	stopPub()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// logToFile re-initializes the logger to write into path.
func logToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create log directory")
	}
	viper.Set("log-file", path)
	return logging.InitLoggerFromViper()
}
