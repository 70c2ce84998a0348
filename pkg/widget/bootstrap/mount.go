package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatwidget/pkg/widget/api"
	"github.com/go-go-golems/chatwidget/pkg/widget/controller"
	"github.com/go-go-golems/chatwidget/pkg/widget/identity"
	"github.com/go-go-golems/chatwidget/pkg/widget/usage"
)

// ErrBootstrapAborted wraps every failure that prevents the widget from
// mounting.
var ErrBootstrapAborted = errors.New("widget bootstrap aborted")

type Options struct {
	TenantID string
	BaseURL  string
	Storage  identity.Storage
	// Timeout bounds each widget request; zero disables it.
	Timeout time.Duration
	// RatingCloseDelay is nil for controller.DefaultRatingCloseDelay; zero
	// closes the panel as soon as the rating is stored.
	RatingCloseDelay *time.Duration
	Observer         controller.Observer
	HTTPClient       *http.Client
}

// Widget is one mounted widget instance.
type Widget struct {
	Controller *controller.Controller
	Config     api.TenantConfig
	Client     *api.Client
	Identity   *identity.Store
}

// Mount resolves the visitor identity, loads the tenant config and builds the
// controller. Any failure, including a panic, is logged and returned wrapped in
// ErrBootstrapAborted; nothing is mounted in that case.
func Mount(ctx context.Context, opts Options) (w *Widget, err error) {
	logger := log.With().Str("component", "bootstrap").Str("tenant", opts.TenantID).Logger()
	defer func() {
		if r := recover(); r != nil {
			w = nil
			err = errors.Wrap(ErrBootstrapAborted, fmt.Sprintf("panic: %v", r))
			logger.Error().Interface("panic", r).Msg("WebChat Widget Error")
		}
	}()

	tenantID := strings.TrimSpace(opts.TenantID)
	if tenantID == "" {
		logger.Error().Msg("WebChat Widget: Missing data-chatbot-id attribute")
		return nil, errors.Wrap(ErrBootstrapAborted, "missing tenant id")
	}

	clientOpts := []api.ClientOption{api.WithTimeout(opts.Timeout)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(opts.HTTPClient))
	}
	client, err := api.NewClient(opts.BaseURL, clientOpts...)
	if err != nil {
		logger.Error().Err(err).Msg("WebChat Widget Error")
		return nil, errors.Wrap(ErrBootstrapAborted, err.Error())
	}

	store := identity.NewStore(opts.Storage)
	sessionID := store.GetOrCreateSessionID(ctx, tenantID)

	cfg, err := LoadConfig(ctx, client, tenantID, sessionID)
	if err != nil {
		logger.Error().Err(err).Msg("WebChat Widget Error: failed to load chatbot config")
		return nil, errors.Wrap(ErrBootstrapAborted, err.Error())
	}

	var ctrlOpts []controller.Option
	if opts.RatingCloseDelay != nil {
		ctrlOpts = append(ctrlOpts, controller.WithRatingCloseDelay(*opts.RatingCloseDelay))
	}
	if opts.Observer != nil {
		ctrlOpts = append(ctrlOpts, controller.WithObserver(opts.Observer))
	}
	ctrl := controller.New(tenantID, sessionID, cfg, client, usage.NewCoordinator(client), ctrlOpts...)

	logger.Info().Str("session", sessionID).Str("name", cfg.Name).Msg("widget mounted")
	return &Widget{Controller: ctrl, Config: cfg, Client: client, Identity: store}, nil
}
