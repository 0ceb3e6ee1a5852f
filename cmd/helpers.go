package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/viper"

	"github.com/transitwatch/transitwatch/pkg/auth"
	"github.com/transitwatch/transitwatch/pkg/client"
	"github.com/transitwatch/transitwatch/pkg/config"
	"github.com/transitwatch/transitwatch/pkg/logger"
	"github.com/transitwatch/transitwatch/pkg/tokenstore"
	"github.com/transitwatch/transitwatch/pkg/utils"
)

// appContext is the wired client stack every command runs against
type appContext struct {
	cfg        *config.Config
	tokens     tokenstore.Store
	jar        *auth.PersistentJar
	controller *auth.Controller
	api        *client.Client
}

// newAppContext loads configuration and wires the token store, cookie jar,
// session controller and API client together
func newAppContext() (*appContext, error) {
	cfgPath := viper.GetString("config")

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Printf("Failed to load config from %s, trying environment variables: %v", cfgPath, err)
		cfg, err = config.LoadConfig("")
		if err != nil {
			return nil, fmt.Errorf("no usable configuration: %w", err)
		}
	}
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("api_base_url is not configured")
	}

	jar, err := auth.NewPersistentJar(cfg.CookiePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie jar: %w", err)
	}

	tokens, err := tokenstore.NewStore(cfg.Storage, cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	httpClient := utils.NewHTTPClient(utils.HTTPClientConfig{
		Timeout: cfg.RequestTimeout(),
		Jar:     jar,
	})

	controller, err := auth.NewController(auth.ControllerOptions{
		BaseURL:        cfg.APIBaseURL,
		HTTPClient:     httpClient,
		Tokens:         tokens,
		Navigator:      cliNavigator{},
		Jar:            jar,
		SessionLog:     logger.NewLogger(cfg.LogDir),
		RequestTimeout: cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, err
	}

	api := client.NewClient(cfg.APIBaseURL, tokens, controller.Refresher(), client.WithHTTPClient(httpClient))

	return &appContext{
		cfg:        cfg,
		tokens:     tokens,
		jar:        jar,
		controller: controller,
		api:        api,
	}, nil
}

// requireAuth ensures there is a live session before a protected command
// runs. Without a token it first attempts a silent resume from the
// persisted session credential.
func requireAuth(ctx context.Context, app *appContext) error {
	if app.controller.Gate().Allow() {
		return nil
	}

	app.controller.BootstrapRefresh(ctx)
	if err := app.controller.Gate().Check(); err != nil {
		return fmt.Errorf("not signed in, run 'transitwatch login' first: %w", err)
	}
	return nil
}

// cliNavigator maps session navigation events onto terminal output
type cliNavigator struct{}

func (cliNavigator) NavigateHome() {
	fmt.Println("Signed in.")
}

func (cliNavigator) NavigateLogin() {
	fmt.Println("Signed out.")
}
