package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/plwatch/internal/server"
	"github.com/desertthunder/plwatch/internal/services"
	"github.com/desertthunder/plwatch/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// oauthProvider is the part of a service needed to run the authorization-code flow.
type oauthProvider interface {
	Name() string
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
}

// Auth performs the OAuth2 flow for Spotify and saves the tokens to the config file.
//
// Starts a local HTTP server, opens the browser for user authorization and exchanges the code for tokens.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	sp := config.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	spotifyService, err := services.NewSpotifyService(sp.Map())
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(ctx, config, spotifyService)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	return r.writePlain("✓ Tokens saved to %s\n", r.configPath)
}

// doOAuth executes the OAuth2 authorization flow with a local callback server.
func (r *Runner) doOAuth(ctx context.Context, config *shared.Config, provider oauthProvider) (*oauth2.Token, error) {
	state := shared.GenerateState()
	authURL := provider.GetAuthURL(state)

	oauthHandler := server.NewOAuthHandler(provider.GetOAuthConfig(), state, provider.Name())
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.LogRequests(r.logger))
	router.Handler(oauthHandler)

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	ready := make(chan string, 1)
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Serve(srvCtx, addr, router, r.logger, ready)
	}()

	select {
	case bound := <-ready:
		r.logger.Infof("OAuth callback server for %s listening at %v", provider.Name(), bound)
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	}

	r.writePlain("→ Opening browser for %s authorization...\n", provider.Name())
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)
	token, err := oauthHandler.Wait(ctx, authTimeout)

	stop()
	if serr := <-serverErrors; serr != nil {
		r.logger.Warn("error shutting down server", "error", serr)
	}

	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return token, nil
}
