package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-ebay/providers/ebay"
)

const (
	defaultListenAddr = "127.0.0.1:8085"

	// loginTimeout bounds how long login waits for the browser callback.
	loginTimeout = 10 * time.Minute
)

func loginCmd() *cobra.Command {
	var opts loginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Run the authorization code flow and print the user token",
		Long: "Starts a local callback listener, opens the consent page and waits for\n" +
			"eBay to redirect back with an authorization code. The code is exchanged\n" +
			"for a user token, the token owner's eBay user id is resolved, and the\n" +
			"token is printed as JSON. The application's RuName must redirect to the\n" +
			"listener address.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, viper.GetViper(), opts)
		},
	}
	cmd.Flags().String("listen", defaultListenAddr, "address of the local callback listener")
	cmd.Flags().BoolVar(&opts.pkce, "pkce", false, "use a PKCE S256 code challenge")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", `eBay prompt parameter, e.g. "login"`)
	cmd.Flags().BoolVar(&opts.skipOwner, "skip-owner", false, "do not resolve the token owner")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "print the consent URL without opening a browser")
	cobra.CheckErr(viper.BindPFlag(keyListen, cmd.Flags().Lookup("listen")))

	return cmd
}

type loginOptions struct {
	pkce      bool
	prompt    string
	skipOwner bool
	noBrowser bool
}

func runLogin(cmd *cobra.Command, v *viper.Viper, opts loginOptions) error {
	p, err := newProvider(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	state := oauth2.GenerateVerifier()
	authOpts := ebay.AuthOptions{Prompt: opts.prompt}
	var verifier string
	if opts.pkce {
		verifier = oauth2.GenerateVerifier()
		authOpts.CodeChallenge = oauth2.S256ChallengeFromVerifier(verifier)
		authOpts.CodeChallengeMethod = pkceMethod
	}

	ln, err := net.Listen("tcp", v.GetString(keyListen))
	if err != nil {
		return fmt.Errorf("starting callback listener: %w", err)
	}

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback listener failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := p.AuthorizationURLWithOptions(state, authOpts)
	if opts.noBrowser {
		fmt.Fprintf(cmd.ErrOrStderr(), "Open this URL in your browser:\n\n  %s\n\n", authURL)
	} else if err := browser.OpenURL(authURL); err != nil {
		logger.Warn("Failed to open browser", "error", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "Open this URL in your browser:\n\n  %s\n\n", authURL)
	}
	logger.Info("Waiting for authorization callback", "listen", ln.Addr().String())

	var code string
	select {
	case res := <-results:
		if res.err != nil {
			return res.err
		}
		code = res.code
	case <-ctx.Done():
		return fmt.Errorf("waiting for authorization callback: %w", ctx.Err())
	}

	token, err := p.ExchangeToken(ctx, code, verifier)
	if err != nil {
		return err
	}
	logger.Info("Obtained user token",
		"region", p.Region(),
		"expires", token.Expiry,
		"refresh_token_expires", token.RefreshTokenExpiry())

	if !opts.skipOwner {
		user, err := p.ResourceOwner(ctx, token)
		if err != nil {
			return err
		}
		id, _ := user.ID()
		logger.Info("Resolved token owner", "user_id", id)
	}

	return printJSON(cmd.OutOrStdout(), token)
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler receives eBay's redirect. Only the first result is
// delivered; later requests are answered but dropped.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	deliver := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(callbackResult{err: errors.New("authorization callback state mismatch")})
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization failed: "+e, http.StatusBadRequest)
			deliver(callbackResult{err: fmt.Errorf("authorization failed: %s: %s", e, q.Get("error_description"))})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(callbackResult{err: errors.New("authorization callback without code")})
			return
		}

		_, _ = fmt.Fprintln(w, "Authorization received. You can close this window.")
		deliver(callbackResult{code: code})
	})
}
