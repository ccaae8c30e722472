package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-ebay/providers/ebay"
)

// pkceMethod is the only challenge method the CLI generates.
const pkceMethod = "S256"

func authorizeURLCmd() *cobra.Command {
	var (
		usePKCE bool
		prompt  string
		locale  string
	)

	cmd := &cobra.Command{
		Use:   "authorize-url [state]",
		Short: "Print the consent URL for the configured application",
		Long: "Prints the eBay consent page URL. A random state is generated when none\n" +
			"is given. With --pkce a code verifier is generated and printed; pass it\n" +
			"to the token exchange.",
		Example: `  ebay-oauth authorize-url --region EBAY_FR --prompt login
  ebay-oauth authorize-url my-state --pkce`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvider(viper.GetViper())
			if err != nil {
				return err
			}

			state := oauth2.GenerateVerifier()
			if len(args) == 1 {
				state = args[0]
			}

			opts := ebay.AuthOptions{Prompt: prompt, Locale: locale}
			var verifier string
			if usePKCE {
				verifier = oauth2.GenerateVerifier()
				opts.CodeChallenge = oauth2.S256ChallengeFromVerifier(verifier)
				opts.CodeChallengeMethod = pkceMethod
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, p.AuthorizationURLWithOptions(state, opts)); err != nil {
				return err
			}
			if verifier != "" {
				_, err = fmt.Fprintf(cmd.ErrOrStderr(), "state: %s\ncode verifier: %s\n", state, verifier)
				return err
			}
			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "state: %s\n", state)
			return err
		},
	}
	cmd.Flags().BoolVar(&usePKCE, "pkce", false, "add a PKCE S256 code challenge")
	cmd.Flags().StringVar(&prompt, "prompt", "", `eBay prompt parameter, e.g. "login"`)
	cmd.Flags().StringVar(&locale, "locale", "", "consent page locale, e.g. fr-FR")

	return cmd
}
