package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-ebay/providers/ebay"
)

func refreshCmd() *cobra.Command {
	var (
		refreshToken string
		tokenFile    string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh a user token",
		Long: "Obtains a new access token with the refresh token grant. The token is\n" +
			"read from a file written by 'ebay-oauth login' or given as a bare\n" +
			"refresh token. Fields of the stored token that the response does not\n" +
			"replace, such as the owner's user id, are kept.",
		Example: `  ebay-oauth login > token.json
  ebay-oauth refresh --token-file token.json
  ebay-oauth refresh --refresh-token "$EBAY_REFRESH_TOKEN"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, err := loadToken(tokenFile, refreshToken)
			if err != nil {
				return err
			}

			p, err := newProvider(viper.GetViper())
			if err != nil {
				return err
			}

			refreshed, err := p.Refresh(cmd.Context(), current)
			if err != nil {
				return err
			}
			logger.Info("Refreshed user token", "expires", refreshed.Expiry)

			return printJSON(cmd.OutOrStdout(), refreshed)
		},
	}
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token to use")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "JSON token file written by login")

	return cmd
}

// loadToken reads a stored token, or wraps a bare refresh token.
func loadToken(file, refreshToken string) (*ebay.Token, error) {
	switch {
	case file != "" && refreshToken != "":
		return nil, errors.New("--token-file and --refresh-token are mutually exclusive")
	case refreshToken != "":
		return &ebay.Token{Token: &oauth2.Token{RefreshToken: refreshToken}}, nil
	case file == "":
		return nil, errors.New("one of --token-file or --refresh-token is required")
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("opening token file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("decoding token file: %w", err)
	}

	token, err := ebay.NewToken(values)
	if err != nil {
		return nil, fmt.Errorf("loading token file: %w", err)
	}
	return token, nil
}
