package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/giantswarm/oauth2-ebay/providers/ebay"
)

type endpointsOutput struct {
	Region      string `json:"region" yaml:"region"`
	Mode        string `json:"mode" yaml:"mode"`
	SiteID      int    `json:"site_id" yaml:"site_id"`
	Fallback    bool   `json:"fallback" yaml:"fallback"`
	AuthURL     string `json:"authorize_url" yaml:"authorize_url"`
	TokenURL    string `json:"token_url" yaml:"token_url"`
	UserInfoURL string `json:"user_info_url" yaml:"user_info_url"`
	APIFamily   string `json:"user_info_api" yaml:"user_info_api"`
}

func endpointsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "Print the OAuth endpoints for the configured region",
		Example: `  ebay-oauth endpoints --region EBAY_FR
  ebay-oauth endpoints --region EBAY_DE --sandbox --output json
  ebay-oauth endpoints --output yaml > endpoints.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := resolveEndpoints(viper.GetViper())
			if err != nil {
				return err
			}
			switch output {
			case "json":
				return printJSON(cmd.OutOrStdout(), out)
			case "yaml":
				return printYAML(cmd.OutOrStdout(), out)
			}

			tw := newTabWriter(cmd.OutOrStdout())
			tw.writef("Region:\t%s\n", out.Region)
			tw.writef("Mode:\t%s\n", out.Mode)
			tw.writef("Site ID:\t%d\n", out.SiteID)
			tw.writef("Fallback:\t%v\n", out.Fallback)
			tw.writef("Authorize:\t%s\n", out.AuthURL)
			tw.writef("Token:\t%s\n", out.TokenURL)
			tw.writef("User info:\t%s (%s)\n", out.UserInfoURL, out.APIFamily)
			return tw.finish()
		},
	}
	cmd.Flags().StringVar(&output, "output", "table", "output format (table, json, yaml)")

	return cmd
}

func resolveEndpoints(v *viper.Viper) (*endpointsOutput, error) {
	region, ok := ebay.ParseRegion(v.GetString(keyRegion))
	if !ok {
		return nil, fmt.Errorf("unknown region %q (see 'ebay-oauth regions')", v.GetString(keyRegion))
	}
	mode := ebay.ModeFor(v.GetBool(keySandbox))
	endpoints := ebay.Resolve(mode, region)
	siteID, _ := ebay.SiteCode(region)

	return &endpointsOutput{
		Region:      region.String(),
		Mode:        mode.String(),
		SiteID:      siteID,
		Fallback:    !ebay.HasDedicatedEndpoints(mode, region),
		AuthURL:     endpoints.AuthURL,
		TokenURL:    endpoints.TokenURL,
		UserInfoURL: endpoints.UserInfoURL,
		APIFamily:   ebay.FamilyForURL(endpoints.UserInfoURL).String(),
	}, nil
}
