package cmd

import (
	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth2-ebay/providers/ebay"
)

func regionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List supported eBay marketplaces",
		Long: "Lists every marketplace id with its Trading API site id, storefront URL\n" +
			"and whether it has dedicated OAuth endpoints in sandbox and production.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := newTabWriter(cmd.OutOrStdout())
			tw.writef("REGION\tSITE_ID\tMARKETPLACE\tSANDBOX_ENDPOINTS\tPRODUCTION_ENDPOINTS\n")
			for _, region := range ebay.Regions() {
				siteID, _ := ebay.SiteCode(region)
				marketplace, _ := ebay.MarketplaceURL(region)
				tw.writef("%s\t%d\t%s\t%s\t%s\n",
					region,
					siteID,
					marketplace,
					endpointKind(ebay.Sandbox, region),
					endpointKind(ebay.Production, region),
				)
			}
			return tw.finish()
		},
	}
}

func endpointKind(mode ebay.Mode, region ebay.Region) string {
	if ebay.HasDedicatedEndpoints(mode, region) {
		return "dedicated"
	}
	return "default"
}
