package ebay

import "strings"

// Region is an eBay marketplace identifier (a "global ID" such as EBAY_US).
type Region string

// Supported marketplaces.
const (
	RegionUS    Region = "EBAY_US"    // eBay United States
	RegionENCA  Region = "EBAY_ENCA"  // eBay Canada (English)
	RegionGB    Region = "EBAY_GB"    // eBay UK
	RegionAU    Region = "EBAY_AU"    // eBay Australia
	RegionAT    Region = "EBAY_AT"    // eBay Austria
	RegionFRBE  Region = "EBAY_FRBE"  // eBay Belgium (French)
	RegionFR    Region = "EBAY_FR"    // eBay France
	RegionDE    Region = "EBAY_DE"    // eBay Germany
	RegionMOTOR Region = "EBAY_MOTOR" // eBay Motors
	RegionIT    Region = "EBAY_IT"    // eBay Italy
	RegionNLBE  Region = "EBAY_NLBE"  // eBay Belgium (Dutch)
	RegionNL    Region = "EBAY_NL"    // eBay Netherlands
	RegionES    Region = "EBAY_ES"    // eBay Spain
	RegionCH    Region = "EBAY_CH"    // eBay Switzerland
	RegionHK    Region = "EBAY_HK"    // eBay Hong Kong
	RegionIN    Region = "EBAY_IN"    // eBay India
	RegionIE    Region = "EBAY_IE"    // eBay Ireland
	RegionMY    Region = "EBAY_MY"    // eBay Malaysia
	RegionFRCA  Region = "EBAY_FRCA"  // eBay Canada (French)
	RegionPH    Region = "EBAY_PH"    // eBay Philippines
	RegionPL    Region = "EBAY_PL"    // eBay Poland
	RegionSG    Region = "EBAY_SG"    // eBay Singapore
)

// DefaultRegion is used whenever a region is unset or has no entry in a table.
const DefaultRegion = RegionUS

// String returns the marketplace identifier.
func (r Region) String() string {
	return string(r)
}

// Known reports whether r is one of the supported marketplaces.
func (r Region) Known() bool {
	_, ok := regionIndex[r]
	return ok
}

// regionInfo is the static data held for one marketplace.
type regionInfo struct {
	region         Region
	siteCode       int
	marketplaceURL string
}

// regionTable lists every marketplace in display order.
var regionTable = []regionInfo{
	{region: RegionUS, siteCode: 0, marketplaceURL: "https://www.ebay.com"},
	{region: RegionENCA, siteCode: 2, marketplaceURL: "https://www.ebay.ca"},
	{region: RegionGB, siteCode: 3, marketplaceURL: "https://www.ebay.co.uk"},
	{region: RegionAU, siteCode: 15, marketplaceURL: "https://www.ebay.com.au"},
	{region: RegionAT, siteCode: 16, marketplaceURL: "https://www.ebay.at"},
	{region: RegionFRBE, siteCode: 23, marketplaceURL: "https://www.befr.ebay.be"},
	{region: RegionFR, siteCode: 71, marketplaceURL: "https://www.ebay.fr"},
	{region: RegionDE, siteCode: 77, marketplaceURL: "https://www.ebay.de"},
	{region: RegionMOTOR, siteCode: 100, marketplaceURL: "https://www.ebay.com/motors"},
	{region: RegionIT, siteCode: 101, marketplaceURL: "https://www.ebay.it"},
	{region: RegionNLBE, siteCode: 123, marketplaceURL: "https://www.benl.ebay.be"},
	{region: RegionNL, siteCode: 146, marketplaceURL: "https://www.ebay.nl"},
	{region: RegionES, siteCode: 186, marketplaceURL: "https://www.ebay.es"},
	{region: RegionCH, siteCode: 193, marketplaceURL: "https://www.ebay.ch"},
	{region: RegionHK, siteCode: 201, marketplaceURL: "https://www.ebay.com.hk"},
	{region: RegionIN, siteCode: 203, marketplaceURL: "https://www.ebay.in"},
	{region: RegionIE, siteCode: 205, marketplaceURL: "https://www.ebay.ie"},
	{region: RegionMY, siteCode: 207, marketplaceURL: "https://www.ebay.com.my"},
	{region: RegionFRCA, siteCode: 210, marketplaceURL: "https://www.cafr.ebay.ca"},
	{region: RegionPH, siteCode: 211, marketplaceURL: "https://www.ebay.ph"},
	{region: RegionPL, siteCode: 212, marketplaceURL: "https://www.ebay.pl"},
	{region: RegionSG, siteCode: 216, marketplaceURL: "https://www.ebay.com.sg"},
}

var regionIndex = indexRegions(regionTable)

func indexRegions(table []regionInfo) map[Region]regionInfo {
	index := make(map[Region]regionInfo, len(table))
	for _, info := range table {
		index[info.region] = info
	}
	return index
}

// localeRegions maps a normalized locale (lowercase language, uppercase
// country, underscore separated) to its default marketplace.
var localeRegions = map[string]Region{
	"en_US": RegionUS,
	"en_CA": RegionENCA,
	"fr_CA": RegionFRCA,
	"en_GB": RegionGB,
	"en_AU": RegionAU,
	"de_AT": RegionAT,
	"fr_BE": RegionFRBE,
	"nl_BE": RegionNLBE,
	"fr_FR": RegionFR,
	"de_DE": RegionDE,
	"it_IT": RegionIT,
	"nl_NL": RegionNL,
	"es_ES": RegionES,
	"de_CH": RegionCH,
	"zh_HK": RegionHK,
	"en_IN": RegionIN,
	"en_IE": RegionIE,
	"en_MY": RegionMY,
	"en_PH": RegionPH,
	"pl_PL": RegionPL,
	"en_SG": RegionSG,
}

// Regions returns every supported marketplace in a stable order.
func Regions() []Region {
	out := make([]Region, len(regionTable))
	for i, info := range regionTable {
		out[i] = info.region
	}
	return out
}

// ParseRegion resolves a marketplace identifier case-insensitively.
// It reports false for identifiers outside the supported set.
func ParseRegion(s string) (Region, bool) {
	r := Region(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Known() {
		return "", false
	}
	return r, true
}

// SiteCode returns the legacy Trading API site id for region.
func SiteCode(region Region) (int, bool) {
	info, ok := regionIndex[region]
	if !ok {
		return 0, false
	}
	return info.siteCode, true
}

// MarketplaceURL returns the public storefront URL for region.
func MarketplaceURL(region Region) (string, bool) {
	info, ok := regionIndex[region]
	if !ok || info.marketplaceURL == "" {
		return "", false
	}
	return info.marketplaceURL, true
}

// RegionForLocale returns the marketplace for a locale such as "fr_FR" or
// "de-AT", and false when the locale has none.
func RegionForLocale(locale string) (Region, bool) {
	region, ok := localeRegions[normalizeLocale(locale)]
	return region, ok
}

// DefaultRegionForLocale is RegionForLocale with unknown locales resolved to
// DefaultRegion.
func DefaultRegionForLocale(locale string) Region {
	if region, ok := RegionForLocale(locale); ok {
		return region
	}
	return DefaultRegion
}

func normalizeLocale(locale string) string {
	lang, country, found := strings.Cut(strings.ReplaceAll(strings.TrimSpace(locale), "-", "_"), "_")
	if !found {
		return strings.ToLower(lang)
	}
	return strings.ToLower(lang) + "_" + strings.ToUpper(country)
}

// siteCodeOrDefault returns the site id for region, falling back to the
// default region's code.
func siteCodeOrDefault(region Region) int {
	if code, ok := SiteCode(region); ok {
		return code
	}
	code, _ := SiteCode(DefaultRegion)
	return code
}
