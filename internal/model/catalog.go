package model

import (
	"fmt"
	"strings"
)

type CatalogEntry struct {
	Indicator   Indicator
	SeriesID    string
	PctChange   bool
	Title       string
	YAxisLabel  string
	Description string
	Group       Group
}

type Catalog []CatalogEntry

var defaultCatalog = Catalog{
	{
		Indicator:   IndicatorCPI,
		SeriesID:    "CPIAUCSL",
		PctChange:   true,
		Title:       "CPI",
		YAxisLabel:  "Percentage Change (%)",
		Description: "Consumer Price Index (CPI) - Year-over-Year Change",
		Group:       GroupPriceIndices,
	},
	{
		Indicator:   IndicatorFed2Y,
		SeriesID:    "DGS2",
		Title:       "2-Year Treasury Rate",
		YAxisLabel:  "Interest Rate (%)",
		Description: "2-Year Treasury Rate",
		Group:       GroupTreasuryRates,
	},
	{
		Indicator:   IndicatorFed5Y,
		SeriesID:    "DGS5",
		Title:       "5-Year Treasury Rate",
		YAxisLabel:  "Interest Rate (%)",
		Description: "5-Year Treasury Rate",
		Group:       GroupTreasuryRates,
	},
	{
		Indicator:   IndicatorFed10Y,
		SeriesID:    "DGS10",
		Title:       "10-Year Treasury Rate",
		YAxisLabel:  "Interest Rate (%)",
		Description: "10-Year Treasury Rate",
		Group:       GroupTreasuryRates,
	},
	{
		Indicator:   IndicatorFed30Y,
		SeriesID:    "DGS30",
		Title:       "30-Year Treasury Rate",
		YAxisLabel:  "Interest Rate (%)",
		Description: "30-Year Treasury Rate",
		Group:       GroupTreasuryRates,
	},
	{
		Indicator:   IndicatorPPI,
		SeriesID:    "PPIACO",
		PctChange:   true,
		Title:       "PPI",
		YAxisLabel:  "Percentage Change (%)",
		Description: "Producer Price Index (PPI) - Year-over-Year Change",
		Group:       GroupPriceIndices,
	},
	{
		Indicator:   IndicatorUnemployment,
		SeriesID:    "UNRATE",
		Title:       "Unemployment Rate",
		YAxisLabel:  "Unemployment Rate (%)",
		Description: "Unemployment Rate",
		Group:       GroupUnemployment,
	},
	{
		// RSAFS stands in for farm income; FRED has no monthly farm income series.
		Indicator:   IndicatorFarmIncome,
		SeriesID:    "RSAFS",
		Title:       "Farm Income",
		YAxisLabel:  "Billions of Dollars",
		Description: "Farm Income",
		Group:       GroupFarmIncome,
	},
	{
		Indicator:   IndicatorGDP,
		SeriesID:    "GDP",
		Title:       "GDP",
		YAxisLabel:  "Billions of Dollars",
		Description: "Gross Domestic Product (GDP)",
		Group:       GroupGDP,
	},
	{
		Indicator:   IndicatorIndustrialProduction,
		SeriesID:    "INDPRO",
		Title:       "Industrial Production",
		YAxisLabel:  "Percentage Change from Base Year",
		Description: "Industrial Production Index",
		Group:       GroupOther,
	},
	{
		Indicator:   IndicatorRetailSales,
		SeriesID:    "RSAFS",
		Title:       "Retail Sales",
		YAxisLabel:  "Millions of Dollars",
		Description: "Retail Sales",
		Group:       GroupOther,
	},
	{
		Indicator:   IndicatorHousingStarts,
		SeriesID:    "HOUST",
		Title:       "Housing Starts",
		YAxisLabel:  "Thousands of Units",
		Description: "Housing Starts",
		Group:       GroupOther,
	},
}

// DefaultCatalog returns a copy of the fixed indicator table.
func DefaultCatalog() Catalog {
	out := make(Catalog, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

func (c Catalog) Lookup(indicator Indicator) (CatalogEntry, bool) {
	for _, entry := range c {
		if entry.Indicator == indicator {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

func (c Catalog) Names() []Indicator {
	names := make([]Indicator, 0, len(c))
	for _, entry := range c {
		names = append(names, entry.Indicator)
	}
	return names
}

func (c Catalog) InGroup(group Group) Catalog {
	out := make(Catalog, 0)
	for _, entry := range c {
		if entry.Group == group {
			out = append(out, entry)
		}
	}
	return out
}

// ParseIndicator accepts either the catalog key ("fed_10y") or the display
// title ("10-Year Treasury Rate"), case-insensitively.
func (c Catalog) ParseIndicator(value string) (Indicator, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("empty indicator name")
	}
	for _, entry := range c {
		if strings.EqualFold(trimmed, string(entry.Indicator)) || strings.EqualFold(trimmed, entry.Title) {
			return entry.Indicator, nil
		}
	}
	return "", fmt.Errorf("unknown indicator: %s", value)
}

func (c Catalog) ParseIndicators(values []string) ([]Indicator, error) {
	out := make([]Indicator, 0, len(values))
	for _, value := range values {
		indicator, err := c.ParseIndicator(value)
		if err != nil {
			return nil, err
		}
		out = append(out, indicator)
	}
	return out, nil
}
