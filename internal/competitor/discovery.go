package competitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Discovery suggests competitor URLs when none are supplied. Implementations
// must return an error rather than fabricating suggestions.
type Discovery interface {
	Discover(ctx context.Context, industry string) ([]string, error)
}

// ServiceDiscovery asks an external classification/suggestion service,
// falling back to the static taxonomy when the service is unreachable.
type ServiceDiscovery struct {
	Endpoint string
	Client   *http.Client
	Fallback Discovery
}

// Discover queries the suggestion service for competitor URLs by industry.
func (s *ServiceDiscovery) Discover(ctx context.Context, industry string) ([]string, error) {
	if s.Endpoint == "" {
		return s.fallback(ctx, industry)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	endpoint := s.Endpoint + "?industry=" + url.QueryEscape(industry)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return s.fallback(ctx, industry)
	}
	resp, err := client.Do(req)
	if err != nil {
		return s.fallback(ctx, industry)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.fallback(ctx, industry)
	}

	var payload struct {
		Competitors []string `json:"competitors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return s.fallback(ctx, industry)
	}
	if len(payload.Competitors) == 0 {
		return nil, fmt.Errorf("suggestion service returned no competitors for %q", industry)
	}
	return payload.Competitors, nil
}

func (s *ServiceDiscovery) fallback(ctx context.Context, industry string) ([]string, error) {
	if s.Fallback == nil {
		return StaticTaxonomy{}.Discover(ctx, industry)
	}
	return s.Fallback.Discover(ctx, industry)
}

// StaticTaxonomy is the mandatory offline fallback: a fixed table of
// representative sites per industry. It suggests real, fetchable sites; the
// differ still verifies each one before any keyword is reported.
type StaticTaxonomy struct{}

var industryTaxonomy = map[string][]string{
	"plumbing":    {"https://www.mrrooter.com", "https://www.rotorooter.com"},
	"dental":      {"https://www.aspendental.com", "https://www.brightnow.com"},
	"legal":       {"https://www.avvo.com", "https://www.findlaw.com"},
	"restaurant":  {"https://www.opentable.com", "https://www.yelp.com"},
	"real estate": {"https://www.zillow.com", "https://www.realtor.com"},
	"fitness":     {"https://www.planetfitness.com", "https://www.anytimefitness.com"},
	"ecommerce":   {"https://www.etsy.com", "https://www.shopify.com"},
}

// Discover returns the taxonomy entry for the industry, or an error when the
// industry is unknown — never an invented list.
func (StaticTaxonomy) Discover(_ context.Context, industry string) ([]string, error) {
	industry = strings.ToLower(strings.TrimSpace(industry))
	if urls, ok := industryTaxonomy[industry]; ok {
		return urls, nil
	}
	return nil, fmt.Errorf("no taxonomy entry for industry %q", industry)
}
