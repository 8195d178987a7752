package sources

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

// NameEasyBroker identifies the EasyBroker JSON API source. It exposes
// stable public IDs, so (source, external_id) deduplication is exact.
const NameEasyBroker = "easybroker"

type easyBrokerOperation struct {
	Type     string  `json:"type"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type easyBrokerListing struct {
	PublicID         string                `json:"public_id"`
	Title            string                `json:"title"`
	PropertyType     string                `json:"property_type"`
	Location         string                `json:"location"`
	Operations       []easyBrokerOperation `json:"operations"`
	Bedrooms         int                   `json:"bedrooms"`
	Bathrooms        float64               `json:"bathrooms"`
	ConstructionSize float64               `json:"construction_size"`
	LotSize          float64               `json:"lot_size"`
	TitleImageFull   string                `json:"title_image_full"`
	AgentContact     string                `json:"agent"`
}

type easyBrokerPage struct {
	Content []easyBrokerListing `json:"content"`
}

// NewEasyBroker builds the EasyBroker source definition.
func NewEasyBroker(opts Options) (scraper.Source, error) {
	opts = opts.withDefaults("https://api.easybroker.com")
	if opts.APIKey == "" {
		return scraper.Source{}, fmt.Errorf("source %s: api key is required", NameEasyBroker)
	}
	headers := http.Header{}
	headers.Set("X-Authorization", opts.APIKey)
	headers.Set("Accept", "application/json")

	return scraper.Source{
		Name:              NameEasyBroker,
		BaseURL:           opts.BaseURL,
		RequestsPerMinute: opts.RequestsPerMinute,
		MaxPagesPerTarget: opts.MaxPagesPerTarget,
		Headers:           headers,
		Targets: []scraper.Target{
			{Name: "Ciudad de México", Path: "Ciudad de México"},
			{Name: "Jalisco", Path: "Jalisco"},
			{Name: "Nuevo León", Path: "Nuevo León"},
		},
		BuildPageURL: easyBrokerPageURL,
		Parse:        parseEasyBrokerPage,
	}, nil
}

func easyBrokerPageURL(baseURL string, target scraper.Target, page int) string {
	return fmt.Sprintf(
		"%s/v1/properties?page=%d&limit=50&search[statuses][]=published&search[locations][]=%s",
		baseURL, page, url.QueryEscape(target.Path),
	)
}

func parseEasyBrokerPage(body []byte, target scraper.Target) (scraper.ParsePage, error) {
	var page easyBrokerPage
	if err := json.Unmarshal(body, &page); err != nil {
		return scraper.ParsePage{}, fmt.Errorf("decode listing page: %w", err)
	}

	out := scraper.ParsePage{}
	for i, listing := range page.Content {
		prop, err := normalizeEasyBrokerListing(listing, target)
		if err != nil {
			out.ItemErrors = append(out.ItemErrors, fmt.Sprintf("%s item %d: %v", NameEasyBroker, i, err))
			continue
		}
		out.Properties = append(out.Properties, prop)
	}
	return out, nil
}

func normalizeEasyBrokerListing(l easyBrokerListing, target scraper.Target) (scraper.NormalizedProperty, error) {
	if l.PublicID == "" {
		return scraper.NormalizedProperty{}, fmt.Errorf("missing public_id")
	}

	neighborhood, city, state := splitLocation(l.Location)
	if state == "" {
		state = target.Name
	}

	op := easyBrokerOperation{}
	if len(l.Operations) > 0 {
		op = l.Operations[0]
	}

	prop := scraper.NormalizedProperty{
		Source:          NameEasyBroker,
		ExternalID:      l.PublicID,
		Country:         "Mexico",
		StateProvince:   state,
		City:            city,
		Neighborhood:    neighborhood,
		Address:         l.Location,
		TransactionType: scraper.NormalizeTransactionType(op.Type),
		Price: scraper.Price{
			Amount:   maxFloat(op.Amount, 0),
			Currency: op.Currency,
		},
		PropertyType: scraper.NormalizePropertyType(l.PropertyType),
		Bedrooms:     maxInt(l.Bedrooms, 0),
		Bathrooms:    maxFloat(l.Bathrooms, 0),
		AreaSqm:      maxFloat(l.ConstructionSize, 0),
		Description:  l.Title,
		ContactInfo:  l.AgentContact,
	}
	if l.LotSize > 0 {
		lot := l.LotSize
		prop.LotSizeSqm = &lot
	}
	if l.TitleImageFull != "" {
		prop.Images = []string{l.TitleImageFull}
	}
	return prop, nil
}

// splitLocation decomposes "Neighborhood, City, State" location strings.
// Shorter forms fill from the right.
func splitLocation(location string) (neighborhood, city, state string) {
	parts := strings.Split(location, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 0:
		return "", "", ""
	case 1:
		return "", "", parts[0]
	case 2:
		return "", parts[0], parts[1]
	default:
		return parts[len(parts)-3], parts[len(parts)-2], parts[len(parts)-1]
	}
}

func maxFloat(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}

func maxInt(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}
