package sources

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

// NameVivanuncios identifies the vivanuncios source. Its listing pages are
// rendered client-side, so the source is flagged headless and parses the
// rendered DOM.
const NameVivanuncios = "vivanuncios"

// NewVivanuncios builds the vivanuncios source definition.
func NewVivanuncios(opts Options) (scraper.Source, error) {
	opts = opts.withDefaults("https://www.vivanuncios.com.mx")
	return scraper.Source{
		Name:              NameVivanuncios,
		BaseURL:           opts.BaseURL,
		RequestsPerMinute: opts.RequestsPerMinute,
		MaxPagesPerTarget: opts.MaxPagesPerTarget,
		Headless:          true,
		Targets: []scraper.Target{
			{Name: "CDMX inmuebles", Path: "s-venta-inmuebles/ciudad-de-mexico"},
			{Name: "Jalisco inmuebles", Path: "s-venta-inmuebles/jalisco"},
		},
		BuildPageURL: vivanunciosPageURL,
		Parse:        parseVivanunciosPage,
	}, nil
}

func vivanunciosPageURL(baseURL string, target scraper.Target, page int) string {
	if page <= 1 {
		return fmt.Sprintf("%s/%s/v1c1097p1", baseURL, target.Path)
	}
	return fmt.Sprintf("%s/%s/page-%d/v1c1097p%d", baseURL, target.Path, page, page)
}

func parseVivanunciosPage(body []byte, target scraper.Target) (scraper.ParsePage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scraper.ParsePage{}, fmt.Errorf("parse rendered html: %w", err)
	}

	state := strings.TrimSpace(strings.TrimSuffix(target.Name, " inmuebles"))
	out := scraper.ParsePage{}
	doc.Find("div.tileV2").Each(func(i int, tile *goquery.Selection) {
		prop, err := normalizeVivanunciosTile(tile, state)
		if err != nil {
			out.ItemErrors = append(out.ItemErrors, fmt.Sprintf("%s tile %d: %v", NameVivanuncios, i, err))
			return
		}
		out.Properties = append(out.Properties, prop)
	})
	return out, nil
}

func normalizeVivanunciosTile(tile *goquery.Selection, state string) (scraper.NormalizedProperty, error) {
	adID := strings.TrimSpace(tile.AttrOr("data-adid", ""))
	address := strings.TrimSpace(tile.Find(".tile-location").Text())
	city := strings.TrimSpace(tile.Find(".tile-city").Text())
	if adID == "" {
		if address == "" && city == "" {
			return scraper.NormalizedProperty{}, fmt.Errorf("tile has no ad id or location")
		}
		adID = scraper.SynthesizeExternalID(address, city)
	}

	prop := scraper.NormalizedProperty{
		Source:          NameVivanuncios,
		ExternalID:      adID,
		Country:         "Mexico",
		StateProvince:   state,
		City:            city,
		Address:         address,
		TransactionType: scraper.TransactionSale,
		Price: scraper.Price{
			Amount: scraper.ParseAmount(tile.Find(".ad-price").Text()),
		},
		PropertyType: scraper.NormalizePropertyType(tile.Find(".chiplets-inline-block.re-bedroom").AttrOr("data-type", "")),
		Bedrooms:     int(scraper.ParseAmount(tile.Find(".chiplets-inline-block.re-bedroom").Text())),
		Bathrooms:    scraper.ParseAmount(tile.Find(".chiplets-inline-block.re-bathroom").Text()),
		AreaSqm:      scraper.ParseAmount(tile.Find(".chiplets-inline-block.surface-area").Text()),
		Description:  strings.TrimSpace(tile.Find(".tile-desc a").Text()),
		ContactInfo:  strings.TrimSpace(tile.Find(".tile-desc a").AttrOr("href", "")),
	}
	tile.Find("img.tile-img").Each(func(_ int, img *goquery.Selection) {
		if src := img.AttrOr("src", ""); src != "" {
			prop.Images = append(prop.Images, src)
		}
	})
	return prop, nil
}
