package sources

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

// NameInmuebles24 identifies the inmuebles24 HTML source. Listing cards
// carry a data-id attribute used as the external ID; cards without one fall
// back to a synthesized address/city hash.
const NameInmuebles24 = "inmuebles24"

// NewInmuebles24 builds the inmuebles24 source definition.
func NewInmuebles24(opts Options) (scraper.Source, error) {
	opts = opts.withDefaults("https://www.inmuebles24.com")
	return scraper.Source{
		Name:              NameInmuebles24,
		BaseURL:           opts.BaseURL,
		RequestsPerMinute: opts.RequestsPerMinute,
		MaxPagesPerTarget: opts.MaxPagesPerTarget,
		Targets: []scraper.Target{
			{Name: "CDMX venta", Path: "casas-en-venta-en-ciudad-de-mexico"},
			{Name: "CDMX renta", Path: "departamentos-en-renta-en-ciudad-de-mexico"},
			{Name: "Guadalajara venta", Path: "casas-en-venta-en-guadalajara"},
			{Name: "Monterrey venta", Path: "casas-en-venta-en-monterrey"},
		},
		BuildPageURL: inmuebles24PageURL,
		Parse:        parseInmuebles24Page,
	}, nil
}

func inmuebles24PageURL(baseURL string, target scraper.Target, page int) string {
	if page <= 1 {
		return fmt.Sprintf("%s/%s.html", baseURL, target.Path)
	}
	return fmt.Sprintf("%s/%s-pagina-%d.html", baseURL, target.Path, page)
}

func parseInmuebles24Page(body []byte, target scraper.Target) (scraper.ParsePage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scraper.ParsePage{}, fmt.Errorf("parse listing html: %w", err)
	}

	out := scraper.ParsePage{}
	doc.Find("div[data-posting-card]").Each(func(i int, card *goquery.Selection) {
		prop, err := normalizeInmuebles24Card(card, target)
		if err != nil {
			out.ItemErrors = append(out.ItemErrors, fmt.Sprintf("%s card %d: %v", NameInmuebles24, i, err))
			return
		}
		out.Properties = append(out.Properties, prop)
	})
	return out, nil
}

func normalizeInmuebles24Card(card *goquery.Selection, target scraper.Target) (scraper.NormalizedProperty, error) {
	address := strings.TrimSpace(card.Find("[data-field=address]").Text())
	city := strings.TrimSpace(card.Find("[data-field=city]").Text())
	if address == "" && city == "" {
		return scraper.NormalizedProperty{}, fmt.Errorf("card has no location")
	}

	externalID := strings.TrimSpace(card.AttrOr("data-id", ""))
	if externalID == "" {
		externalID = scraper.SynthesizeExternalID(address, city)
	}

	tx := scraper.TransactionSale
	if strings.Contains(target.Path, "renta") {
		tx = scraper.TransactionRent
	}

	prop := scraper.NormalizedProperty{
		Source:          NameInmuebles24,
		ExternalID:      externalID,
		Country:         "Mexico",
		City:            city,
		Address:         address,
		TransactionType: tx,
		Price: scraper.Price{
			Amount: scraper.ParseAmount(card.Find("[data-field=price]").Text()),
		},
		PropertyType: scraper.NormalizePropertyType(card.Find("[data-field=property-type]").Text()),
		Bedrooms:     int(scraper.ParseAmount(card.Find("[data-field=bedrooms]").Text())),
		Bathrooms:    scraper.ParseAmount(card.Find("[data-field=bathrooms]").Text()),
		AreaSqm:      scraper.ParseAmount(card.Find("[data-field=area]").Text()),
		Description:  strings.TrimSpace(card.Find("[data-field=description]").Text()),
		ContactInfo:  strings.TrimSpace(card.Find("[data-field=contact]").AttrOr("href", "")),
	}
	card.Find("img[data-field=photo]").Each(func(_ int, img *goquery.Selection) {
		if src := img.AttrOr("src", ""); src != "" {
			prop.Images = append(prop.Images, src)
		}
	})
	card.Find("[data-field=amenity]").Each(func(_ int, a *goquery.Selection) {
		if text := strings.TrimSpace(a.Text()); text != "" {
			prop.Amenities = append(prop.Amenities, text)
		}
	})
	return prop, nil
}
