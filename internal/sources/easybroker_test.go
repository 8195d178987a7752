package sources

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

const easyBrokerFixture = `{
  "content": [
    {
      "public_id": "EB-001",
      "title": "Departamento en Roma Norte",
      "property_type": "Departamento",
      "location": "Roma Norte, Cuauhtémoc, Ciudad de México",
      "operations": [{"type": "sale", "amount": 3500000, "currency": "MXN"}],
      "bedrooms": 2,
      "bathrooms": 1.5,
      "construction_size": 85,
      "title_image_full": "https://img.easybroker.test/eb-001.jpg",
      "agent": "ventas@inmobiliaria.test"
    },
    {
      "title": "Listado sin identificador"
    },
    {
      "public_id": "EB-002",
      "title": "Casa con jardín",
      "property_type": "Casa",
      "location": "Guadalajara, Jalisco",
      "operations": [{"type": "rental", "amount": 15000, "currency": "MXN"}],
      "lot_size": 120
    }
  ]
}`

func TestEasyBrokerRequiresAPIKey(t *testing.T) {
	_, err := NewEasyBroker(Options{})
	require.Error(t, err)

	src, err := NewEasyBroker(Options{APIKey: "token-123"})
	require.NoError(t, err)
	require.Equal(t, "token-123", src.Headers.Get("X-Authorization"))
}

func TestEasyBrokerPageURL(t *testing.T) {
	src, err := NewEasyBroker(Options{APIKey: "k"})
	require.NoError(t, err)

	url := src.BuildPageURL(src.BaseURL, scraper.Target{Name: "Jalisco", Path: "Jalisco"}, 2)
	require.Equal(t,
		"https://api.easybroker.com/v1/properties?page=2&limit=50&search[statuses][]=published&search[locations][]=Jalisco",
		url,
	)
}

func TestParseEasyBrokerPage(t *testing.T) {
	target := scraper.Target{Name: "Jalisco", Path: "Jalisco"}
	page, err := parseEasyBrokerPage([]byte(easyBrokerFixture), target)
	require.NoError(t, err)

	// The listing without a public_id is an item error, not a page failure.
	require.Len(t, page.Properties, 2)
	require.Len(t, page.ItemErrors, 1)
	require.Contains(t, page.ItemErrors[0], "missing public_id")

	first := page.Properties[0]
	require.Equal(t, NameEasyBroker, first.Source)
	require.Equal(t, "EB-001", first.ExternalID)
	require.Equal(t, "Mexico", first.Country)
	require.Equal(t, "Roma Norte", first.Neighborhood)
	require.Equal(t, "Cuauhtémoc", first.City)
	require.Equal(t, "Ciudad de México", first.StateProvince)
	require.Equal(t, scraper.TransactionSale, first.TransactionType)
	require.Equal(t, 3500000.0, first.Price.Amount)
	require.Equal(t, "MXN", first.Price.Currency)
	require.Equal(t, scraper.PropertyApartment, first.PropertyType)
	require.Equal(t, 2, first.Bedrooms)
	require.Equal(t, 1.5, first.Bathrooms)
	require.Equal(t, 85.0, first.AreaSqm)
	require.Nil(t, first.LotSizeSqm)
	require.Equal(t, []string{"https://img.easybroker.test/eb-001.jpg"}, first.Images)
	require.Equal(t, "ventas@inmobiliaria.test", first.ContactInfo)

	second := page.Properties[1]
	require.Equal(t, "EB-002", second.ExternalID)
	require.Equal(t, scraper.TransactionRent, second.TransactionType)
	require.Equal(t, "Guadalajara", second.City)
	require.Equal(t, "Jalisco", second.StateProvince)
	require.Equal(t, scraper.PropertyHouse, second.PropertyType)
	require.NotNil(t, second.LotSizeSqm)
	require.Equal(t, 120.0, *second.LotSizeSqm)
}

func TestParseEasyBrokerPageEmptyAndMalformed(t *testing.T) {
	page, err := parseEasyBrokerPage([]byte(`{"content": []}`), scraper.Target{Name: "Jalisco"})
	require.NoError(t, err)
	require.Empty(t, page.Properties)

	_, err = parseEasyBrokerPage([]byte(`<html>rate limited</html>`), scraper.Target{Name: "Jalisco"})
	require.Error(t, err)
}

func TestSplitLocation(t *testing.T) {
	cases := []struct {
		in                        string
		neighborhood, city, state string
	}{
		{"Roma Norte, Cuauhtémoc, Ciudad de México", "Roma Norte", "Cuauhtémoc", "Ciudad de México"},
		{"Centro, Polanco, Miguel Hidalgo, Ciudad de México", "Polanco", "Miguel Hidalgo", "Ciudad de México"},
		{"Guadalajara, Jalisco", "", "Guadalajara", "Jalisco"},
		{"Jalisco", "", "", "Jalisco"},
	}
	for _, tc := range cases {
		n, c, s := splitLocation(tc.in)
		require.Equal(t, tc.neighborhood, n, tc.in)
		require.Equal(t, tc.city, c, tc.in)
		require.Equal(t, tc.state, s, tc.in)
	}
}
