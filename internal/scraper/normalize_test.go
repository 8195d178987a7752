package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePropertyType(t *testing.T) {
	cases := []struct {
		raw  string
		want PropertyType
	}{
		{"Departamento en venta", PropertyApartment},
		{"apartment", PropertyApartment},
		{"Condominio de lujo", PropertyCondo},
		{"Local comercial", PropertyCommercial},
		{"Oficina", PropertyCommercial},
		{"Bodega industrial", PropertyCommercial},
		{"Terreno residencial", PropertyLand},
		{"lote", PropertyLand},
		{"Casa sola", PropertyHouse},
		{"", PropertyHouse},
		{"penthouse duplex", PropertyHouse},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizePropertyType(tc.raw), "raw=%q", tc.raw)
	}
}

func TestNormalizeTransactionType(t *testing.T) {
	require.Equal(t, TransactionRent, NormalizeTransactionType("Renta"))
	require.Equal(t, TransactionRent, NormalizeTransactionType("for rent"))
	require.Equal(t, TransactionRent, NormalizeTransactionType("en alquiler"))
	require.Equal(t, TransactionSale, NormalizeTransactionType("Venta"))
	require.Equal(t, TransactionSale, NormalizeTransactionType(""))
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"$1,250,000 MXN", 1250000},
		{"MN 850000", 850000},
		{"$12,500.50", 12500.50},
		{"Consultar precio", 0},
		{"", 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ParseAmount(tc.raw), "raw=%q", tc.raw)
	}
}

func TestSynthesizeExternalID(t *testing.T) {
	a := SynthesizeExternalID("Av. Reforma 100", "CDMX")
	require.Len(t, a, 16)

	// Stable across case and surrounding whitespace.
	require.Equal(t, a, SynthesizeExternalID("  av. reforma 100 ", " cdmx"))

	// Different inputs land on different keys.
	require.NotEqual(t, a, SynthesizeExternalID("Av. Reforma 101", "CDMX"))
	require.NotEqual(t, a, SynthesizeExternalID("Av. Reforma 100", "Monterrey"))
}
