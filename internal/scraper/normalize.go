package scraper

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// DefaultCurrency is assumed when a source does not state one.
const DefaultCurrency = "MXN"

// NormalizePropertyType maps a free-form source string onto the closed
// PropertyType set. Unmapped values default to PropertyHouse.
func NormalizePropertyType(raw string) PropertyType {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "apartment"), strings.Contains(s, "departamento"), strings.Contains(s, "flat"):
		return PropertyApartment
	case strings.Contains(s, "condo"):
		return PropertyCondo
	case strings.Contains(s, "commercial"), strings.Contains(s, "local"),
		strings.Contains(s, "oficina"), strings.Contains(s, "bodega"):
		return PropertyCommercial
	case strings.Contains(s, "land"), strings.Contains(s, "terreno"), strings.Contains(s, "lote"):
		return PropertyLand
	default:
		return PropertyHouse
	}
}

// NormalizeTransactionType maps a free-form operation string onto
// sale/rent. Unmapped values default to sale.
func NormalizeTransactionType(raw string) TransactionType {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "rent"), strings.Contains(s, "renta"), strings.Contains(s, "alquiler"):
		return TransactionRent
	default:
		return TransactionSale
	}
}

// ParseAmount extracts a non-negative numeric amount from a price string
// such as "$1,250,000 MXN". Unparseable input yields 0.
func ParseAmount(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	amount, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || amount < 0 {
		return 0
	}
	return amount
}

// SynthesizeExternalID derives a stable identifier for sources that expose
// no native listing ID, hashing the address/city pair so the storage key
// stays uniform across sources.
func SynthesizeExternalID(address, city string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(address)) + "|" + strings.ToLower(strings.TrimSpace(city))))
	return hex.EncodeToString(sum[:8])
}
