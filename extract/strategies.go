package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
)

// strategy resolves one field from a card; an empty result means "not found
// this way" and hands over to the next strategy in the chain.
type strategy func(c *card) string

// firstNonEmpty runs a chain in order; the first non-empty result wins.
func firstNonEmpty(c *card, chain []strategy) string {
	for _, s := range chain {
		if v := s(c); v != "" {
			return v
		}
	}
	return ""
}

// selText returns the trimmed text of the first element matching sel.
func selText(sel cascadia.Selector) strategy {
	return func(c *card) string {
		return normalizeSpace(c.doc.FindMatcher(sel).First().Text())
	}
}

// selAttr returns the given attribute of the first element matching sel.
func selAttr(sel cascadia.Selector, attr string) strategy {
	return func(c *card) string {
		v, _ := c.doc.FindMatcher(sel).First().Attr(attr)
		return strings.TrimSpace(v)
	}
}

// Selectors observed on the live site. The css-* classes are the build's
// hashed primary names; the attribute-substring fallbacks survive rebuilds.
var (
	selKeyFacts    = cascadia.MustCompile(`div[data-testid="cardmfe-keyfacts-testid"]`)
	selKeyFactItem = cascadia.MustCompile(`div.css-9u48bm`)

	typeStrategies = []strategy{
		selText(cascadia.MustCompile(`div.css-1n0wsen`)),
		selText(cascadia.MustCompile(`div[class*="property-type"]`)),
		selText(cascadia.MustCompile(`span[class*="type"]`)),
		selText(cascadia.MustCompile(`div[data-testid*="type"]`)),
	}

	priceStrategies = []strategy{
		priceFrom(selText(cascadia.MustCompile(`div[data-testid="cardmfe-price-testid"]`))),
		priceFrom(selText(cascadia.MustCompile(`div[class*="price"]`))),
		priceFrom(selText(cascadia.MustCompile(`span[class*="price"]`))),
		priceFrom(selText(cascadia.MustCompile(`div[data-testid*="price"]`))),
		priceFromText,
	}

	pricePerM2Strategies = []strategy{
		selText(cascadia.MustCompile(`span.css-xsih6f`)),
		func(c *card) string { return rePricePerM2.FindString(c.text) },
	}

	addressStrategies = []strategy{
		selText(cascadia.MustCompile(`div[data-testid="cardmfe-description-box-address"]`)),
		selText(cascadia.MustCompile(`div[class*="address"]`)),
		selText(cascadia.MustCompile(`span[class*="location"]`)),
		selText(cascadia.MustCompile(`div[data-testid*="address"]`)),
		selText(cascadia.MustCompile(`div[class*="location"]`)),
	}

	urlStrategies = []strategy{
		selAttr(cascadia.MustCompile(`a[data-testid="card-mfe-covering-link-testid"]`), "href"),
		selAttr(cascadia.MustCompile(`a[href*="seloger"]`), "href"),
		selAttr(cascadia.MustCompile(`a[href*="/annonces/"]`), "href"),
		selAttr(cascadia.MustCompile(`a[class*="card"]`), "href"),
	}
)

var (
	rePriceText  = regexp.MustCompile(`([\d\s,]+)\s*€`)
	rePricePerM2 = regexp.MustCompile(`\d[\d\s,]*\s*€/m²`)
	reRooms      = regexp.MustCompile(`(?i)(\d+)\s*(?:pièces?|pcs?)`)
	reBedrooms   = regexp.MustCompile(`(?i)(\d+)\s*chambres?`)
	reSurface    = regexp.MustCompile(`(?i)(\d+(?:[,.]\d+)?)\s*m[²2]`)
	reDelivery   = regexp.MustCompile(`(?i)dès\s+le\s+(\d{2}/\d{2}/\d{4})`)
	rePostal     = regexp.MustCompile(`\d{5}`)
	reParens     = regexp.MustCompile(`\(.*?\)`)
	reDigits     = regexp.MustCompile(`[^\d]`)
)

// priceFrom cleans the raw text of a price element: strips the
// per-m² parenthetical and keeps only values that actually carry the
// currency sign.
func priceFrom(inner strategy) strategy {
	return func(c *card) string {
		raw := inner(c)
		if raw == "" || !strings.Contains(raw, "€") {
			return ""
		}
		main := strings.TrimSpace(reParens.Split(raw, 2)[0])
		if !strings.Contains(main, "€") {
			return ""
		}
		return main
	}
}

// priceFromText scans the card's full text for a plausible sale price.
// Anything at or under 10 000 is rejected: small euro amounts on a card are
// fees or monthly figures, not the asking price.
func priceFromText(c *card) string {
	m := rePriceText.FindStringSubmatch(c.text)
	if m == nil {
		return ""
	}
	digits := reDigits.ReplaceAllString(m[1], "")
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 10000 {
		return ""
	}
	return strings.TrimSpace(m[1]) + " €"
}
