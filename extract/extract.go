// Package extract turns one rendered listing card into a structured record.
// Every field is resolved through an ordered chain of strategies — structured
// selector lookups first, regex over the card's full text as a fallback — so
// site markup drift is absorbed by adding a strategy, not by restructuring
// the pipeline. Every field is independently optional.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hexelier/immoharvest/models"
)

// Extractor maps card markup to Listing records.
type Extractor struct {
	origin string
}

// New returns an extractor. origin prefixes relative detail URLs.
func New(origin string) *Extractor {
	return &Extractor{origin: origin}
}

// card is the parsed view of one listing element handed to strategies.
type card struct {
	doc  *goquery.Document
	text string // full visible text, whitespace-normalized
}

// Parse extracts a Listing from one card's outer HTML. Individual field
// failures leave that field empty and never abort the remaining fields.
func (e *Extractor) Parse(cardHTML string) models.Listing {
	root, err := html.Parse(strings.NewReader(cardHTML))
	if err != nil {
		return models.Listing{}
	}
	c := &card{doc: goquery.NewDocumentFromNode(root)}
	c.text = normalizeSpace(c.doc.Text())

	var l models.Listing
	l.Type = firstNonEmpty(c, typeStrategies)
	l.Price = firstNonEmpty(c, priceStrategies)
	l.PricePerM2 = firstNonEmpty(c, pricePerM2Strategies)

	e.parseKeyFacts(c, &l)

	l.URL = e.absoluteURL(firstNonEmpty(c, urlStrategies))

	if addr := firstNonEmpty(c, addressStrategies); addr != "" {
		l.Address = addr
		city, postal, program := parseAddress(addr)
		l.City = city
		l.PostalCode = postal
		l.ProgramName = program
	} else if postal := rePostal.FindString(c.text); postal != "" {
		l.PostalCode = postal
	}
	if l.PostalCode != "" && len(l.PostalCode) >= 2 {
		l.Department = l.PostalCode[:2]
	}

	return l
}

// parseKeyFacts walks the key-facts block (rooms, bedrooms, surface,
// delivery date share one container) and falls back to full-text regexes
// for whatever the structured pass missed.
func (e *Extractor) parseKeyFacts(c *card, l *models.Listing) {
	c.doc.FindMatcher(selKeyFacts).FindMatcher(selKeyFactItem).Each(func(_ int, s *goquery.Selection) {
		txt := normalizeSpace(s.Text())
		if txt == "" || txt == "·" {
			return
		}
		lower := strings.ToLower(txt)
		switch {
		case strings.Contains(lower, "pièce") || strings.Contains(lower, "piece"):
			if l.Rooms == "" {
				l.Rooms = txt
			}
		case strings.Contains(lower, "chambre"):
			if l.Bedrooms == "" {
				l.Bedrooms = txt
			}
		case strings.Contains(lower, "m²") || strings.Contains(lower, "m2"):
			if l.Surface == "" {
				l.Surface = txt
			}
		case strings.Contains(lower, "dès") || strings.Contains(txt, "/"):
			// new-construction delivery, e.g. "dès le 31/12/2027"
			if l.DeliveryDate == "" {
				l.DeliveryDate = txt
			}
		}
	})

	if l.Rooms == "" {
		if m := reRooms.FindStringSubmatch(c.text); m != nil {
			l.Rooms = m[1] + " pièce(s)"
		}
	}
	if l.Bedrooms == "" {
		if m := reBedrooms.FindStringSubmatch(c.text); m != nil {
			l.Bedrooms = m[1] + " chambre(s)"
		}
	}
	if l.Surface == "" {
		if m := reSurface.FindStringSubmatch(c.text); m != nil {
			l.Surface = m[1] + " m²"
		}
	}
	if l.DeliveryDate == "" {
		if m := reDelivery.FindStringSubmatch(c.text); m != nil {
			l.DeliveryDate = "dès le " + m[1]
		}
	}
}

// absoluteURL prefixes site-relative detail links with the configured origin.
func (e *Extractor) absoluteURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	return e.origin + u
}

// normalizeSpace collapses runs of whitespace (including the narrow
// no-break spaces the site uses as thousands separators) to single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
