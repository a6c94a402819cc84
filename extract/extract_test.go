package extract

import "testing"

const fullCard = `
<div data-testid="serp-core-classified-card-testid">
  <a data-testid="card-mfe-covering-link-testid" href="/annonces/achat/appartement/paris-11e/123456.htm"></a>
  <div class="css-1n0wsen">Appartement</div>
  <div data-testid="cardmfe-price-testid">450 000 € (9 574 €/m²)</div>
  <span class="css-xsih6f">9 574 €/m²</span>
  <div data-testid="cardmfe-keyfacts-testid">
    <div class="css-9u48bm">3 pièces</div>
    <div class="css-9u48bm">2 chambres</div>
    <div class="css-9u48bm">47 m²</div>
  </div>
  <div data-testid="cardmfe-description-box-address">Rue de la Roquette, Paris 11e (75011)</div>
</div>`

func TestParseFullCard(t *testing.T) {
	e := New("https://www.seloger.com")
	l := e.Parse(fullCard)

	if l.Type != "Appartement" {
		t.Errorf("Type = %q", l.Type)
	}
	if l.Price != "450 000 €" {
		t.Errorf("Price = %q, want main price without the per-m² parenthetical", l.Price)
	}
	if l.PricePerM2 != "9 574 €/m²" {
		t.Errorf("PricePerM2 = %q", l.PricePerM2)
	}
	if l.Rooms != "3 pièces" {
		t.Errorf("Rooms = %q", l.Rooms)
	}
	if l.Bedrooms != "2 chambres" {
		t.Errorf("Bedrooms = %q", l.Bedrooms)
	}
	if l.Surface != "47 m²" {
		t.Errorf("Surface = %q", l.Surface)
	}
	if l.City != "Paris 11e" {
		t.Errorf("City = %q", l.City)
	}
	if l.PostalCode != "75011" {
		t.Errorf("PostalCode = %q", l.PostalCode)
	}
	if l.Department != "75" {
		t.Errorf("Department = %q", l.Department)
	}
	if l.URL != "https://www.seloger.com/annonces/achat/appartement/paris-11e/123456.htm" {
		t.Errorf("URL = %q, relative link not absolutized", l.URL)
	}
	if !l.Complete() {
		t.Error("full card should be complete")
	}
}

func TestParseFallbackSelectors(t *testing.T) {
	// None of the primary hashed-class selectors are present; the
	// attribute-substring fallbacks must carry every field.
	card := `
<div>
  <a class="listing-card-link" href="https://www.seloger.com/annonces/789.htm"></a>
  <div class="property-type-label">Maison</div>
  <span class="main-price-display">620 000 €</span>
  <div class="result-address">Les Jardins du Parc, Meudon (92190)</div>
</div>`

	e := New("https://www.seloger.com")
	l := e.Parse(card)

	if l.Type != "Maison" {
		t.Errorf("Type = %q via fallback selector", l.Type)
	}
	if l.Price != "620 000 €" {
		t.Errorf("Price = %q via fallback selector", l.Price)
	}
	if l.URL != "https://www.seloger.com/annonces/789.htm" {
		t.Errorf("URL = %q via fallback selector", l.URL)
	}
	if l.ProgramName != "Les Jardins du Parc" {
		t.Errorf("ProgramName = %q", l.ProgramName)
	}
	if l.City != "Meudon" || l.PostalCode != "92190" || l.Department != "92" {
		t.Errorf("address parse: city=%q postal=%q dept=%q", l.City, l.PostalCode, l.Department)
	}
}

func TestParseRegexFallbacks(t *testing.T) {
	// No structured sub-elements at all: everything must come out of the
	// card's flat text.
	card := `<div><a href="/annonces/42.htm">voir</a>
	  Studio lumineux 315 000 € 6 300 €/m² 2 pièces 1 chambre 38 m² dès le 31/12/2027 75020</div>`

	e := New("https://www.seloger.com")
	l := e.Parse(card)

	if l.Price == "" {
		t.Error("price regex fallback found nothing")
	}
	if l.Rooms != "2 pièce(s)" {
		t.Errorf("Rooms = %q", l.Rooms)
	}
	if l.Bedrooms != "1 chambre(s)" {
		t.Errorf("Bedrooms = %q", l.Bedrooms)
	}
	if l.Surface == "" {
		t.Error("surface regex fallback found nothing")
	}
	if l.DeliveryDate != "dès le 31/12/2027" {
		t.Errorf("DeliveryDate = %q", l.DeliveryDate)
	}
	if l.PostalCode != "75020" {
		t.Errorf("PostalCode = %q from bare text", l.PostalCode)
	}
}

func TestParseRejectsSmallEuroAmounts(t *testing.T) {
	// 350 € is a fee, not a sale price; the text fallback must skip it.
	card := `<div>Honoraires 350 € charge acquéreur</div>`

	e := New("https://www.seloger.com")
	if l := e.Parse(card); l.Price != "" {
		t.Errorf("Price = %q, want empty for a sub-10k amount", l.Price)
	}
}

func TestParseEmptyCard(t *testing.T) {
	e := New("https://www.seloger.com")
	l := e.Parse(`<div class="shell"></div>`)

	if l.Complete() {
		t.Error("empty card must not be complete")
	}
	if l.URL != "" || l.Price != "" || l.Type != "" {
		t.Errorf("empty card produced fields: %+v", l)
	}
}

func TestParseAddressTable(t *testing.T) {
	cases := []struct {
		addr                  string
		city, postal, program string
	}{
		{"Rue Oberkampf, Paris 11e (75011)", "Paris 11e", "75011", "Rue Oberkampf"},
		{"12 Rue du Bac, Paris 7e (75007)", "Paris 7e", "75007", ""},
		{"Le Clos des Vignes, Suresnes (92150)", "Suresnes", "92150", "Le Clos des Vignes"},
		{"Villejuif 94800", "", "94800", ""},
		{"", "", "", ""},
	}
	for _, c := range cases {
		city, postal, program := parseAddress(c.addr)
		if city != c.city || postal != c.postal || program != c.program {
			t.Errorf("parseAddress(%q) = (%q, %q, %q), want (%q, %q, %q)",
				c.addr, city, postal, program, c.city, c.postal, c.program)
		}
	}
}
