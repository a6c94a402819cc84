package models

// Listing is one extracted classified-ad record. Every field is optional:
// an empty string means the field could not be found in the card markup.
// A Listing is immutable once produced by the extractor.
type Listing struct {
	Type         string
	Price        string
	PricePerM2   string
	Surface      string
	Rooms        string
	Bedrooms     string
	DeliveryDate string // new-construction programs only
	Address      string
	City         string
	PostalCode   string
	Department   string
	ProgramName  string
	URL          string
}

// CSVHeader is the exact column set of the output file, in order.
var CSVHeader = []string{
	"Type",
	"Price",
	"Price_Per_M2",
	"Surface_m2",
	"Rooms",
	"Bedrooms",
	"Delivery_Date",
	"Address",
	"City",
	"PostalCode",
	"Department",
	"Program_Name",
	"URL",
}

// CSVRow returns the listing's fields in CSVHeader order.
func (l Listing) CSVRow() []string {
	return []string{
		l.Type,
		l.Price,
		l.PricePerM2,
		l.Surface,
		l.Rooms,
		l.Bedrooms,
		l.DeliveryDate,
		l.Address,
		l.City,
		l.PostalCode,
		l.Department,
		l.ProgramName,
		l.URL,
	}
}

// Complete reports whether the listing carries the minimum viable data:
// a detail URL plus either a price or a property type. Anything less is
// treated as a near-empty shell (typically a half-rendered card).
func (l Listing) Complete() bool {
	return l.URL != "" && (l.Price != "" || l.Type != "")
}

// MissingFields lists the names of high-value fields that are absent,
// for diagnostics logging.
func (l Listing) MissingFields() []string {
	var missing []string
	if l.URL == "" {
		missing = append(missing, "url")
	}
	if l.Price == "" {
		missing = append(missing, "price")
	}
	if l.Type == "" {
		missing = append(missing, "type")
	}
	if l.Surface == "" {
		missing = append(missing, "surface")
	}
	if l.Rooms == "" {
		missing = append(missing, "rooms")
	}
	if l.Address == "" {
		missing = append(missing, "address")
	}
	return missing
}
