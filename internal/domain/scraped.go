package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Flex holds a scalar that scrapers emit as a string, a number or null.
type Flex struct {
	raw   string
	valid bool
}

func FlexString(s string) Flex {
	return Flex{raw: s, valid: true}
}

func FlexNumber(f float64) Flex {
	return Flex{raw: strconv.FormatFloat(f, 'f', -1, 64), valid: true}
}

func (f Flex) Valid() bool {
	return f.valid
}

func (f Flex) String() string {
	return f.raw
}

func (f Flex) Ptr() *string {
	if !f.valid {
		return nil
	}
	s := f.raw
	return &s
}

func (f *Flex) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = Flex{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string, number or null, got %s", b)
	}
	*f = FlexString(n.String())
	return nil
}

func (f Flex) MarshalJSON() ([]byte, error) {
	if !f.valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.raw)
}

type ScrapedAddress struct {
	City          *string  `json:"city"`
	Municipality  *string  `json:"municipality"`
	MicroLocation *string  `json:"micro_location"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
}

type ScrapedProperty struct {
	PropertyType  *string `json:"property_type"`
	BuildingType  *string `json:"building_type"`
	SizeM2        Flex    `json:"size_m2"`
	FloorNumber   Flex    `json:"floor_number"`
	TotalFloors   Flex    `json:"total_floors"`
	Rooms         Flex    `json:"rooms"`
	PropertyState *string `json:"property_state"`
}

type ScrapedSeller struct {
	SourceSellerID Flex    `json:"source_seller_id"`
	Name           *string `json:"name"`
	SellerType     *string `json:"seller_type"`
	PrimaryPhone   *string `json:"primary_phone"`
	PrimaryEmail   *string `json:"primary_email"`
	Website        *string `json:"website"`
	RegistryNumber *string `json:"registry_number"`
}

type ScrapedSource struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

type ScrapedRawData struct {
	HTML string          `json:"html"`
	Data json.RawMessage `json:"data"`
}

// ScrapedListing is the normalized record produced by a site scraper.
type ScrapedListing struct {
	URL               string          `json:"url"`
	Title             string          `json:"title"`
	ShortDescription  *string         `json:"short_description"`
	DetailDescription *string         `json:"detail_description"`
	Price             Flex            `json:"price"`
	PriceCurrency     *string         `json:"price_currency"`
	Status            ListingStatus   `json:"status"`
	ValidFrom         *string         `json:"valid_from,omitempty"`
	ValidTo           *string         `json:"valid_to,omitempty"`
	TotalViews        Flex            `json:"total_views"`
	Address           ScrapedAddress  `json:"address"`
	Property          ScrapedProperty `json:"property"`
	Seller            ScrapedSeller   `json:"seller"`
	Source            ScrapedSource   `json:"source"`
	Images            []string        `json:"images"`
	RawData           ScrapedRawData  `json:"raw_data"`
}

// Validate checks the semantic rules that the structural pass cannot express.
func (l *ScrapedListing) Validate() error {
	if strings.TrimSpace(l.URL) == "" {
		return &ValidationError{Field: "url", Message: "must not be empty"}
	}
	if strings.TrimSpace(l.Source.BaseURL) == "" {
		return &ValidationError{Field: "source.base_url", Message: "must not be empty"}
	}
	if strings.TrimSpace(l.Source.Name) == "" {
		return &ValidationError{Field: "source.name", Message: "must not be empty"}
	}
	if !l.Status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", l.Status)}
	}
	return nil
}

type jsonKind uint8

const (
	kindString jsonKind = 1 << iota
	kindNumber
	kindNull
	kindObject
	kindArray
	kindBool
)

func (k jsonKind) String() string {
	var names []string
	for _, n := range []struct {
		k    jsonKind
		name string
	}{
		{kindString, "string"}, {kindNumber, "number"}, {kindNull, "null"},
		{kindObject, "object"}, {kindArray, "array"}, {kindBool, "bool"},
	} {
		if k&n.k != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, " or ")
}

type field struct {
	name     string
	kinds    jsonKind
	children []field
	items    jsonKind
}

var (
	optString = kindString | kindNull
	scalar    = kindString | kindNumber | kindNull
)

// scrapedSchema lists the keys every scraped record must carry.
var scrapedSchema = []field{
	{name: "url", kinds: kindString},
	{name: "title", kinds: optString},
	{name: "short_description", kinds: optString},
	{name: "detail_description", kinds: optString},
	{name: "price", kinds: scalar},
	{name: "price_currency", kinds: optString},
	{name: "status", kinds: kindString},
	{name: "address", kinds: kindObject, children: []field{
		{name: "city", kinds: optString},
		{name: "municipality", kinds: optString},
		{name: "micro_location", kinds: optString},
		{name: "latitude", kinds: kindNumber | kindNull},
		{name: "longitude", kinds: kindNumber | kindNull},
	}},
	{name: "property", kinds: kindObject, children: []field{
		{name: "property_type", kinds: optString},
		{name: "building_type", kinds: optString},
		{name: "size_m2", kinds: scalar},
		{name: "floor_number", kinds: scalar},
		{name: "total_floors", kinds: scalar},
		{name: "rooms", kinds: scalar},
		{name: "property_state", kinds: optString},
	}},
	{name: "seller", kinds: kindObject, children: []field{
		{name: "source_seller_id", kinds: scalar},
		{name: "name", kinds: optString},
		{name: "seller_type", kinds: optString},
	}},
	{name: "source", kinds: kindObject, children: []field{
		{name: "name", kinds: kindString},
		{name: "base_url", kinds: kindString},
	}},
	{name: "images", kinds: kindArray, items: kindString},
	{name: "raw_data", kinds: kindObject},
}

// DecodeScrapedListing validates the structure of a raw scraped record and
// decodes it. Records missing a required key or carrying a wrong type are
// rejected with a *ValidationError rather than coerced.
func DecodeScrapedListing(data []byte) (*ScrapedListing, error) {
	if err := validateObject(json.RawMessage(data), scrapedSchema, ""); err != nil {
		return nil, err
	}

	var l ScrapedListing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("decode record: %v", err)}
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// PeekURL extracts the url key of a record that may fail validation.
func PeekURL(data []byte) string {
	var probe struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(data, &probe)
	return probe.URL
}

func validateObject(raw json.RawMessage, schema []field, path string) error {
	var obj map[string]json.RawMessage
	if kindOf(raw) != kindObject {
		return &ValidationError{Field: strings.TrimSuffix(path, "."), Message: fmt.Sprintf("expected object, got %s", kindOf(raw))}
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return &ValidationError{Field: strings.TrimSuffix(path, "."), Message: err.Error()}
	}

	for _, f := range schema {
		name := path + f.name
		value, ok := obj[f.name]
		if !ok {
			return &ValidationError{Field: name, Message: "missing required field"}
		}

		got := kindOf(value)
		if f.kinds&got == 0 {
			return &ValidationError{Field: name, Message: fmt.Sprintf("expected %s, got %s", f.kinds, got)}
		}

		if len(f.children) > 0 {
			if err := validateObject(value, f.children, name+"."); err != nil {
				return err
			}
		}

		if f.items != 0 && got == kindArray {
			var items []json.RawMessage
			if err := json.Unmarshal(value, &items); err != nil {
				return &ValidationError{Field: name, Message: err.Error()}
			}
			for i, item := range items {
				if k := kindOf(item); f.items&k == 0 {
					return &ValidationError{Field: fmt.Sprintf("%s[%d]", name, i), Message: fmt.Sprintf("expected %s, got %s", f.items, k)}
				}
			}
		}
	}
	return nil
}

func kindOf(raw json.RawMessage) jsonKind {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return kindNull
	}
	switch b[0] {
	case '"':
		return kindString
	case '{':
		return kindObject
	case '[':
		return kindArray
	case 't', 'f':
		return kindBool
	case 'n':
		return kindNull
	default:
		return kindNumber
	}
}
