// Package extract turns a fetched book detail document into a typed
// catalog.Item. Every field has its own parsing function so a malformed
// value fails that single item instead of leaking partial records.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
)

// ordinalSuffix matches day-number ordinals ("1st", "22nd") so dates can be
// normalized before parsing.
var ordinalSuffix = regexp.MustCompile(`(\d{1,2})(st|nd|rd|th)`)

// Publication timestamps appear both with abbreviated and full month names.
var createdAtLayouts = []string{
	"2 Jan 2006 15:04",
	"2 January 2006 15:04",
}

var ratingWords = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

// Extract reads one item's structured fields out of its detail document.
// detailURL is the absolute URL the document was fetched from; baseURL is the
// site root used to resolve relative image paths.
func Extract(doc *goquery.Document, detailURL, baseURL string) (catalog.Item, error) {
	id, err := ItemIDFromURL(detailURL)
	if err != nil {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "book_id", Err: err}
	}

	title := strings.TrimSpace(doc.Find("div.product_main h1").First().Text())
	if title == "" {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "title", Err: errors.New("missing product title")}
	}

	createdRaw, ok := doc.Find(`head meta[name="created"]`).First().Attr("content")
	if !ok {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "created_at", Err: errors.New("missing created meta tag")}
	}
	createdAt, err := ParseCreatedAt(createdRaw)
	if err != nil {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "created_at", Err: err}
	}

	category := strings.TrimSpace(doc.Find("ul.breadcrumb li").Eq(2).Text())
	if category == "" {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "category", Err: errors.New("missing breadcrumb category")}
	}

	imageSrc, ok := doc.Find("div.item.active img").First().Attr("src")
	if !ok {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "image_url", Err: errors.New("missing carousel image")}
	}

	details, err := productTable(doc)
	if err != nil {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "product_information", Err: err}
	}

	priceIncl, currency, err := ParsePrice(details["Price (incl. tax)"])
	if err != nil {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "price_including_tax", Err: err}
	}
	priceExcl, _, err := ParsePrice(details["Price (excl. tax)"])
	if err != nil {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "price_excluding_tax", Err: err}
	}
	tax, _, err := ParsePrice(details["Tax"])
	if err != nil {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "tax", Err: err}
	}

	available, err := ParseAvailability(details["Availability"])
	if err != nil {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "number_available", Err: err}
	}

	upc, ok := details["UPC"]
	if !ok {
		return catalog.Item{}, &catalog.ParseError{URL: detailURL, Field: "product_upc", Err: errors.New("missing UPC row")}
	}

	item := catalog.Item{
		BookID:            id,
		Title:             title,
		Description:       description(doc),
		ReviewRating:      rating(doc),
		Category:          category,
		ProductUPC:        upc,
		Currency:          currency,
		PriceIncludingTax: priceIncl,
		PriceExcludingTax: priceExcl,
		Tax:               tax,
		NumberAvailable:   available,
		CreatedAt:         createdAt,
		ImageURL:          resolveImageURL(baseURL, imageSrc),
		URL:               detailURL,
	}
	return item, nil
}

// ItemIDFromURL parses the trailing integer token of the detail URL path
// segment, e.g. ".../scott-pilgrims-precious-little-life_987/index.html" -> 987.
func ItemIDFromURL(detailURL string) (int, error) {
	trimmed := strings.TrimSuffix(detailURL, "/index.html")
	parts := strings.Split(trimmed, "_")
	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, fmt.Errorf("no trailing id in %q: %w", detailURL, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("non-positive id %d in %q", id, detailURL)
	}
	return id, nil
}

// ParseCreatedAt parses a "dd MMM yyyy HH:mm"-shaped publication timestamp,
// stripping ordinal day suffixes first ("22nd October 2016 12:00").
func ParseCreatedAt(raw string) (time.Time, error) {
	cleaned := ordinalSuffix.ReplaceAllString(strings.TrimSpace(raw), "$1")
	var lastErr error
	for _, layout := range createdAtLayouts {
		t, err := time.Parse(layout, cleaned)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("unparseable created date %q: %w", raw, lastErr)
}

// ParsePrice strips the leading currency symbol and parses the remainder as a
// decimal. The symbol determines the currency code; anything other than the
// pound sign maps to UNKNOWN.
func ParsePrice(raw string) (float64, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", errors.New("empty price")
	}
	currency := catalog.CurrencyUnknown
	if strings.HasPrefix(raw, "£") {
		currency = catalog.CurrencyGBP
	}
	runes := []rune(raw)
	value, err := strconv.ParseFloat(string(runes[1:]), 64)
	if err != nil {
		return 0, "", fmt.Errorf("unparseable price %q: %w", raw, err)
	}
	if value < 0 {
		return 0, "", fmt.Errorf("negative price %q", raw)
	}
	return value, currency, nil
}

// ParseAvailability pulls the integer out of the parenthesized portion of the
// availability string: "In stock (19 available)" -> 19.
func ParseAvailability(raw string) (int, error) {
	_, inner, found := strings.Cut(raw, "(")
	if !found {
		return 0, fmt.Errorf("no availability count in %q", raw)
	}
	countToken, _, _ := strings.Cut(inner, " ")
	count, err := strconv.Atoi(countToken)
	if err != nil {
		return 0, fmt.Errorf("unparseable availability %q: %w", raw, err)
	}
	if count < 0 {
		return 0, fmt.Errorf("negative availability %q", raw)
	}
	return count, nil
}

// description is absent unless the page carries a product description section.
func description(doc *goquery.Document) *string {
	section := doc.Find("div#product_description").First()
	if section.Length() == 0 {
		return nil
	}
	text := strings.TrimSpace(section.NextAllFiltered("p").First().Text())
	text = strings.TrimSuffix(text, " ...more")
	return &text
}

// rating maps the second star-rating class token ("One".."Five") to 1..5.
// Unmapped tokens yield no rating.
func rating(doc *goquery.Document) *int {
	class, ok := doc.Find("div.product_main p.star-rating").First().Attr("class")
	if !ok {
		return nil
	}
	tokens := strings.Fields(class)
	if len(tokens) < 2 {
		return nil
	}
	value, ok := ratingWords[tokens[1]]
	if !ok {
		return nil
	}
	return &value
}

func productTable(doc *goquery.Document) (map[string]string, error) {
	rows := doc.Find("table.table-striped tr")
	if rows.Length() == 0 {
		return nil, errors.New("missing product information table")
	}
	details := make(map[string]string, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		key := strings.TrimSpace(row.Find("th").First().Text())
		value := strings.TrimSpace(row.Find("td").First().Text())
		if key != "" {
			details[key] = value
		}
	})
	return details, nil
}

func resolveImageURL(baseURL, src string) string {
	suffix := strings.ReplaceAll(src, "../../", "")
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
