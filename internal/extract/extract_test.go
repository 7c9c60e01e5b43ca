package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
)

const detailURL = "http://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html"
const baseURL = "http://books.toscrape.com"

func detailPage(t *testing.T, mutate func(s string) string) *goquery.Document {
	t.Helper()
	page := `<html>
<head><meta name="created" content="22nd October 2016 12:00"></head>
<body>
<ul class="breadcrumb"><li>Home</li><li>Books</li><li>Poetry</li><li class="active">A Light in the Attic</li></ul>
<div id="product_gallery"><div class="item active"><img src="../../media/cache/fe/72/cover.jpg"></div></div>
<div class="col-sm-6 product_main">
  <h1>A Light in the Attic</h1>
  <p class="star-rating Three"><i class="icon-star"></i></p>
</div>
<div id="product_description" class="sub-header"><h2>Product Description</h2></div>
<p>It is hard to imagine a world without A Light in the Attic. ...more</p>
<table class="table table-striped">
<tr><th>UPC</th><td>a897fe39b1053632</td></tr>
<tr><th>Product Type</th><td>Books</td></tr>
<tr><th>Price (excl. tax)</th><td>&pound;51.77</td></tr>
<tr><th>Price (incl. tax)</th><td>&pound;51.77</td></tr>
<tr><th>Tax</th><td>&pound;0.00</td></tr>
<tr><th>Availability</th><td>In stock (22 available)</td></tr>
<tr><th>Number of reviews</th><td>0</td></tr>
</table>
</body>
</html>`
	if mutate != nil {
		page = mutate(page)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestExtract_FullItem(t *testing.T) {
	t.Parallel()

	item, err := Extract(detailPage(t, nil), detailURL, baseURL)
	require.NoError(t, err)

	require.Equal(t, 1000, item.BookID)
	require.Equal(t, "A Light in the Attic", item.Title)
	require.NotNil(t, item.Description)
	require.Equal(t, "It is hard to imagine a world without A Light in the Attic.", *item.Description)
	require.NotNil(t, item.ReviewRating)
	require.Equal(t, 3, *item.ReviewRating)
	require.Equal(t, "Poetry", item.Category)
	require.Equal(t, "a897fe39b1053632", item.ProductUPC)
	require.Equal(t, catalog.CurrencyGBP, item.Currency)
	require.InDelta(t, 51.77, item.PriceIncludingTax, 0.001)
	require.InDelta(t, 51.77, item.PriceExcludingTax, 0.001)
	require.InDelta(t, 0.0, item.Tax, 0.001)
	require.Equal(t, 22, item.NumberAvailable)
	require.Equal(t, time.Date(2016, time.October, 22, 12, 0, 0, 0, time.UTC), item.CreatedAt)
	require.Equal(t, "http://books.toscrape.com/media/cache/fe/72/cover.jpg", item.ImageURL)
	require.Equal(t, detailURL, item.URL)
}

func TestExtract_MissingDescriptionIsNil(t *testing.T) {
	t.Parallel()

	doc := detailPage(t, func(s string) string {
		return strings.Replace(s, `id="product_description"`, `id="something_else"`, 1)
	})
	item, err := Extract(doc, detailURL, baseURL)
	require.NoError(t, err)
	require.Nil(t, item.Description)
}

func TestExtract_UnmappedRatingWordIsNil(t *testing.T) {
	t.Parallel()

	doc := detailPage(t, func(s string) string {
		return strings.Replace(s, "star-rating Three", "star-rating Eleven", 1)
	})
	item, err := Extract(doc, detailURL, baseURL)
	require.NoError(t, err)
	require.Nil(t, item.ReviewRating)
}

func TestExtract_MissingTableFails(t *testing.T) {
	t.Parallel()

	doc := detailPage(t, func(s string) string {
		return strings.Replace(s, "table table-striped", "table", 1)
	})
	_, err := Extract(doc, detailURL, baseURL)
	var parseErr *catalog.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "product_information", parseErr.Field)
}

func TestExtract_MissingTitleFails(t *testing.T) {
	t.Parallel()

	doc := detailPage(t, func(s string) string {
		return strings.Replace(s, "<h1>A Light in the Attic</h1>", "", 1)
	})
	_, err := Extract(doc, detailURL, baseURL)
	var parseErr *catalog.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "title", parseErr.Field)
}

func TestExtract_UnknownCurrency(t *testing.T) {
	t.Parallel()

	doc := detailPage(t, func(s string) string {
		return strings.ReplaceAll(s, "&pound;", "$")
	})
	item, err := Extract(doc, detailURL, baseURL)
	require.NoError(t, err)
	require.Equal(t, catalog.CurrencyUnknown, item.Currency)
	require.InDelta(t, 51.77, item.PriceIncludingTax, 0.001)
}

func TestExtract_ImageURLStripsEveryRelativePrefix(t *testing.T) {
	t.Parallel()

	doc := detailPage(t, func(s string) string {
		return strings.Replace(s, `src="../../media`, `src="../../../../media`, 1)
	})
	item, err := Extract(doc, detailURL, baseURL)
	require.NoError(t, err)
	require.Equal(t, "http://books.toscrape.com/media/cache/fe/72/cover.jpg", item.ImageURL)
}

func TestItemIDFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		want    int
		wantErr bool
	}{
		{name: "standard path", url: "http://books.toscrape.com/catalogue/soumission_998/index.html", want: 998},
		{name: "title with underscores", url: "http://books.toscrape.com/catalogue/tipping_the_velvet_999/index.html", want: 999},
		{name: "no trailing id", url: "http://books.toscrape.com/catalogue/soumission/index.html", wantErr: true},
		{name: "zero id", url: "http://books.toscrape.com/catalogue/soumission_0/index.html", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ItemIDFromURL(tc.url)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseCreatedAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{name: "ordinal full month", raw: "22nd October 2016 12:00", want: time.Date(2016, time.October, 22, 12, 0, 0, 0, time.UTC)},
		{name: "first", raw: "1st March 2017 09:30", want: time.Date(2017, time.March, 1, 9, 30, 0, 0, time.UTC)},
		{name: "third", raw: "3rd April 2018 00:00", want: time.Date(2018, time.April, 3, 0, 0, 0, 0, time.UTC)},
		{name: "abbreviated month", raw: "4th Oct 2016 18:45", want: time.Date(2016, time.October, 4, 18, 45, 0, 0, time.UTC)},
		{name: "garbage", raw: "not a date", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCreatedAt(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseAvailability(t *testing.T) {
	t.Parallel()

	got, err := ParseAvailability("In stock (19 available)")
	require.NoError(t, err)
	require.Equal(t, 19, got)

	_, err = ParseAvailability("Out of stock")
	require.Error(t, err)
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	value, currency, err := ParsePrice("£23.88")
	require.NoError(t, err)
	require.Equal(t, catalog.CurrencyGBP, currency)
	require.InDelta(t, 23.88, value, 0.001)

	value, currency, err = ParsePrice("$10.00")
	require.NoError(t, err)
	require.Equal(t, catalog.CurrencyUnknown, currency)
	require.InDelta(t, 10.0, value, 0.001)

	_, _, err = ParsePrice("£abc")
	require.Error(t, err)
}
