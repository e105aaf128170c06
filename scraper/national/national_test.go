package national

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tyre-scraper/models"
	"tyre-scraper/scraper"
	"tyre-scraper/utils"
)

type fakeFetcher struct {
	html string
	err  error
	url  string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.url = url
	return f.html, f.err
}

const resultsPage = `
<html><body>
<div id="PageContent_ucTyreResults_rptTyres_divTyre_0"
     data-brand="VREDESTEIN" data-price="84.99" data-grip="B" data-fuel="C"
     data-tyre-season="Summer" data-budget="false" data-electric="true"
     data-tyre-type="Car">
  <a id="PageContent_ucTyreResults_rptTyres_hypPattern_0">Ultrac</a>
  <div class="details">
    <p>Vredestein Ultrac</p>
    <p>205/55 R16 91V</p>
  </div>
  <div id="PageContent_ucTyreResults_rptTyres_divTyreLabel_0"
       style="background-image: url('/tyre-eprel-image.ashx?NL=71&amp;NMV=B&amp;WG=B')"></div>
  <div class="tyreresult">
    <button data-partcode="2055516VREDV">Add to basket</button>
  </div>
</div>
<div id="PageContent_ucTyreResults_rptTyres_divTyre_1"
     data-brand="NEXEN" data-price="61.50">
  <a id="PageContent_ucTyreResults_rptTyres_hypPattern_1">N Blue HD Plus</a>
  <div class="details">
    <p>Nexen N Blue</p>
    <p>205/55 R16 91H</p>
  </div>
  <div class="tyreresult">
    <button>Add to basket</button>
  </div>
</div>
</body></html>`

func TestBuildQuery(t *testing.T) {
	a := New(&fakeFetcher{}, utils.NewLogger(false))
	got := a.BuildQuery(models.Query{Width: 205, AspectRatio: 55, RimDiameter: 16})
	assert.Equal(t, "https://national.co.uk/tyres-search/205-55-16?pc=DN67RL", got)
}

func TestExtractParsesListings(t *testing.T) {
	fetcher := &fakeFetcher{html: resultsPage}
	a := New(fetcher, utils.NewLogger(false))
	q := models.Query{Width: 205, AspectRatio: 55, RimDiameter: 16}

	listings, err := a.Extract(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, a.BuildQuery(q), fetcher.url)

	first := listings[0]
	assert.Equal(t, "2055516VREDV", first[models.KeySKU])
	assert.Equal(t, "VREDESTEIN", first[models.KeyBrand])
	assert.Equal(t, "Ultrac", first[models.KeyPattern])
	assert.Equal(t, "84.99", first[models.KeyPrice])
	assert.Equal(t, "205/55", first[models.KeySize])
	assert.Equal(t, "R16", first[models.KeyRim])
	assert.Equal(t, "91V", first[models.KeyLoadSpeed])
	assert.Equal(t, "B", first[models.KeyWetGrip])
	assert.Equal(t, "C", first[models.KeyFuel])
	assert.Equal(t, "71", first[models.KeyNoiseDB])
	assert.Equal(t, "B", first[models.KeyNoiseLetter])
	assert.Equal(t, "Summer", first[models.KeySeason])
	assert.Equal(t, "false", first[models.KeyBudget])
	assert.Equal(t, "true", first[models.KeyElectric])
	assert.Equal(t, "Car", first[models.KeyVehicleType])

	// second listing has no partcode button and no label image
	second := listings[1]
	_, hasSKU := second.Get(models.KeySKU)
	assert.False(t, hasSKU)
	_, hasNoise := second.Get(models.KeyNoiseDB)
	assert.False(t, hasNoise)
	assert.Equal(t, "NEXEN", second[models.KeyBrand])
	assert.Equal(t, "91H", second[models.KeyLoadSpeed])
}

func TestExtractWrapsFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	a := New(fetcher, utils.NewLogger(false))

	_, err := a.Extract(context.Background(), models.Query{Width: 205, AspectRatio: 55, RimDiameter: 16})
	require.Error(t, err)

	var fetchErr *scraper.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "national.co.uk", fetchErr.Domain)
}
