package conversation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/aqibot/core/telegram/state"
	"github.com/m3rciful/aqibot/internal/airvisual"
	"github.com/m3rciful/aqibot/internal/aqi"
	"github.com/m3rciful/aqibot/internal/catalog"
	"github.com/m3rciful/aqibot/internal/observability"
)

const sid = int64(100)

type fakeAir struct {
	mu          sync.Mutex
	cityCalls   []airvisual.CityQuery
	coordCalls  [][2]float64
	measurement aqi.Measurement
	err         error
}

func (f *fakeAir) ByCity(_ context.Context, q airvisual.CityQuery) (aqi.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cityCalls = append(f.cityCalls, q)
	if f.err != nil {
		return aqi.Measurement{}, f.err
	}
	m := f.measurement
	if m.LocationLabel == "" {
		m.LocationLabel = q.City + ", " + q.State
	}
	return m, nil
}

func (f *fakeAir) ByCoordinates(_ context.Context, lat, lon float64) (aqi.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coordCalls = append(f.coordCalls, [2]float64{lat, lon})
	if f.err != nil {
		return aqi.Measurement{}, f.err
	}
	return f.measurement, nil
}

func (f *fakeAir) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cityCalls) + len(f.coordCalls)
}

type recorder struct {
	replies []Reply
	typing  int
	err     error
}

func (r *recorder) Reply(_ context.Context, rep Reply) error {
	r.replies = append(r.replies, rep)
	return r.err
}

func (r *recorder) Typing(context.Context) { r.typing++ }

func (r *recorder) last() Reply { return r.replies[len(r.replies)-1] }

func (r *recorder) texts() string {
	parts := make([]string, 0, len(r.replies))
	for _, rep := range r.replies {
		parts = append(parts, rep.Text)
	}
	return strings.Join(parts, "\n---\n")
}

type observerFunc func(Record)

func (f observerFunc) Observe(_ context.Context, r Record) { f(r) }

// selectable returns the labels of the non-navigation buttons of k.
func selectable(k Keyboard) []string {
	var out []string
	for _, row := range k.Rows {
		for _, b := range row {
			if b.Control == ControlNone {
				out = append(out, b.Label)
			}
		}
	}
	return out
}

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

type harness struct {
	m        *Machine
	sessions state.Manager
	air      *fakeAir
	records  []Record
	metrics  *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sessions: state.NewMemoryManager(0, clockwork.NewFakeClock()),
		air:      &fakeAir{measurement: aqi.Measurement{AQI: 75, DominantPollutant: "p2", TemperatureCelsius: 21}},
		metrics:  observability.NewMetricsForTesting(),
	}
	m, err := New(Options{
		Catalog:  defaultCatalog(t),
		Sessions: h.sessions,
		Air:      h.air,
		Observer: observerFunc(func(r Record) { h.records = append(h.records, r) }),
		Metrics:  h.metrics,
	})
	require.NoError(t, err)
	h.m = m
	return h
}

func (h *harness) do(t *testing.T, a Action) *recorder {
	t.Helper()
	out := &recorder{}
	require.NoError(t, h.m.Handle(context.Background(), Turn{SessionID: sid, User: User{ID: 7, Username: "u"}, Action: a}, out))
	return out
}

func (h *harness) session(t *testing.T) state.Session {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), sid)
	require.NoError(t, err)
	return s
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Catalog: defaultCatalog(t)})
	assert.Error(t, err)
	_, err = New(Options{Catalog: defaultCatalog(t), Sessions: state.NewMemoryManager(0, nil)})
	assert.Error(t, err)
}

func TestMenuLayout(t *testing.T) {
	kb := Menu([]string{"a", "b", "c"}, ControlBackToMain)
	require.Equal(t, KeyboardMenu, kb.Kind)
	assert.Equal(t, [][]Button{
		{{Label: "a"}, {Label: "b"}},
		{{Label: "c"}},
		{{Control: ControlBackToMain}},
	}, kb.Rows)

	empty := Menu(nil, ControlBackToRegions)
	assert.Equal(t, [][]Button{{{Control: ControlBackToRegions}}}, empty.Rows)
	assert.Empty(t, selectable(empty))
}

func TestStart(t *testing.T) {
	h := newHarness(t)
	out := h.do(t, Start())
	require.Len(t, out.replies, 1)
	assert.True(t, out.last().Markdown)
	assert.Equal(t, KeyboardMain, out.last().Keyboard.Kind)
	assert.True(t, h.session(t).Idle())
	assert.Equal(t, "Start Command", h.records[0].Action)
	assert.Equal(t, int64(7), h.records[0].User.ID)
}

func TestEnterRegionSelection(t *testing.T) {
	h := newHarness(t)
	out := h.do(t, Browse())

	require.Len(t, out.replies, 1)
	kb := out.last().Keyboard
	assert.Equal(t, defaultCatalog(t).RegionNames(), selectable(kb))
	for _, row := range kb.Rows[:len(kb.Rows)-1] {
		assert.LessOrEqual(t, len(row), 2)
	}
	assert.Equal(t, []Button{{Control: ControlBackToMain}}, kb.Rows[len(kb.Rows)-1])
	assert.Equal(t, ChoosingRegion, h.session(t).State)
	assert.Zero(t, h.air.calls())
}

func TestRegionChosen_WithCities(t *testing.T) {
	h := newHarness(t)
	h.do(t, Browse())
	out := h.do(t, Select("Bukhara"))

	require.Len(t, out.replies, 1)
	assert.Contains(t, out.last().Text, "Bukhara")
	assert.Equal(t, []string{"Bukhara", "Kagan"}, selectable(out.last().Keyboard))
	rows := out.last().Keyboard.Rows
	assert.Equal(t, []Button{{Control: ControlBackToRegions}}, rows[len(rows)-1])

	s := h.session(t)
	assert.Equal(t, ChoosingCity, s.State)
	assert.Equal(t, "Bukhara", s.Region)
	assert.Equal(t, Record{User: User{ID: 7, Username: "u"}, Action: "Select Region", Details: "Bukhara"}, h.records[len(h.records)-1])
}

func TestRegionChosen_EmptyRegionsOfferOnlyBack(t *testing.T) {
	cat := defaultCatalog(t)
	for _, name := range cat.RegionNames() {
		if len(cat.Cities(name)) > 0 {
			continue
		}
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.do(t, Browse())
			out := h.do(t, Select(name))

			kb := out.last().Keyboard
			assert.Empty(t, selectable(kb))
			assert.Equal(t, [][]Button{{{Control: ControlBackToRegions}}}, kb.Rows)
			assert.Contains(t, out.last().Text, "No monitoring stations")
			assert.Equal(t, ChoosingCity, h.session(t).State)

			back := h.do(t, BackToRegions())
			assert.Equal(t, ChoosingRegion, h.session(t).State)
			assert.Equal(t, cat.RegionNames(), selectable(back.last().Keyboard))
		})
	}
}

func TestRegionChosen_Invalid(t *testing.T) {
	h := newHarness(t)
	h.do(t, Browse())
	for _, text := range []string{"bukhara", "Atlantis", ""} {
		out := h.do(t, Select(text))
		assert.Contains(t, out.last().Text, "Invalid region")
		assert.Equal(t, defaultCatalog(t).RegionNames(), selectable(out.last().Keyboard))
		assert.Equal(t, ChoosingRegion, h.session(t).State)
	}
	out := h.do(t, BackToRegions())
	assert.Contains(t, out.last().Text, "Invalid region")
	assert.Equal(t, ChoosingRegion, h.session(t).State)
}

func TestBackToMainIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.do(t, Browse())
	fresh := h.session(t)

	out := h.do(t, BackToMain())
	assert.Equal(t, "Main menu restored.", out.last().Text)
	assert.Equal(t, KeyboardMain, out.last().Keyboard.Kind)
	assert.True(t, h.session(t).Idle())

	h.do(t, Browse())
	again := h.session(t)
	assert.Equal(t, fresh.State, again.State)
	assert.Equal(t, fresh.Region, again.Region)
	assert.Zero(t, h.air.calls())
}

func TestCityChosen_Report(t *testing.T) {
	h := newHarness(t)
	h.do(t, Browse())
	h.do(t, Select("Bukhara"))
	out := h.do(t, Select("Kagan"))

	require.Len(t, h.air.cityCalls, 1)
	assert.Equal(t, airvisual.CityQuery{City: "Kagan", State: "Bukhara", Country: "Uzbekistan"}, h.air.cityCalls[0])

	require.Len(t, out.replies, 3)
	assert.Equal(t, 1, out.typing)
	assert.Contains(t, out.replies[0].Text, "Fetching AQI for *Kagan*")
	assert.Equal(t, KeyboardRemove, out.replies[0].Keyboard.Kind)

	report := out.replies[1]
	assert.True(t, report.Markdown)
	assert.Contains(t, report.Text, "Kagan")
	tier, err := aqi.Classify(75)
	require.NoError(t, err)
	assert.Contains(t, report.Text, tier.Label())
	assert.Contains(t, report.Text, "Moderate")

	assert.Equal(t, "Select another option:", out.replies[2].Text)
	assert.Equal(t, KeyboardMain, out.replies[2].Keyboard.Kind)
	assert.True(t, h.session(t).Idle())
	assert.Equal(t, Record{User: User{ID: 7, Username: "u"}, Action: "AQI by City", Details: "Kagan, Bukhara"}, h.records[len(h.records)-1])
}

func TestCityChosen_Invalid(t *testing.T) {
	h := newHarness(t)
	h.do(t, Browse())
	h.do(t, Select("Bukhara"))

	for _, text := range []string{"Tashkent", "kagan", ""} {
		out := h.do(t, Select(text))
		assert.Contains(t, out.last().Text, "Invalid city")
		assert.Equal(t, []string{"Bukhara", "Kagan"}, selectable(out.last().Keyboard))

		s := h.session(t)
		assert.Equal(t, ChoosingCity, s.State)
		assert.Equal(t, "Bukhara", s.Region)
	}
	assert.Zero(t, h.air.calls())
}

func TestCityChosen_BackToRegions(t *testing.T) {
	h := newHarness(t)
	h.do(t, Browse())
	h.do(t, Select("Navoiy"))
	out := h.do(t, BackToRegions())

	assert.Equal(t, "Returning to region selection...", out.last().Text)
	assert.Equal(t, defaultCatalog(t).RegionNames(), selectable(out.last().Keyboard))
	s := h.session(t)
	assert.Equal(t, ChoosingRegion, s.State)
	assert.Empty(t, s.Region)
	assert.Zero(t, h.air.calls())
}

func TestCityChosen_UpstreamFailure(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"network":  {errors.New("dial tcp: connection refused"), "Network or API communication error"},
		"api":      {&airvisual.APIError{Status: 200, Message: "city_not_found"}, `city\_not\_found`},
		"negative": {airvisual.ErrInvalidMeasurement, "invalid data"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.air.err = tc.err
			h.do(t, Browse())
			h.do(t, Select("Bukhara"))
			out := h.do(t, Select("Kagan"))

			require.Len(t, out.replies, 3)
			assert.Contains(t, out.replies[1].Text, tc.want)
			assert.Equal(t, KeyboardMain, out.last().Keyboard.Kind)
			assert.True(t, h.session(t).Idle())
		})
	}
}

func TestCityChosen_MissingMeasurementIsNotGood(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"city":"Kagan","state":"Bukhara"}}`))
	}))
	defer srv.Close()

	air, err := airvisual.NewClient(airvisual.Options{
		APIKey:  "k",
		BaseURL: srv.URL,
		Metrics: observability.NewMetricsForTesting(),
	})
	require.NoError(t, err)
	h := newHarness(t)
	h.m, err = New(Options{Catalog: defaultCatalog(t), Sessions: h.sessions, Air: air})
	require.NoError(t, err)

	h.do(t, Browse())
	h.do(t, Select("Bukhara"))
	out := h.do(t, Select("Kagan"))

	assert.Contains(t, out.texts(), "invalid data")
	assert.NotContains(t, out.texts(), aqi.Good.Label())
	assert.True(t, h.session(t).Idle())
}

func TestLocationInterruptsFlow(t *testing.T) {
	for _, setup := range [][]Action{
		nil,
		{Browse()},
		{Browse(), Select("Toshkent")},
	} {
		h := newHarness(t)
		h.air.measurement = aqi.Measurement{LocationLabel: "Tashkent, Toshkent Shahri", AQI: 160, DominantPollutant: "p2"}
		for _, a := range setup {
			h.do(t, a)
		}
		out := h.do(t, Location(41.3111, 69.2797))

		require.Len(t, h.air.coordCalls, 1)
		assert.Empty(t, h.air.cityCalls)
		assert.Equal(t, [2]float64{41.3111, 69.2797}, h.air.coordCalls[0])
		assert.Equal(t, KeyboardRemove, out.replies[0].Keyboard.Kind)
		assert.Contains(t, out.texts(), "Tashkent, Toshkent Shahri")
		assert.Contains(t, out.texts(), "Unhealthy")
		assert.True(t, h.session(t).Idle())
		assert.Equal(t, "Lat 41.3111, Lon 69.2797", h.records[len(h.records)-1].Details)
	}
}

func TestLocationFailureUsesCoordinates(t *testing.T) {
	h := newHarness(t)
	h.air.err = &airvisual.APIError{Message: "no_nearest_station"}
	out := h.do(t, Location(1.5, 2.25))
	assert.Contains(t, out.texts(), "Location (Lat: 1.50, Lon 2.25)")
	assert.True(t, h.session(t).Idle())
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	h.do(t, Browse())
	h.do(t, Select("Bukhara"))
	out := h.do(t, Cancel())

	assert.Equal(t, "Conversation cancelled. Main menu restored.", out.last().Text)
	assert.True(t, h.session(t).Idle())
	assert.Zero(t, h.air.calls())
}

func TestIdleFreeText(t *testing.T) {
	h := newHarness(t)
	out := h.do(t, Select("hello"))
	assert.Equal(t, KeyboardMain, out.last().Keyboard.Kind)
	assert.True(t, h.session(t).Idle())
	assert.Empty(t, h.records)
}

func TestIdleBackToRegionsReopensMenu(t *testing.T) {
	h := newHarness(t)
	h.do(t, BackToRegions())
	assert.Equal(t, ChoosingRegion, h.session(t).State)
}

func TestBrowseRestartsFromCity(t *testing.T) {
	h := newHarness(t)
	h.do(t, Browse())
	h.do(t, Select("Bukhara"))
	h.do(t, Browse())
	s := h.session(t)
	assert.Equal(t, ChoosingRegion, s.State)
	assert.Empty(t, s.Region)
}

func TestSessionsAreIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.m.Handle(ctx, Turn{SessionID: 1, Action: Browse()}, &recorder{}))
	require.NoError(t, h.m.Handle(ctx, Turn{SessionID: 2, Action: Browse()}, &recorder{}))
	require.NoError(t, h.m.Handle(ctx, Turn{SessionID: 1, Action: Select("Bukhara")}, &recorder{}))

	s1, _ := h.sessions.Get(ctx, 1)
	s2, _ := h.sessions.Get(ctx, 2)
	assert.Equal(t, ChoosingCity, s1.State)
	assert.Equal(t, ChoosingRegion, s2.State)
}

func TestReplyErrorsDoNotCorruptSession(t *testing.T) {
	h := newHarness(t)
	h.do(t, Browse())

	out := &recorder{err: errors.New("telegram down")}
	err := h.m.Handle(context.Background(), Turn{SessionID: sid, Action: Select("Bukhara")}, out)
	require.Error(t, err)
	s := h.session(t)
	assert.Equal(t, ChoosingCity, s.State)
	assert.Equal(t, "Bukhara", s.Region)
}

func TestTransitionsCounted(t *testing.T) {
	h := newHarness(t)
	h.do(t, Browse())
	h.do(t, Select("Bukhara"))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Transitions.WithLabelValues("idle", "choosing_region")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Transitions.WithLabelValues("choosing_region", "choosing_city")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "location", KindLocation.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
