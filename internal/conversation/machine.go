// Package conversation implements the region -> city -> report dialog.
//
// A Machine consumes one Turn at a time per session. Turns of one session must
// be serialized by the caller; different sessions may run concurrently.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/aqibot/core/logger"
	"github.com/m3rciful/aqibot/core/telegram/format"
	"github.com/m3rciful/aqibot/core/telegram/state"
	"github.com/m3rciful/aqibot/internal/airvisual"
	"github.com/m3rciful/aqibot/internal/aqi"
	"github.com/m3rciful/aqibot/internal/catalog"
	"github.com/m3rciful/aqibot/internal/observability"
)

// Dialog states.
const (
	Idle           = state.StateIdle
	ChoosingRegion = state.State("choosing_region")
	ChoosingCity   = state.State("choosing_city")
)

// DefaultCountry is sent with city lookups when Options.Country is empty.
const DefaultCountry = "Uzbekistan"

// AirQuality fetches measurements.
type AirQuality interface {
	ByCity(ctx context.Context, q airvisual.CityQuery) (aqi.Measurement, error)
	ByCoordinates(ctx context.Context, lat, lon float64) (aqi.Measurement, error)
}

// Record is a usage event emitted for each meaningful user action.
type Record struct {
	User    User
	Action  string
	Details string
}

// Observer receives usage records. Observe must not block.
type Observer interface {
	Observe(ctx context.Context, r Record)
}

// Responder delivers replies of a turn in order.
type Responder interface {
	Reply(ctx context.Context, r Reply) error
	// Typing signals that a slow operation is in progress.
	Typing(ctx context.Context)
}

// Options configures a Machine.
type Options struct {
	Catalog  *catalog.Catalog
	Sessions state.Manager
	Air      AirQuality
	Observer Observer
	Metrics  *observability.Metrics
	Country  string
}

// Machine is the conversation state machine.
type Machine struct {
	catalog  *catalog.Catalog
	sessions state.Manager
	air      AirQuality
	observer Observer
	metrics  *observability.Metrics
	country  string
}

// New validates opts and builds a Machine.
func New(opts Options) (*Machine, error) {
	if opts.Catalog == nil {
		return nil, errors.New("conversation: catalog is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("conversation: session manager is required")
	}
	if opts.Air == nil {
		return nil, errors.New("conversation: air quality source is required")
	}
	country := opts.Country
	if country == "" {
		country = DefaultCountry
	}
	return &Machine{
		catalog:  opts.Catalog,
		sessions: opts.Sessions,
		air:      opts.Air,
		observer: opts.Observer,
		metrics:  opts.Metrics,
		country:  country,
	}, nil
}

// turn carries the per-turn working set.
type turn struct {
	Turn
	ctx  context.Context
	sess state.Session
	out  Responder
	errs []error
}

func (t *turn) reply(r Reply) {
	if err := t.out.Reply(t.ctx, r); err != nil {
		t.errs = append(t.errs, err)
	}
}

// Handle applies one action to the session and sends the resulting replies.
// The returned error reports delivery or storage failures only; the session
// always ends in a consistent state.
func (m *Machine) Handle(ctx context.Context, in Turn, out Responder) error {
	sess, err := m.sessions.Get(ctx, in.SessionID)
	if err != nil {
		logger.Warn(ctx, "conversation", "session.load.fail",
			slog.Int64("session_id", in.SessionID),
			slog.String("err", err.Error()),
		)
		sess = state.Fresh()
	}
	from := sess.State
	if from == "" {
		from = Idle
	}

	t := &turn{Turn: in, ctx: ctx, sess: sess, out: out}
	next := m.dispatch(t, from)

	if err := m.store(ctx, in.SessionID, next); err != nil {
		t.errs = append(t.errs, err)
	}

	m.metrics.Transition(string(from), string(next.State))
	logger.Debug(ctx, "conversation", "transition",
		slog.Int64("session_id", in.SessionID),
		slog.String("action", in.Action.Kind.String()),
		slog.String("from", string(from)),
		slog.String("to", string(next.State)),
	)
	return errors.Join(t.errs...)
}

func (m *Machine) store(ctx context.Context, id int64, s state.Session) error {
	if s.Idle() {
		if err := m.sessions.Clear(ctx, id); err != nil {
			return fmt.Errorf("conversation: clear session: %w", err)
		}
		return nil
	}
	if err := m.sessions.Save(ctx, id, s); err != nil {
		return fmt.Errorf("conversation: save session: %w", err)
	}
	return nil
}

func (m *Machine) dispatch(t *turn, from state.State) state.Session {
	a := t.Action
	switch a.Kind {
	case KindStart:
		return m.start(t)
	case KindBrowse:
		return m.enterRegionSelection(t)
	case KindLocation:
		return m.locationShared(t)
	case KindCancel:
		return m.cancel(t)
	case KindBackToMain:
		return m.backToMain(t)
	}

	switch from {
	case ChoosingRegion:
		return m.regionChosen(t)
	case ChoosingCity:
		return m.cityChosen(t)
	}

	// Idle.
	if a.Kind == KindBackToRegions {
		return m.enterRegionSelection(t)
	}
	t.reply(Reply{Text: msgUseButtons, Keyboard: mainMenu()})
	return state.Fresh()
}

func (m *Machine) observe(t *turn, action, details string) {
	if m.observer == nil {
		return
	}
	m.observer.Observe(t.ctx, Record{User: t.User, Action: action, Details: details})
}

func (m *Machine) start(t *turn) state.Session {
	m.observe(t, auditStart, "")
	t.reply(Reply{Text: msgWelcome, Markdown: true, Keyboard: mainMenu()})
	return state.Fresh()
}

func (m *Machine) cancel(t *turn) state.Session {
	m.observe(t, auditCancelled, "")
	t.reply(Reply{Text: msgCancelled, Keyboard: mainMenu()})
	return state.Fresh()
}

func (m *Machine) backToMain(t *turn) state.Session {
	m.observe(t, auditBackToMain, "")
	t.reply(Reply{Text: msgMainRestored, Keyboard: mainMenu()})
	return state.Fresh()
}

func (m *Machine) regionMenu() Keyboard {
	return Menu(m.catalog.RegionNames(), ControlBackToMain)
}

func (m *Machine) enterRegionSelection(t *turn) state.Session {
	m.observe(t, auditStartRegions, "")
	t.reply(Reply{Text: msgChooseRegion, Keyboard: m.regionMenu()})
	return state.Session{State: ChoosingRegion}
}

func (m *Machine) regionChosen(t *turn) state.Session {
	if t.Action.Kind != KindSelect {
		t.reply(Reply{Text: msgInvalidRegion, Keyboard: m.regionMenu()})
		return t.sess
	}
	region, err := m.catalog.Lookup(t.Action.Text)
	if err != nil {
		t.reply(Reply{Text: msgInvalidRegion, Keyboard: m.regionMenu()})
		return t.sess
	}

	m.observe(t, auditSelectRegion, region.Name)
	text := fmt.Sprintf(msgChooseCity, format.MD(region.Name))
	if len(region.Cities) == 0 {
		text = fmt.Sprintf(msgNoStations, format.MD(region.Name))
	}
	t.reply(Reply{Text: text, Markdown: true, Keyboard: Menu(region.Cities, ControlBackToRegions)})
	return state.Session{State: ChoosingCity, Region: region.Name}
}

func (m *Machine) cityChosen(t *turn) state.Session {
	if t.Action.Kind == KindBackToRegions {
		m.observe(t, auditBackToRegions, "")
		t.reply(Reply{Text: msgReturnRegions, Keyboard: m.regionMenu()})
		return state.Session{State: ChoosingRegion}
	}

	region, err := m.catalog.Lookup(t.sess.Region)
	if err != nil {
		// The stored region vanished from the catalog; restart the region step.
		t.reply(Reply{Text: msgChooseRegion, Keyboard: m.regionMenu()})
		return state.Session{State: ChoosingRegion}
	}
	city := t.Action.Text
	if t.Action.Kind != KindSelect || !region.HasCity(city) {
		t.reply(Reply{Text: msgInvalidCity, Keyboard: Menu(region.Cities, ControlBackToRegions)})
		return t.sess
	}

	m.observe(t, auditByCity, city+", "+region.Param)
	// The turn ends Idle whatever the fetch outcome.
	if err := m.store(t.ctx, t.SessionID, state.Fresh()); err != nil {
		t.errs = append(t.errs, err)
	}

	t.out.Typing(t.ctx)
	t.reply(Reply{Text: fmt.Sprintf(msgFetching, format.MD(city)), Markdown: true, Keyboard: removeKeyboard()})

	meas, err := m.air.ByCity(t.ctx, airvisual.CityQuery{City: city, State: region.Param, Country: m.country})
	m.deliver(t, meas, err, city+", "+region.Param)
	return state.Fresh()
}

func (m *Machine) locationShared(t *turn) state.Session {
	lat, lon := t.Action.Lat, t.Action.Lon
	m.observe(t, auditByLocation, fmt.Sprintf("Lat %.4f, Lon %.4f", lat, lon))
	if err := m.store(t.ctx, t.SessionID, state.Fresh()); err != nil {
		t.errs = append(t.errs, err)
	}

	t.reply(Reply{Text: msgLocationReceived, Keyboard: removeKeyboard()})
	t.out.Typing(t.ctx)

	meas, err := m.air.ByCoordinates(t.ctx, lat, lon)
	m.deliver(t, meas, err, fmt.Sprintf("Location (Lat: %.2f, Lon %.2f)", lat, lon))
	return state.Fresh()
}

// deliver sends the report for a fetch result, or an apology when the fetch
// failed, followed by the main menu.
func (m *Machine) deliver(t *turn, meas aqi.Measurement, err error, fallbackLabel string) {
	if err == nil {
		var tier aqi.Tier
		tier, err = aqi.Classify(meas.AQI)
		if err == nil {
			t.reply(Reply{Text: aqi.Format(meas, tier), Markdown: true})
		}
	}
	if err != nil {
		logger.Warn(t.ctx, "conversation", "fetch.fail",
			slog.Int64("session_id", t.SessionID),
			slog.String("location", fallbackLabel),
			slog.String("err", err.Error()),
		)
		t.reply(Reply{Text: fetchFailureText(err, fallbackLabel), Markdown: true})
	}
	t.reply(Reply{Text: msgSelectAnother, Keyboard: mainMenu()})
	logger.Debug(t.ctx, "conversation", "report.delivered",
		slog.Int64("session_id", t.SessionID),
		slog.Bool("ok", err == nil),
	)
}

func fetchFailureText(err error, label string) string {
	var apiErr *airvisual.APIError
	switch {
	case errors.As(err, &apiErr):
		return fmt.Sprintf(msgAPIError, format.MD(label), format.MD(apiErr.Message))
	case errors.Is(err, airvisual.ErrInvalidMeasurement), errors.Is(err, aqi.ErrOutOfRange):
		return fmt.Sprintf(msgInvalidData, format.MD(label))
	default:
		return msgNetworkError
	}
}
