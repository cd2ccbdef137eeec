package mapview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stl-inc/as-report-api/geo"
	"github.com/stl-inc/as-report-api/schema"
	"github.com/stl-inc/as-report-api/store"
)

const logPrefix = "mapview"

var (
	ErrInvalidState        = fmt.Errorf("action is not available in the current state")
	ErrUnknownMarker       = fmt.Errorf("unknown marker")
	ErrLocationUnavailable = fmt.Errorf("device location is unavailable")
)

// DefaultCenter is where the map opens before a device fix arrives
var DefaultCenter = schema.LatLng{Lat: 36.883771, Lng: 127.158570}

// State of the marker interaction
type State int

const (
	Idle State = iota
	PendingPlacement
	Selected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingPlacement:
		return "pending_placement"
	case Selected:
		return "selected"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	IconInstalled = "installed"
	IconPending   = "pending"
)

// Marker is a rendered pin. Persisted markers carry the id of their location.
type Marker struct {
	ID       string        `json:"id,omitempty"`
	Position schema.LatLng `json:"position"`
	Address  string        `json:"address"`
	Icon     string        `json:"icon"`
}

// View is a snapshot of the map state for rendering
type View struct {
	State        State         `json:"state"`
	Center       schema.LatLng `json:"center"`
	Markers      []Marker      `json:"markers"`
	Pending      *Marker       `json:"pending,omitempty"`
	SelectedID   string        `json:"selected_id,omitempty"`
	Address      string        `json:"address"`
	AddressFound bool          `json:"address_found"`
}

// Handoff is the navigation state passed to the report editor
type Handoff struct {
	Address string `json:"address"`
}

// Manager is the marker state machine of one session
type Manager struct {
	sync.Mutex

	locations       store.Locations
	reports         store.Reports
	geocoder        geo.Geocoder
	addressNotFound string
	now             func() time.Time

	state        State
	center       schema.LatLng
	markers      []Marker
	pending      *schema.LatLng
	selectedID   string
	address      string
	addressFound bool
}

func NewManager(locations store.Locations, reports store.Reports, geocoder geo.Geocoder, addressNotFound string) *Manager {
	return &Manager{
		locations:       locations,
		reports:         reports,
		geocoder:        geocoder,
		addressNotFound: addressNotFound,
		now:             time.Now,
		state:           Idle,
		center:          DefaultCenter,
		markers:         []Marker{},
	}
}

// view must be called with the lock held
func (m *Manager) view() View {
	markers := make([]Marker, len(m.markers))
	copy(markers, m.markers)

	v := View{
		State:        m.state,
		Center:       m.center,
		Markers:      markers,
		SelectedID:   m.selectedID,
		Address:      m.address,
		AddressFound: m.addressFound,
	}
	if m.pending != nil {
		v.Pending = &Marker{
			Position: *m.pending,
			Address:  m.address,
			Icon:     IconPending,
		}
	}
	return v
}

func (m *Manager) View() View {
	m.Lock()
	defer m.Unlock()
	return m.view()
}

// resolve turns a coordinate into a display address. A failed lookup yields
// the not-found text.
func (m *Manager) resolve(ctx context.Context, p schema.LatLng) (string, bool) {
	address, err := m.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		log.WithField("prefix", logPrefix).WithField("lat", p.Lat).WithField("lng", p.Lng).Warnf("reverse geocode: %s", err)
		return m.addressNotFound, false
	}
	return address, true
}

// Load reads every persisted location once and renders it as an installed
// marker. Nothing is written back.
func (m *Manager) Load(ctx context.Context) (View, error) {
	locations, err := m.locations.ListLocations(ctx)
	if err != nil {
		return View{}, err
	}

	markers := make([]Marker, 0, len(locations))
	for _, l := range locations {
		markers = append(markers, Marker{
			ID:       l.ID,
			Position: l.Position(),
			Address:  l.Address,
			Icon:     IconInstalled,
		})
	}

	m.Lock()
	defer m.Unlock()
	m.markers = markers
	return m.view(), nil
}

// Click places the temporary marker at the clicked point
func (m *Manager) Click(ctx context.Context, p schema.LatLng) (View, error) {
	address, found := m.resolve(ctx, p)

	m.Lock()
	defer m.Unlock()
	pos := p
	m.state = PendingPlacement
	m.pending = &pos
	m.selectedID = ""
	m.address = address
	m.addressFound = found
	return m.view(), nil
}

// Confirm persists the pending marker. The address is resolved again at
// confirm time.
func (m *Manager) Confirm(ctx context.Context) (View, error) {
	m.Lock()
	if m.state != PendingPlacement || m.pending == nil {
		m.Unlock()
		return View{}, ErrInvalidState
	}
	p := *m.pending
	m.Unlock()

	address, found := m.resolve(ctx, p)
	if !found {
		return View{}, geo.ErrNoGeoInfoFound
	}

	loc := &schema.Location{
		Lat:       p.Lat,
		Lng:       p.Lng,
		Address:   address,
		Type:      schema.LocationTypeAS,
		Timestamp: m.now().UTC(),
	}
	id, err := m.locations.AddLocation(ctx, loc)
	if err != nil {
		return View{}, err
	}

	m.Lock()
	defer m.Unlock()
	m.markers = append(m.markers, Marker{
		ID:       id,
		Position: p,
		Address:  address,
		Icon:     IconInstalled,
	})
	m.state = Idle
	m.pending = nil
	m.address = address
	m.addressFound = true
	return m.view(), nil
}

func (m *Manager) findMarker(id string) (Marker, bool) {
	for _, mk := range m.markers {
		if mk.ID == id {
			return mk, true
		}
	}
	return Marker{}, false
}

// Select marks a persisted marker as selected and resolves its address from
// its coordinate.
func (m *Manager) Select(ctx context.Context, id string) (View, error) {
	m.Lock()
	mk, ok := m.findMarker(id)
	m.Unlock()

	if !ok {
		loc, err := m.locations.GetLocation(ctx, id)
		if err == store.ErrLocationNotFound {
			return View{}, ErrUnknownMarker
		}
		if err != nil {
			return View{}, err
		}
		mk = Marker{ID: loc.ID, Position: loc.Position(), Address: loc.Address, Icon: IconInstalled}
	}

	address, found := m.resolve(ctx, mk.Position)

	m.Lock()
	defer m.Unlock()
	if _, known := m.findMarker(mk.ID); !known {
		m.markers = append(m.markers, mk)
	}
	m.state = Selected
	m.pending = nil
	m.selectedID = mk.ID
	m.address = address
	m.addressFound = found
	return m.view(), nil
}

// Delete removes the selected marker by id. A pending marker is discarded
// together with any location stored at exactly its coordinate.
func (m *Manager) Delete(ctx context.Context) (View, error) {
	m.Lock()
	state := m.state
	selectedID := m.selectedID
	var pending schema.LatLng
	if m.pending != nil {
		pending = *m.pending
	}
	m.Unlock()

	removed := map[string]bool{}
	switch state {
	case Selected:
		if err := m.locations.DeleteLocation(ctx, selectedID); err != nil && err != store.ErrLocationNotFound {
			return View{}, err
		}
		removed[selectedID] = true
	case PendingPlacement:
		matches, err := m.locations.FindLocationsAt(ctx, pending.Lat, pending.Lng)
		if err != nil {
			return View{}, err
		}
		for _, l := range matches {
			if err := m.locations.DeleteLocation(ctx, l.ID); err != nil && err != store.ErrLocationNotFound {
				return View{}, err
			}
			removed[l.ID] = true
		}
	default:
		return View{}, ErrInvalidState
	}

	m.Lock()
	defer m.Unlock()
	kept := make([]Marker, 0, len(m.markers))
	for _, mk := range m.markers {
		if !removed[mk.ID] {
			kept = append(kept, mk)
		}
	}
	m.markers = kept
	m.state = Idle
	m.pending = nil
	m.selectedID = ""
	m.address = ""
	m.addressFound = false
	return m.view(), nil
}

// CreateReport hands the resolved address over to the report editor. The map
// state is left as it is.
func (m *Manager) CreateReport() (Handoff, error) {
	m.Lock()
	defer m.Unlock()
	if m.state == Idle {
		return Handoff{}, ErrInvalidState
	}
	return Handoff{Address: m.address}, nil
}

// Locate centers the map on a device fix
func (m *Manager) Locate(p *schema.LatLng) (View, error) {
	if p == nil {
		return View{}, ErrLocationUnavailable
	}

	m.Lock()
	defer m.Unlock()
	m.center = *p
	return m.view(), nil
}

// Search centers the map on the first place matching the text. Empty results
// and provider failures are returned to the caller.
func (m *Manager) Search(ctx context.Context, query string) (View, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return View{}, geo.ErrNoSearchResult
	}

	positions, err := m.geocoder.KeywordSearch(ctx, query)
	if err != nil {
		log.WithField("prefix", logPrefix).WithField("query", query).Warnf("keyword search: %s", err)
		return View{}, err
	}
	if len(positions) == 0 {
		return View{}, geo.ErrNoSearchResult
	}

	m.Lock()
	defer m.Unlock()
	m.center = positions[0]
	return m.view(), nil
}

// ListReportsAt returns the reports written for the currently shown address
func (m *Manager) ListReportsAt(ctx context.Context) ([]schema.Report, error) {
	m.Lock()
	address := m.address
	state := m.state
	m.Unlock()

	if state == Idle || address == "" {
		return nil, ErrInvalidState
	}

	reports, err := m.reports.ListReports(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]schema.Report, 0)
	for _, r := range reports {
		if strings.Contains(r.FullAddress(), address) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}
