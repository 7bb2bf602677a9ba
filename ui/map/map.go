package mapview

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonas-p/go-shp"

	"aprsbridge/packet"
)

// Constants for Panning and Zooming
const (
	panFactor  = 0.1
	zoomFactor = 1.2
)

var worldBounds = shp.Box{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

type station struct {
	callsign string
	pos      packet.Position
}

// Model holds the map's state
type Model struct {
	width  int
	height int

	mapPolygons    []*shp.Polygon
	originalBounds shp.Box
	viewBounds     shp.Box

	home    packet.Position
	hasHome bool

	stations []station
}

// loadMapData reads the polygons of a shapefile and their bounding box.
func loadMapData(path string) ([]*shp.Polygon, shp.Box, error) {
	shapeFile, err := shp.Open(path)
	if err != nil {
		return nil, shp.Box{}, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shapeFile.Close()

	var polygons []*shp.Polygon
	bounds := shp.Box{MinX: 1e9, MinY: 1e9, MaxX: -1e9, MaxY: -1e9}

	for shapeFile.Next() {
		_, shape := shapeFile.Shape()
		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		polygons = append(polygons, polygon)
		bounds.Extend(polygon.BBox())
	}

	if len(polygons) == 0 {
		return nil, shp.Box{}, fmt.Errorf("no polygons found in shapefile %s", path)
	}
	return polygons, bounds, nil
}

// New creates a map. Without a shapefile the map is a blank world grid
// that still plots stations.
func New(shapePath string, home *packet.Position, defaultZoom float64) (Model, error) {
	m := Model{
		originalBounds: worldBounds,
		viewBounds:     worldBounds,
		width:          80,
		height:         23,
	}

	if shapePath != "" {
		polygons, bounds, err := loadMapData(shapePath)
		if err != nil {
			return Model{}, err
		}
		m.mapPolygons = polygons
		m.originalBounds = bounds
		m.viewBounds = bounds
	}

	if home != nil {
		m.home = *home
		m.hasHome = true
		if defaultZoom > 1.0 {
			m.setCenterAndZoom(home.Lon, home.Lat, defaultZoom)
		}
	}
	return m, nil
}

func (m Model) Init() tea.Cmd { return nil }

func (m *Model) setCenterAndZoom(lon, lat, zoomLevel float64) {
	newWidth := (m.originalBounds.MaxX - m.originalBounds.MinX) / zoomLevel
	newHeight := (m.originalBounds.MaxY - m.originalBounds.MinY) / zoomLevel
	m.viewBounds.MinX = lon - (newWidth / 2)
	m.viewBounds.MaxX = lon + (newWidth / 2)
	m.viewBounds.MinY = lat - (newHeight / 2)
	m.viewBounds.MaxY = lat + (newHeight / 2)
}

func (m *Model) zoomByFactor(factor float64) {
	centerX := (m.viewBounds.MinX + m.viewBounds.MaxX) / 2
	centerY := (m.viewBounds.MinY + m.viewBounds.MaxY) / 2
	newWidth := (m.viewBounds.MaxX - m.viewBounds.MinX) * factor
	newHeight := (m.viewBounds.MaxY - m.viewBounds.MinY) * factor
	if newWidth > (m.originalBounds.MaxX-m.originalBounds.MinX) || newHeight > (m.originalBounds.MaxY-m.originalBounds.MinY) {
		m.viewBounds = m.originalBounds
		return
	}
	m.viewBounds.MinX = centerX - (newWidth / 2)
	m.viewBounds.MaxX = centerX + (newWidth / 2)
	m.viewBounds.MinY = centerY - (newHeight / 2)
	m.viewBounds.MaxY = centerY + (newHeight / 2)
}

func (m *Model) pan(dx, dy float64) {
	panX := (m.viewBounds.MaxX - m.viewBounds.MinX) * dx
	panY := (m.viewBounds.MaxY - m.viewBounds.MinY) * dy
	m.viewBounds.MinX += panX
	m.viewBounds.MaxX += panX
	m.viewBounds.MinY += panY
	m.viewBounds.MaxY += panY
}

func (m Model) GetZoomLevel() float64 {
	if m.viewBounds.MaxX == m.viewBounds.MinX {
		return 1.0
	}
	return (m.originalBounds.MaxX - m.originalBounds.MinX) / (m.viewBounds.MaxX - m.viewBounds.MinX)
}

// Plot places or moves a station. Records without a position are ignored.
func (m *Model) Plot(rec packet.Record) {
	if !rec.HasPosition() {
		return
	}
	for i, s := range m.stations {
		if s.callsign == rec.From {
			m.stations[i].pos = *rec.Position
			return
		}
	}
	m.stations = append(m.stations, station{callsign: rec.From, pos: *rec.Position})
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case packet.Record:
		m.Plot(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "k", "up":
			m.pan(0, panFactor)
		case "l", "down":
			m.pan(0, -panFactor)
		case "j", "left":
			m.pan(-panFactor, 0)
		case ";", "right":
			m.pan(panFactor, 0)
		case "K":
			m.zoomByFactor(1 / zoomFactor)
		case "L":
			m.zoomByFactor(zoomFactor)
		case "r":
			m.viewBounds = m.originalBounds
		}
	}
	return m, nil
}

// project converts lon/lat to viewport column/row.
func (m Model) project(lon, lat float64, viewWidth, viewHeight int) (int, int) {
	spanX := m.viewBounds.MaxX - m.viewBounds.MinX
	spanY := m.viewBounds.MaxY - m.viewBounds.MinY
	if spanX == 0 {
		spanX = 1e-6
	}
	if spanY == 0 {
		spanY = 1e-6
	}
	x := (lon - m.viewBounds.MinX) / spanX
	y := (m.viewBounds.MaxY - lat) / spanY // screen rows grow downwards
	return int(x * float64(viewWidth)), int(y * float64(viewHeight))
}

func (m Model) renderMapViewport(viewWidth, viewHeight int) string {
	viewWidth = max(1, viewWidth)
	viewHeight = max(1, viewHeight)

	grid := make([][]rune, viewHeight)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", viewWidth))
	}
	inView := func(x, y int) bool {
		return x >= 0 && x < viewWidth && y >= 0 && y < viewHeight
	}

	for _, polygon := range m.mapPolygons {
		b := polygon.BBox()
		if b.MaxX < m.viewBounds.MinX || b.MinX > m.viewBounds.MaxX ||
			b.MaxY < m.viewBounds.MinY || b.MinY > m.viewBounds.MaxY {
			continue
		}
		for _, point := range polygon.Points {
			if x, y := m.project(point.X, point.Y, viewWidth, viewHeight); inView(x, y) {
				grid[y][x] = '.'
			}
		}
	}

	if m.hasHome {
		if x, y := m.project(m.home.Lon, m.home.Lat, viewWidth, viewHeight); inView(x, y) {
			grid[y][x] = 'H'
		}
	}

	for _, s := range m.stations {
		x, y := m.project(s.pos.Lon, s.pos.Lat, viewWidth, viewHeight)
		if !inView(x, y) {
			continue
		}
		grid[y][x] = '*'

		// callsign under the marker where there is room
		if y+1 >= viewHeight {
			continue
		}
		call := []rune(s.callsign)
		start := x - len(call)/2
		for i, r := range call {
			if px := start + i; px >= 0 && px < viewWidth && grid[y+1][px] == ' ' {
				grid[y+1][px] = r
			}
		}
	}

	var b strings.Builder
	for i, row := range grid {
		b.WriteString(string(row))
		if i < len(grid)-1 {
			b.WriteRune('\n')
		}
	}
	return b.String()
}

func (m Model) View() string {
	mapStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(m.width - 2).
		Height(m.height - 2)

	return mapStyle.Render(m.renderMapViewport(m.width-2, m.height-2))
}
