// Package tui renders the pixel board in a terminal. Pointer and wheel input
// drive the same viewport as the web client, a click selects the cell under
// the pointer through the pixel board service.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ardanlabs/pixelboard/foundation/events"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/geometry"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Terminal rows are about twice as tall as columns are wide, so a row spans
// two canvas units.
const rowUnits = 2.0

const (
	headerRows = 1
	footerRows = 2
)

// RefreshInterval is how often the grid and notices are reloaded.
var RefreshInterval = 5 * time.Second

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	freeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	hoverStyle   = lipgloss.NewStyle().Reverse(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	noticeStyles = map[events.Kind]lipgloss.Style{
		events.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		events.KindWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		events.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

type pixelsMsg struct {
	pixels Pixels
	err    error
}

type actionMsg struct {
	action Action
	err    error
}

type noticesMsg struct {
	notices []events.Notice
	err     error
}

type refreshMsg struct{}

// =============================================================================

// Model is the bubbletea model of the board.
type Model struct {
	client  *Client
	vp      *viewport.Controller
	pixels  Pixels
	width   int
	height  int
	hover   geometry.Coords
	hovered bool
	status  string
	notices []events.Notice
}

// New constructs a model that reads the board from the client.
func New(client *Client) *Model {
	return &Model{
		client: client,
		status: "loading board",
	}
}

// Init implements the tea.Model interface.
func (m *Model) Init() tea.Cmd {
	return m.fetchPixels
}

// Update implements the tea.Model interface.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.vp != nil {
			w, h := m.canvas()
			m.vp.Resize(w, h)
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetchPixels
		case "0":
			if m.vp != nil {
				m.vp.Reset()
			}
		case "+", "=":
			if m.vp != nil {
				m.vp.Wheel(-1)
			}
		case "-":
			if m.vp != nil {
				m.vp.Wheel(1)
			}
		}

	case tea.MouseMsg:
		return m, m.mouse(msg)

	case pixelsMsg:
		if msg.err != nil {
			m.status = "load failed: " + msg.err.Error()
			return m, m.tick()
		}
		m.setPixels(msg.pixels)
		return m, m.tick()

	case actionMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = describe(msg.action)
		return m, m.fetchNotices

	case noticesMsg:
		if msg.err == nil {
			m.notices = msg.notices
		}

	case refreshMsg:
		return m, tea.Batch(m.fetchPixels, m.fetchNotices)
	}

	return m, nil
}

// View implements the tea.Model interface.
func (m *Model) View() string {
	if m.vp == nil || m.width == 0 {
		return m.status + "\n"
	}

	var b strings.Builder

	owned := 0
	for _, c := range m.pixels.Cells {
		if c.IsOwned {
			owned++
		}
	}
	st := m.vp.State()
	b.WriteString(titleStyle.Render(fmt.Sprintf("Pixel Board  %d/%d sold  zoom %.1f", owned, len(m.pixels.Cells), st.Zoom)))
	b.WriteByte('\n')

	g := m.vp.Geometry()
	for row := range m.mapRows() {
		for col := range m.width {
			b.WriteString(m.glyph(g, col, row))
		}
		b.WriteByte('\n')
	}

	b.WriteString(statusStyle.Render(m.footer()))
	b.WriteByte('\n')

	var notices []string
	for _, n := range m.notices {
		notices = append(notices, noticeStyles[n.Kind].Render(n.Message))
	}
	b.WriteString(strings.Join(notices, "  "))

	return b.String()
}

// =============================================================================

func (m *Model) mouse(msg tea.MouseMsg) tea.Cmd {
	if m.vp == nil {
		return nil
	}

	row := msg.Y - headerRows
	if row < 0 || row >= m.mapRows() {
		return nil
	}
	p := point(msg.X, row)

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.vp.Wheel(-1)

	case msg.Button == tea.MouseButtonWheelDown:
		m.vp.Wheel(1)

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.vp.PointerDown(p, viewport.ButtonPrimary)

	case msg.Action == tea.MouseActionMotion:
		m.vp.PointerMove(p)
		m.hover, m.hovered = m.vp.Geometry().ScreenToCell(p)

	case msg.Action == tea.MouseActionRelease:
		m.vp.PointerUp()
		coords, ok := m.vp.Click(p)
		if !ok {
			return nil
		}
		m.hover, m.hovered = coords, true
		return m.selectCell(coords.X, coords.Y)
	}

	return nil
}

func (m *Model) setPixels(p Pixels) {
	m.pixels = p
	m.status = fmt.Sprintf("%dx%d board loaded", p.Size, p.Size)
	if p.LastError != "" {
		m.status = "showing last good board: " + p.LastError
	}

	if m.vp == nil || m.vp.Geometry().Size != p.Size {
		w, h := m.canvas()
		m.vp = viewport.New(viewport.Config{Size: p.Size, Width: w, Height: h})
	}
}

func (m *Model) glyph(g geometry.Geometry, col int, row int) string {
	coords, ok := g.ScreenToCell(point(col, row))
	if !ok {
		return " "
	}

	id := coords.Y*m.pixels.Size + coords.X
	if id >= len(m.pixels.Cells) {
		return " "
	}
	c := m.pixels.Cells[id]

	style := freeStyle
	ch := "·"
	if c.IsOwned {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprint(17 + int(c.Owner[19])%214)))
		ch = "█"
	}

	if m.hovered && coords == m.hover {
		style = style.Inherit(hoverStyle)
	}

	return style.Render(ch)
}

func (m *Model) footer() string {
	if !m.hovered {
		return m.status
	}

	id := m.hover.Y*m.pixels.Size + m.hover.X
	if id >= len(m.pixels.Cells) {
		return m.status
	}
	c := m.pixels.Cells[id]

	if !c.IsOwned {
		return fmt.Sprintf("(%d,%d) available  |  %s", c.X, c.Y, m.status)
	}

	owner := c.OwnerName
	if owner == "" {
		owner = c.Owner.Hex()
	}

	return fmt.Sprintf("(%d,%d) %q by %s %s  |  %s", c.X, c.Y, c.Text, owner, c.Link, m.status)
}

func (m *Model) mapRows() int {
	return max(1, m.height-headerRows-footerRows)
}

func (m *Model) canvas() (float64, float64) {
	return float64(m.width), float64(m.mapRows()) * rowUnits
}

func point(col int, row int) geometry.Point {
	return geometry.Point{
		X: float64(col) + 0.5,
		Y: (float64(row) + 0.5) * rowUnits,
	}
}

func describe(act Action) string {
	switch act.Kind {
	case "purchase_flow":
		return fmt.Sprintf("purchase flow %s opened for (%d,%d)", act.FlowID, act.Cell.X, act.Cell.Y)
	case "open_link":
		return "link: " + act.Cell.Link
	case "warn_no_wallet":
		return "connect a wallet to purchase pixels"
	case "none":
		return fmt.Sprintf("(%d,%d) selected", act.Cell.X, act.Cell.Y)
	}
	return act.Kind
}

// =============================================================================

func (m *Model) fetchPixels() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := m.client.Pixels(ctx)
	return pixelsMsg{pixels: p, err: err}
}

func (m *Model) fetchNotices() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := m.client.Notices(ctx)
	return noticesMsg{notices: n, err: err}
}

func (m *Model) selectCell(x int, y int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		act, err := m.client.Select(ctx, x, y)
		return actionMsg{action: act, err: err}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}
