// Package application is the terminal frontend: a menu for importing and
// clearing records and a review screen that draws each code in the terminal.
package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/dialcodes/internal/core"
)

const (
	modeDirect = core.ModeDirectDial
	modeLink   = core.ModeLinkRedirect
)

// TextClipboard is a clipboard that can also be read, for importing.
type TextClipboard interface {
	core.Clipboard
	ReadText() (string, error)
}

// Options configures the terminal UI.
type Options struct {
	Mode      core.PayloadMode
	ExportDir string // where "save" writes PNGs
	BaseURL   string // origin for link-redirect codes when the service has none
	StoreInfo string // shown under Info -> Store
	Clipboard TextClipboard
}

type screen int

const (
	screenMenu screen = iota
	screenReview
)

// Model is the bubbletea model. It is used through a pointer so menu actions
// bound at construction see the current mode.
type Model struct {
	svc  *core.Service
	opts Options

	menu   *Menu
	cursor int
	screen screen
	mode   core.PayloadMode

	review  *core.Review
	watch   *renderWatch
	inverse bool

	status    string
	statusErr bool

	width, height int
	quitting      bool
}

// NewModel builds the UI over svc.
func NewModel(svc *core.Service, opts Options) *Model {
	if opts.Mode == "" {
		opts.Mode = svc.DefaultMode()
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.Clipboard != nil {
		svc.SetClipboard(opts.Clipboard)
	}

	m := &Model{
		svc:     svc,
		opts:    opts,
		mode:    opts.Mode,
	}
	m.menu = buildMenuTree(m)
	return m
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.screen == screenReview {
			return m.updateReview(msg)
		}
		return m.updateMenu(msg)

	case DoneMsg:
		m.setStatus(string(msg), false)
		return m, nil

	case ErrMsg:
		m.setStatus(describeError(msg.Err), true)
		return m, nil

	case modeMsg:
		m.mode = core.PayloadMode(msg)
		m.setStatus("Mode: "+m.mode.Label(), false)
		return m, nil

	case reviewStartedMsg:
		m.closeReview()
		m.review = msg.review
		m.watch = msg.watch
		m.screen = screenReview
		m.status = ""
		return m, m.watch.wait()

	case renderedMsg:
		if msg.watch != m.watch {
			return m, nil
		}
		return m, m.watch.wait()
	}

	return m, nil
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.closeReview()
	m.quitting = true
	return m, tea.Quit
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// describeError maps err for the status line, spelling out the first few
// malformed lines of a failed import.
func describeError(err error) string {
	s := core.FormatUserError(err)
	var ie *core.ImportError
	if errors.As(err, &ie) {
		s += " " + core.SummarizeParseErrors(ie.Errors, 3)
	}
	return s
}

/* ----------------------------------------
	MENU SCREEN
---------------------------------------- */

func (m *Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.menu.Items)-1 {
			m.cursor++
		}

	case "esc", "left", "h", "backspace":
		if m.menu.Parent != nil {
			m.menu = m.menu.Parent
			m.cursor = 0
		}

	case "enter", "right", "l":
		item := m.menu.Items[m.cursor]
		if item.Submenu != nil {
			m.menu = item.Submenu
			m.cursor = 0
			return m, nil
		}
		if item.Action != nil {
			return m, item.Action()
		}
	}
	return m, nil
}

func (m *Model) viewMenu() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.menu.Title))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d records · %s", m.svc.Store().Len(), m.mode.Label())))
	b.WriteString("\n\n")

	for i, item := range m.menu.Items {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + item.Label))
		} else {
			b.WriteString("  " + item.Label)
		}
		b.WriteString("\n")
	}

	b.WriteString(m.viewStatus())
	b.WriteString(helpStyle.Render("↑/↓ move • enter select • esc back • q quit"))
	return b.String()
}

/* ----------------------------------------
	MENU ACTIONS
---------------------------------------- */

func (m *Model) startReview() tea.Cmd {
	mode := m.mode
	return func() tea.Msg {
		watch := newRenderWatch()
		rv, err := m.svc.StartReview("", mode, m.opts.BaseURL, watch.notify)
		if err != nil {
			watch.stop()
			return ErrMsg{Err: err}
		}
		return reviewStartedMsg{review: rv, watch: watch}
	}
}

func (m *Model) importClipboard() tea.Cmd {
	return func() tea.Msg {
		if m.opts.Clipboard == nil {
			return ErrMsg{Err: ErrClipboardUnsupported}
		}
		text, err := m.opts.Clipboard.ReadText()
		if err != nil {
			return ErrMsg{Err: fmt.Errorf("read clipboard: %w", err)}
		}

		res, err := m.svc.Import(context.Background(), text)
		if err != nil {
			return ErrMsg{Err: err}
		}
		msg := fmt.Sprintf("Imported %d records (%d total)", len(res.Added), res.Total)
		if len(res.Skipped) > 0 {
			msg += "; skipped " + core.SummarizeParseErrors(res.Skipped, 3)
		}
		return DoneMsg(msg)
	}
}

func (m *Model) setMode(mode core.PayloadMode) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg { return modeMsg(mode) }
	}
}

func (m *Model) recordCount() tea.Cmd {
	return func() tea.Msg {
		return DoneMsg(fmt.Sprintf("%d records", m.svc.Store().Len()))
	}
}

func (m *Model) storeInfo() tea.Cmd {
	return func() tea.Msg {
		if m.opts.StoreInfo == "" {
			return DoneMsg("Store: unknown")
		}
		return DoneMsg("Store: " + m.opts.StoreInfo)
	}
}

func (m *Model) clearAll() tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.Clear(context.Background()); err != nil {
			return ErrMsg{Err: err}
		}
		return DoneMsg("All records deleted")
	}
}

/* ----------------------------------------
	REVIEW SCREEN
---------------------------------------- */

func (m *Model) updateReview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rv := m.review
	m.status = ""

	switch msg.String() {
	case "q":
		return m.quit()

	case "esc", "backspace":
		m.closeReview()
		m.screen = screenMenu
		return m, nil

	case "left", "h", "p":
		rv.Retreat()
	case "right", "l", "n", " ":
		rv.Advance()
	case "home", "g":
		rv.Seek(0)
	case "end", "G":
		rv.Seek(rv.Len() - 1)

	case "m", "tab":
		m.mode = rv.ToggleMode()

	case "i":
		m.inverse = !m.inverse

	case "c":
		rv.CopyOrderID()
		m.setStatus("Copied order id "+rv.Current().OrderID, false)

	case "s":
		return m, exportReview(rv, m.opts.ExportDir)
	}
	return m, nil
}

func (m *Model) closeReview() {
	if m.watch != nil {
		m.watch.stop()
		m.watch = nil
	}
	if m.review != nil {
		m.svc.CloseReview(m.review.ID())
		m.review = nil
	}
}

// renderWatch turns one review's render callbacks into renderedMsgs. stop
// releases a pending wait, so no command outlives the review it watches.
type renderWatch struct {
	renders chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newRenderWatch() *renderWatch {
	return &renderWatch{
		renders: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (w *renderWatch) notify(core.Surface) {
	select {
	case w.renders <- struct{}{}:
	default:
	}
}

func (w *renderWatch) stop() {
	w.once.Do(func() { close(w.done) })
}

// wait delivers a renderedMsg after the next applied render, or nil once the
// watch is stopped.
func (w *renderWatch) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-w.renders:
			return renderedMsg{watch: w}
		case <-w.done:
			return nil
		}
	}
}

// exportReview saves the current code. The PNG is encoded first so the file
// is named after the record it shows, even if the cursor moves meanwhile. The
// file only appears once the PNG is fully written.
func exportReview(rv *core.Review, dir string) tea.Cmd {
	return func() tea.Msg {
		var buf bytes.Buffer
		name, err := rv.Export(&buf)
		if err != nil {
			return ErrMsg{Err: err}
		}
		path := filepath.Join(dir, name)
		err = WriteFileAtomic(path, func(w io.Writer) error {
			_, err := buf.WriteTo(w)
			return err
		})
		if err != nil {
			return ErrMsg{Err: err}
		}
		return DoneMsg("Saved " + path)
	}
}

// WriteFileAtomic writes to a temporary file next to path and renames it
// into place, so path never holds a partial image.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dialcodes-*.png")
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return nil
}

func (m *Model) viewReview() string {
	rv := m.review
	rec := rv.Current()
	surface := rv.Surface()

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Review %d/%d", rv.Index()+1, rv.Len())))
	b.WriteString(dimStyle.Render("  " + rv.Mode().Label()))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Order %s   Phone %s\n\n", rec.OrderID, rec.Phone))

	switch {
	case surface.Pending:
		b.WriteString(dimStyle.Render("Rendering..."))
		b.WriteString("\n")
	case surface.Err != nil:
		b.WriteString(errStyle.Render(core.FormatUserError(surface.Err)))
		b.WriteString("\n")
	default:
		b.WriteString(codeStyle.Render(surface.Raster.Blocks(m.inverse)))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(surface.Payload))
	b.WriteString("\n")

	b.WriteString(m.viewStatus())
	b.WriteString(helpStyle.Render("←/→ move • m mode • c copy • s save • i invert • esc back • q quit"))
	return b.String()
}

func (m *Model) viewStatus() string {
	if m.status == "" {
		return "\n"
	}
	if m.statusErr {
		return "\n" + errStyle.Render(m.status) + "\n"
	}
	return "\n" + okStyle.Render(m.status) + "\n"
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.screen == screenReview && m.review != nil {
		return m.viewReview()
	}
	return m.viewMenu()
}
