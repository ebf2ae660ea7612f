// Package tui provides a terminal UI for browsing saved grokterm sessions.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/klubi/grokterm/internal/store"
	"github.com/klubi/grokterm/pkg/chat"
)

const (
	viewSessions = "sessions"
	viewMessages = "messages"
)

// App is the main TUI application. It polls the context store and shows
// either the list of sessions or the messages of one session in a
// navigable table.
type App struct {
	app         *tview.Application
	pages       *tview.Pages
	header      *tview.TextView
	footer      *tview.TextView
	table       *tview.Table
	filterInput *tview.InputField
	detailView  *tview.TextView
	layout      *tview.Flex

	store       store.Store
	current     string // the session chat commands use
	currentView string // "sessions" or "messages"
	session     string // session shown in the messages view
	filter      string

	// Cached data from the last successful refresh.
	sessions []store.SessionInfo
	messages []chat.Message
	lastErr  error

	mu sync.Mutex

	// mainFlex is the outermost vertical flex (header + content + footer).
	mainFlex *tview.Flex

	// describeOpen tracks whether the describe panel is visible.
	describeOpen bool
	// filterOpen tracks whether the filter input is visible.
	filterOpen bool
}

// NewApp creates a TUI over s. current is highlighted in the session list.
func NewApp(s store.Store, current string) *App {
	a := &App{
		app:         tview.NewApplication(),
		store:       s,
		current:     current,
		currentView: viewSessions,
	}

	// -- Header --
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)

	// -- Footer --
	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	// -- Table --
	a.table = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0). // header row stays fixed
		SetSeparator(tview.Borders.Vertical)
	a.table.SetBorder(false)
	a.table.SetBorderPadding(0, 0, 1, 1)

	// -- Filter input --
	a.filterInput = tview.NewInputField().
		SetLabel(" Filter: ").
		SetFieldWidth(40).
		SetFieldBackgroundColor(tcell.ColorBlack).
		SetLabelColor(tcell.ColorYellow)

	a.filterInput.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			a.mu.Lock()
			a.filter = a.filterInput.GetText()
			a.mu.Unlock()
		case tcell.KeyEscape:
			a.mu.Lock()
			a.filter = ""
			a.mu.Unlock()
			a.filterInput.SetText("")
		default:
			return
		}
		a.hideFilter()
		a.updateHeader()
		a.updateTable()
		a.app.SetFocus(a.table)
	})

	// -- Detail / Describe view --
	a.detailView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	a.detailView.SetBorder(true).
		SetTitle(" Describe ").
		SetBorderColor(tcell.ColorDodgerBlue)

	// contentFlex holds the table (and optionally the detail panel).
	contentFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(a.table, 0, 1, true)

	a.mainFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(contentFlex, 0, 1, true).
		AddItem(a.footer, 1, 0, false)

	a.layout = contentFlex

	a.pages = tview.NewPages().
		AddPage("main", a.mainFlex, true, true)

	a.updateHeader()
	a.updateFooter()
	a.setupKeyBindings()

	a.app.SetRoot(a.pages, true).SetFocus(a.table)

	return a
}

// Run starts the background refresh goroutine and runs the TUI event loop.
func (a *App) Run() error {
	// Populate the table before the first render.
	a.refresh()
	a.updateTable()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				a.refresh()
				a.app.QueueUpdateDraw(func() {
					a.updateTable()
				})
			}
		}
	}()

	return a.app.Run()
}

// ---------------------------------------------------------------------------
// Key bindings
// ---------------------------------------------------------------------------

func (a *App) setupKeyBindings() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// When the filter input has focus, let it handle its own keys.
		if a.filterOpen {
			return event
		}

		// When the describe panel is open, Escape closes it.
		if a.describeOpen && event.Key() == tcell.KeyEscape {
			a.hideDescribe()
			return nil
		}

		switch event.Key() {
		case tcell.KeyRune:
			switch event.Rune() {
			case '1':
				a.openSessions()
				return nil
			case '2':
				if name := a.selectedName(); name != "" && a.currentView == viewSessions {
					a.openMessages(name)
				}
				return nil
			case '/':
				a.showFilter()
				return nil
			case 'q':
				a.app.Stop()
				return nil
			case 'r':
				a.refreshAsync()
				return nil
			case 'd':
				a.confirmDelete()
				return nil
			case 'j':
				row, _ := a.table.GetSelection()
				if row < a.table.GetRowCount()-1 {
					a.table.Select(row+1, 0)
				}
				return nil
			case 'k':
				row, _ := a.table.GetSelection()
				if row > 1 { // row 0 is the header
					a.table.Select(row-1, 0)
				}
				return nil
			}
		case tcell.KeyEnter:
			if a.currentView == viewSessions {
				if name := a.selectedName(); name != "" {
					a.openMessages(name)
				}
			} else {
				a.showDescribe()
			}
			return nil
		case tcell.KeyEscape:
			switch {
			case a.filter != "":
				a.mu.Lock()
				a.filter = ""
				a.mu.Unlock()
				a.updateHeader()
				a.updateTable()
			case a.currentView == viewMessages:
				a.openSessions()
			}
			return nil
		}

		return event
	})
}

// ---------------------------------------------------------------------------
// View switching
// ---------------------------------------------------------------------------

func (a *App) openSessions() {
	a.switchView(viewSessions, "")
}

func (a *App) openMessages(session string) {
	a.switchView(viewMessages, session)
}

func (a *App) switchView(view, session string) {
	a.mu.Lock()
	a.currentView = view
	a.session = session
	a.filter = ""
	a.mu.Unlock()

	a.hideDescribe()
	a.updateHeader()
	a.refreshAsync()
}

// ---------------------------------------------------------------------------
// Data refresh
// ---------------------------------------------------------------------------

func (a *App) refreshAsync() {
	go func() {
		a.refresh()
		a.app.QueueUpdateDraw(func() {
			a.updateTable()
		})
	}()
}

func (a *App) refresh() {
	a.mu.Lock()
	view := a.currentView
	session := a.session
	a.mu.Unlock()

	switch view {
	case viewSessions:
		sessions, err := a.store.List()
		a.mu.Lock()
		a.sessions = sessions
		a.lastErr = err
		a.mu.Unlock()
	case viewMessages:
		messages, err := a.store.Load(session)
		a.mu.Lock()
		a.messages = messages
		a.lastErr = err
		a.mu.Unlock()
	}
}

// ---------------------------------------------------------------------------
// Table rendering
// ---------------------------------------------------------------------------

func (a *App) updateTable() {
	row, _ := a.table.GetSelection()
	a.table.Clear()

	a.mu.Lock()
	view := a.currentView
	filter := strings.ToLower(a.filter)
	err := a.lastErr
	a.mu.Unlock()

	if err != nil {
		a.setTableHeaders([]string{"ERROR"})
		a.table.SetCell(1, 0,
			tview.NewTableCell(fmt.Sprintf("Error: %v", err)).
				SetTextColor(tcell.ColorRed))
		return
	}

	switch view {
	case viewSessions:
		a.renderSessions(filter)
	case viewMessages:
		a.renderMessages(filter)
	}

	// Keep the selection across refreshes where possible.
	switch n := a.table.GetRowCount(); {
	case n <= 1:
	case row >= 1 && row < n:
		a.table.Select(row, 0)
	default:
		a.table.Select(1, 0)
	}
}

func (a *App) setTableHeaders(headers []string) {
	for col, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorWhite).
			SetBackgroundColor(tcell.ColorDarkCyan).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false).
			SetExpansion(1)
		a.table.SetCell(0, col, cell)
	}
}

// matchesFilter returns true if any of the values contain the filter string.
func matchesFilter(filter string, values ...string) bool {
	if filter == "" {
		return true
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), filter) {
			return true
		}
	}
	return false
}

func (a *App) renderSessions(filter string) {
	a.setTableHeaders([]string{"NAME", "MESSAGES", "UPDATED"})

	a.mu.Lock()
	sessions := a.sessions
	a.mu.Unlock()

	row := 1
	for _, s := range sessions {
		count := strconv.Itoa(s.Messages)
		age := formatAge(s.UpdatedAt)
		if !matchesFilter(filter, s.Name, count, age) {
			continue
		}

		name := tview.NewTableCell(s.Name).SetExpansion(1).SetReference(s.Name)
		if s.Name == a.current {
			name.SetTextColor(tcell.ColorGreen)
		}
		a.table.SetCell(row, 0, name)
		a.table.SetCell(row, 1, tview.NewTableCell(count).SetExpansion(1))
		a.table.SetCell(row, 2, tview.NewTableCell(age).SetExpansion(1))
		row++
	}
}

func (a *App) renderMessages(filter string) {
	a.setTableHeaders([]string{"#", "ROLE", "CONTENT"})

	a.mu.Lock()
	messages := a.messages
	a.mu.Unlock()

	row := 1
	for i, m := range messages {
		summary := messageSummary(m)
		if !matchesFilter(filter, string(m.Role), summary) {
			continue
		}

		a.table.SetCell(row, 0, tview.NewTableCell(strconv.Itoa(i+1)).SetReference(i))
		a.table.SetCell(row, 1, tview.NewTableCell(string(m.Role)).
			SetTextColor(roleColor(m.Role)))
		a.table.SetCell(row, 2, tview.NewTableCell(tview.Escape(summary)).
			SetExpansion(1).SetMaxWidth(120))
		row++
	}
}

// ---------------------------------------------------------------------------
// Describe (detail panel)
// ---------------------------------------------------------------------------

func (a *App) selectedName() string {
	row, _ := a.table.GetSelection()
	if row < 1 || row >= a.table.GetRowCount() {
		return ""
	}
	name, _ := a.table.GetCell(row, 0).GetReference().(string)
	return name
}

func (a *App) showDescribe() {
	row, _ := a.table.GetSelection()
	if row < 1 || row >= a.table.GetRowCount() {
		return
	}
	idx, ok := a.table.GetCell(row, 0).GetReference().(int)
	if !ok {
		return
	}

	a.mu.Lock()
	var detail string
	if idx < len(a.messages) {
		detail = formatMessageDescribe(idx+1, a.messages[idx])
	}
	a.mu.Unlock()

	a.detailView.Clear()
	a.detailView.SetText(detail)
	a.detailView.ScrollToBeginning()

	if !a.describeOpen {
		a.layout.AddItem(a.detailView, 0, 1, false)
		a.describeOpen = true
	}
}

func (a *App) hideDescribe() {
	if a.describeOpen {
		a.layout.RemoveItem(a.detailView)
		a.describeOpen = false
		a.app.SetFocus(a.table)
	}
}

func formatMessageDescribe(n int, m chat.Message) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[::b]Message:[-::-]  #%d\n", n))
	b.WriteString(fmt.Sprintf("[::b]Role:[-::-]     [%s]%s[-]\n", roleColorName(m.Role), m.Role))
	if m.ToolCallID != "" {
		b.WriteString(fmt.Sprintf("[::b]Call ID:[-::-]  %s\n", m.ToolCallID))
	}
	for i, tc := range m.ToolCalls {
		b.WriteString(fmt.Sprintf("\n[::b]Tool Call %d:[-::-]\n", i+1))
		b.WriteString(fmt.Sprintf("  ID:        %s\n", tc.ID))
		b.WriteString(fmt.Sprintf("  Name:      %s\n", tc.Function.Name))
		b.WriteString(fmt.Sprintf("  Arguments: %s\n", tview.Escape(tc.Function.Arguments)))
	}
	if m.Content != "" {
		b.WriteString(fmt.Sprintf("\n[::b]Content:[-::-]\n%s\n", tview.Escape(m.Content)))
	}
	return b.String()
}

// messageSummary is the single-line table view of m.
func messageSummary(m chat.Message) string {
	text := m.Content
	if len(m.ToolCalls) > 0 {
		names := make([]string, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			names = append(names, tc.Function.Name)
		}
		text = strings.TrimSpace(text + " -> " + strings.Join(names, ", "))
	}
	return strings.Join(strings.Fields(text), " ")
}

// ---------------------------------------------------------------------------
// Filter
// ---------------------------------------------------------------------------

func (a *App) showFilter() {
	if a.filterOpen {
		return
	}
	a.filterOpen = true
	a.filterInput.SetText(a.filter)

	// Replace footer with filter input in the main vertical flex.
	a.mainFlex.RemoveItem(a.footer)
	a.mainFlex.AddItem(a.filterInput, 1, 0, true)
	a.app.SetFocus(a.filterInput)
}

func (a *App) hideFilter() {
	if !a.filterOpen {
		return
	}
	a.filterOpen = false

	a.mainFlex.RemoveItem(a.filterInput)
	a.mainFlex.AddItem(a.footer, 1, 0, false)
	a.app.SetFocus(a.table)
}

// ---------------------------------------------------------------------------
// Delete with confirmation
// ---------------------------------------------------------------------------

func (a *App) confirmDelete() {
	// Only whole sessions can be deleted; single messages would break the
	// tool-call pairing of the saved context.
	if a.currentView != viewSessions {
		return
	}
	name := a.selectedName()
	if name == "" {
		return
	}

	modal := tview.NewModal().
		SetText(fmt.Sprintf("Delete session %q?", name)).
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			if buttonLabel == "Delete" {
				a.deleteSession(name)
			}
			a.pages.RemovePage("confirm")
			a.app.SetFocus(a.table)
		})
	modal.SetBackgroundColor(tcell.ColorDarkRed)

	a.pages.AddPage("confirm", modal, true, true)
}

func (a *App) deleteSession(name string) {
	if err := a.store.Delete(name); err != nil {
		a.footer.SetText(fmt.Sprintf(" [red]Delete failed: %v[-]", err))
		go func() {
			time.Sleep(3 * time.Second)
			a.app.QueueUpdateDraw(func() {
				a.updateFooter()
			})
		}()
		return
	}
	a.refreshAsync()
}

// ---------------------------------------------------------------------------
// Header & Footer
// ---------------------------------------------------------------------------

func (a *App) updateHeader() {
	a.mu.Lock()
	view := a.currentView
	session := a.session
	filter := a.filter
	a.mu.Unlock()

	sessions := "<1>Sessions"
	messages := "<2>Messages"
	if view == viewSessions {
		sessions = "[::b]<1>[Sessions][::-]"
	} else {
		messages = fmt.Sprintf("[::b]<2>[%s][::-]", tview.Escape(session))
	}

	filterInfo := ""
	if filter != "" {
		filterInfo = fmt.Sprintf(" | [yellow]filter: %s[-]", tview.Escape(filter))
	}

	a.header.SetText(fmt.Sprintf(" [::b]grokterm[::-] | %s  %s%s", sessions, messages, filterInfo))
}

func (a *App) updateFooter() {
	a.footer.SetText(" [yellow]<enter>[white]Open  [yellow]<d>[white]Delete  [yellow]</>[white]Filter  [yellow]<q>[white]Quit  [yellow]<r>[white]Refresh  [yellow]<esc>[white]Back")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// formatAge returns a human-readable duration string since the given time.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// roleColor returns the tcell color used for a message role.
func roleColor(role chat.Role) tcell.Color {
	switch role {
	case chat.RoleUser:
		return tcell.ColorGreen
	case chat.RoleAssistant:
		return tcell.ColorDodgerBlue
	case chat.RoleTool:
		return tcell.ColorYellow
	default:
		return tcell.ColorGray
	}
}

// roleColorName returns the tview color tag name for a message role.
func roleColorName(role chat.Role) string {
	switch role {
	case chat.RoleUser:
		return "green"
	case chat.RoleAssistant:
		return "dodgerblue"
	case chat.RoleTool:
		return "yellow"
	default:
		return "gray"
	}
}
