package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"gioui.org/app"
	"gioui.org/font"
	"gioui.org/font/gofont"
	"gioui.org/io/event"
	"gioui.org/io/transfer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"managehub/internal/boardclient"
)

// taskMIME is the drag payload type: the task id as plain bytes.
const taskMIME = "application/x-managehub-task"

var (
	api   = boardclient.New("/")
	theme *material.Theme
)

var priorities = []string{"low", "medium", "high"}

type UI struct {
	win *app.Window

	mu         sync.Mutex
	view       View
	employees  []Employee
	workOrders []WorkOrder
	notice     string
	dragging   string

	columns [4]column
	cards   map[string]*widget.Draggable
	fresh   bool // view replaced since cards were last pruned

	// Search
	searchEditor widget.Editor
	query        string
	refreshBtn   widget.Clickable

	// Create form
	titleEditor   widget.Editor
	descEditor    widget.Editor
	dueEditor     widget.Editor
	priorityBtn   widget.Clickable
	priorityIdx   int
	assigneeBtn   widget.Clickable
	assigneeIdx   int // 0 is unassigned
	workOrderBtn  widget.Clickable
	workOrderIdx  int // 0 is none
	createTaskBtn widget.Clickable
}

type column struct {
	list widget.List
}

type (
	View      = boardclient.View
	Column    = boardclient.Column
	Card      = boardclient.Card
	Employee  = boardclient.Employee
	WorkOrder = boardclient.WorkOrder
)

func main() {
	if base := os.Getenv("API_BASE"); base != "" {
		api = boardclient.New(base)
	}

	theme = material.NewTheme()
	theme.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	theme.Palette.Bg = color.NRGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xFF}
	theme.Palette.Fg = color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	theme.Palette.ContrastBg = color.NRGBA{R: 0x30, G: 0x60, B: 0xA0, A: 0xFF}
	theme.Palette.ContrastFg = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	ui := &UI{cards: make(map[string]*widget.Draggable), priorityIdx: 1}
	for i := range ui.columns {
		ui.columns[i].list.Axis = layout.Vertical
	}
	ui.searchEditor.SingleLine = true
	ui.titleEditor.SingleLine = true
	ui.descEditor.SingleLine = true
	ui.dueEditor.SingleLine = true

	go func() {
		w := new(app.Window)
		w.Option(app.Title("managehub"))
		w.Option(app.Size(unit.Dp(1400), unit.Dp(850)))
		ui.win = w
		go ui.pollData()
		if err := ui.run(w); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func (ui *UI) run(w *app.Window) error {
	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			ui.handleEvents(gtx)
			ui.layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

func (ui *UI) invalidate() {
	if ui.win != nil {
		ui.win.Invalidate()
	}
}

func (ui *UI) handleEvents(gtx layout.Context) {
	for {
		e, ok := ui.searchEditor.Update(gtx)
		if !ok {
			break
		}
		if _, ok := e.(widget.ChangeEvent); ok {
			ui.mu.Lock()
			ui.query = ui.searchEditor.Text()
			ui.mu.Unlock()
			go ui.fetchBoard()
		}
	}
	if ui.refreshBtn.Clicked(gtx) {
		go ui.reload()
	}
	if ui.priorityBtn.Clicked(gtx) {
		ui.priorityIdx = (ui.priorityIdx + 1) % len(priorities)
	}
	ui.mu.Lock()
	nEmp, nWO := len(ui.employees), len(ui.workOrders)
	ui.mu.Unlock()
	if ui.assigneeBtn.Clicked(gtx) {
		ui.assigneeIdx = (ui.assigneeIdx + 1) % (nEmp + 1)
	}
	if ui.workOrderBtn.Clicked(gtx) {
		ui.workOrderIdx = (ui.workOrderIdx + 1) % (nWO + 1)
	}
	if ui.createTaskBtn.Clicked(gtx) {
		title := ui.titleEditor.Text()
		if strings.TrimSpace(title) == "" {
			ui.setNotice("Title is required.")
		} else {
			go ui.createTask(ui.newTaskBody(title))
			ui.titleEditor.SetText("")
			ui.descEditor.SetText("")
			ui.dueEditor.SetText("")
		}
	}

	// Offer the task id to whichever column asks for it.
	for id, d := range ui.cards {
		if _, requested := d.Update(gtx); requested {
			d.Offer(gtx, taskMIME, io.NopCloser(strings.NewReader(id)))
		}
		ui.trackDrag(id, d.Dragging())
	}

	ui.mu.Lock()
	view := ui.view
	fresh := ui.fresh
	ui.fresh = false
	ui.mu.Unlock()
	if fresh {
		boardclient.Prune(ui.cards, view, ui.dragging)
	}
	cols := view.Columns
	for i := range ui.columns {
		if i >= len(cols) {
			break
		}
		for {
			ev, ok := gtx.Event(transfer.TargetFilter{Target: &ui.columns[i], Type: taskMIME})
			if !ok {
				break
			}
			if de, ok := ev.(transfer.DataEvent); ok {
				rc := de.Open()
				id, _ := io.ReadAll(rc)
				rc.Close()
				go ui.dropTask(string(id), cols[i].Status)
			}
		}
	}
}

func (ui *UI) trackDrag(id string, dragging bool) {
	switch {
	case dragging && ui.dragging == "":
		ui.dragging = id
		go api.Send("POST", "api/tasks/"+id+"/drag", nil)
	case !dragging && ui.dragging == id:
		ui.dragging = ""
		go api.Send("DELETE", "api/tasks/"+id+"/drag", nil)
	}
}

func (ui *UI) newTaskBody(title string) []byte {
	req := map[string]any{
		"title":       title,
		"description": ui.descEditor.Text(),
		"priority":    priorities[ui.priorityIdx],
		"due_date":    strings.TrimSpace(ui.dueEditor.Text()),
	}
	ui.mu.Lock()
	if ui.assigneeIdx > 0 && ui.assigneeIdx <= len(ui.employees) {
		req["assigned_to"] = ui.employees[ui.assigneeIdx-1].ID
	}
	if ui.workOrderIdx > 0 && ui.workOrderIdx <= len(ui.workOrders) {
		req["work_order_id"] = ui.workOrders[ui.workOrderIdx-1].ID
	}
	ui.mu.Unlock()
	body, _ := json.Marshal(req)
	return body
}

func (ui *UI) layout(gtx layout.Context) layout.Dimensions {
	return layout.Inset{Top: unit.Dp(16), Right: unit.Dp(16), Bottom: unit.Dp(16), Left: unit.Dp(16)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(ui.layoutHeader),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			layout.Rigid(ui.layoutCreate),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			layout.Rigid(ui.layoutNotice),
			layout.Flexed(1, ui.layoutBoard),
		)
	})
}

func (ui *UI) layoutHeader(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H5(theme, "Task Board").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Width: unit.Dp(24)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.Editor(theme, &ui.searchEditor, "Search title, description or assignee...").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.Button(theme, &ui.refreshBtn, "Reload").Layout(gtx)
		}),
	)
}

func (ui *UI) layoutCreate(gtx layout.Context) layout.Dimensions {
	ui.mu.Lock()
	assignee := "Unassigned"
	if ui.assigneeIdx > 0 && ui.assigneeIdx <= len(ui.employees) {
		assignee = ui.employees[ui.assigneeIdx-1].Name
	}
	workOrder := "No work order"
	if ui.workOrderIdx > 0 && ui.workOrderIdx <= len(ui.workOrders) {
		workOrder = ui.workOrders[ui.workOrderIdx-1].Title
	}
	ui.mu.Unlock()

	field := func(ed *widget.Editor, hint string) layout.FlexChild {
		return layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Right: unit.Dp(8)}.Layout(gtx, material.Editor(theme, ed, hint).Layout)
		})
	}
	button := func(btn *widget.Clickable, label string) layout.FlexChild {
		return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Right: unit.Dp(8)}.Layout(gtx, material.Button(theme, btn, label).Layout)
		})
	}
	return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
		field(&ui.titleEditor, "New task title..."),
		field(&ui.descEditor, "Description"),
		field(&ui.dueEditor, "Due (YYYY-MM-DD)"),
		button(&ui.priorityBtn, "Priority: "+priorities[ui.priorityIdx]),
		button(&ui.assigneeBtn, assignee),
		button(&ui.workOrderBtn, workOrder),
		button(&ui.createTaskBtn, "Create"),
	)
}

func (ui *UI) layoutNotice(gtx layout.Context) layout.Dimensions {
	ui.mu.Lock()
	notice := ui.notice
	ui.mu.Unlock()
	if notice == "" {
		return layout.Dimensions{}
	}
	return layout.Inset{Bottom: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		label := material.Body2(theme, notice)
		label.Color = color.NRGBA{R: 0xFF, G: 0x60, B: 0x60, A: 0xFF}
		return label.Layout(gtx)
	})
}

func (ui *UI) layoutBoard(gtx layout.Context) layout.Dimensions {
	ui.mu.Lock()
	cols := ui.view.Columns
	ui.mu.Unlock()

	children := make([]layout.FlexChild, 0, len(cols))
	for i := range cols {
		if i >= len(ui.columns) {
			break
		}
		children = append(children, layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Right: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				return ui.layoutColumn(gtx, &ui.columns[i], cols[i])
			})
		}))
	}
	return layout.Flex{}.Layout(gtx, children...)
}

func (ui *UI) layoutColumn(gtx layout.Context, target *column, col Column) layout.Dimensions {
	// The whole column area accepts dropped task ids.
	size := gtx.Constraints.Max
	defer clip.Rect{Max: size}.Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, target)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 0x1C, G: 0x1C, B: 0x1C, A: 0xFF}, clip.Rect{Max: size}.Op())

	return layout.UniformInset(unit.Dp(8)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				label := material.H6(theme, col.Label)
				label.Color = statusColor(col.Status)
				return label.Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return material.List(theme, &target.list).Layout(gtx, len(col.Cards), func(gtx layout.Context, i int) layout.Dimensions {
					return layout.Inset{Bottom: unit.Dp(6)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
						return ui.layoutCard(gtx, col.Cards[i])
					})
				})
			}),
		)
	})
}

func (ui *UI) layoutCard(gtx layout.Context, c Card) layout.Dimensions {
	d, ok := ui.cards[c.ID]
	if !ok {
		d = &widget.Draggable{Type: taskMIME}
		ui.cards[c.ID] = d
	}
	body := func(gtx layout.Context) layout.Dimensions {
		return cardBody(gtx, c, c.InTransit || d.Dragging())
	}
	ghost := func(gtx layout.Context) layout.Dimensions {
		gtx.Constraints.Max.X = gtx.Dp(unit.Dp(260))
		return cardBody(gtx, c, false)
	}
	return d.Layout(gtx, body, ghost)
}

func cardBody(gtx layout.Context, c Card, inTransit bool) layout.Dimensions {
	bg := color.NRGBA{R: 0x2A, G: 0x2A, B: 0x2A, A: 0xFF}
	if inTransit {
		bg.A = 0x80
	}
	return layout.Background{}.Layout(gtx,
		func(gtx layout.Context) layout.Dimensions {
			rr := gtx.Dp(unit.Dp(4))
			paint.FillShape(gtx.Ops, bg, clip.UniformRRect(image.Rectangle{Max: gtx.Constraints.Min}, rr).Op(gtx.Ops))
			return layout.Dimensions{Size: gtx.Constraints.Min}
		},
		func(gtx layout.Context) layout.Dimensions {
			return layout.UniformInset(unit.Dp(8)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						label := material.Body1(theme, c.Title)
						label.Font.Weight = font.Bold
						return label.Layout(gtx)
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						if c.Description == "" {
							return layout.Dimensions{}
						}
						return material.Body2(theme, c.Description).Layout(gtx)
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						label := material.Caption(theme, fmt.Sprintf("Priority: %s  Due: %s", c.Priority, c.DueDate))
						label.Color = priorityColor(c.Priority)
						return label.Layout(gtx)
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						label := material.Caption(theme, fmt.Sprintf("Assigned to: %s  Work order: %s", c.Assignee, c.WorkOrder))
						label.Color = color.NRGBA{R: 0x90, G: 0x90, B: 0x90, A: 0xFF}
						return label.Layout(gtx)
					}),
				)
			})
		},
	)
}

func statusColor(status string) color.NRGBA {
	switch status {
	case "To Do":
		return color.NRGBA{R: 0xFF, G: 0xA0, B: 0x00, A: 0xFF}
	case "In Progress":
		return color.NRGBA{R: 0x00, G: 0xA0, B: 0xFF, A: 0xFF}
	case "Done":
		return color.NRGBA{R: 0x00, G: 0xC0, B: 0x00, A: 0xFF}
	case "Blocked":
		return color.NRGBA{R: 0xFF, G: 0x40, B: 0x40, A: 0xFF}
	}
	return color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
}

func priorityColor(p string) color.NRGBA {
	switch p {
	case "high":
		return color.NRGBA{R: 0xFF, G: 0x60, B: 0x60, A: 0xFF}
	case "low":
		return color.NRGBA{R: 0x80, G: 0xC0, B: 0x80, A: 0xFF}
	}
	return color.NRGBA{R: 0xC0, G: 0xC0, B: 0xC0, A: 0xFF}
}

// Data fetching

func (ui *UI) pollData() {
	ui.fetchReferences()
	ui.fetchBoard()
	ticker := time.NewTicker(5 * time.Second)
	for range ticker.C {
		ui.fetchBoard()
	}
}

func (ui *UI) fetchReferences() {
	employees, err := api.Employees()
	if err != nil {
		log.Printf("fetch employees: %v", err)
	}
	orders, err := api.WorkOrders()
	if err != nil {
		log.Printf("fetch work orders: %v", err)
	}
	ui.mu.Lock()
	ui.employees = employees
	ui.workOrders = orders
	ui.mu.Unlock()
}

func (ui *UI) fetchBoard() {
	v, err := api.Board(ui.currentQuery())
	if err != nil {
		log.Printf("fetch board: %v", err)
		return
	}
	ui.mu.Lock()
	ui.view = v
	ui.fresh = true
	ui.mu.Unlock()
	ui.invalidate()
}

func (ui *UI) currentQuery() string {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	return ui.query
}

func (ui *UI) setNotice(msg string) {
	ui.mu.Lock()
	ui.notice = msg
	ui.mu.Unlock()
	ui.invalidate()
}

func (ui *UI) reload() {
	if err := api.Send("POST", "api/board/reload", nil); err != nil {
		ui.setNotice("Failed to load tasks: " + err.Error())
		return
	}
	ui.fetchBoard()
}

func (ui *UI) createTask(body []byte) {
	if err := api.Send("POST", "api/tasks", body); err != nil {
		ui.setNotice("Failed to create task: " + err.Error())
		return
	}
	ui.setNotice("")
	ui.fetchBoard()
}

func (ui *UI) dropTask(id, status string) {
	if id == "" {
		return
	}
	body, _ := json.Marshal(map[string]string{"status": status})
	if err := api.Send("POST", "api/tasks/"+id+"/drop", body); err != nil {
		ui.setNotice("Failed to update status: " + err.Error())
		ui.fetchBoard()
		return
	}
	ui.setNotice("")
	ui.fetchBoard()
}
