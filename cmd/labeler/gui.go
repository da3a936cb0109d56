package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sqweek/dialog"

	"github.com/menta2k/yolo-labeler/internal/logger"
	"github.com/menta2k/yolo-labeler/pkg/canvas"
	"github.com/menta2k/yolo-labeler/pkg/geometry"
	"github.com/menta2k/yolo-labeler/pkg/render"
	"github.com/menta2k/yolo-labeler/pkg/vision"
	"github.com/menta2k/yolo-labeler/pkg/workspace"
)

const (
	panelWidth   = 280
	statusHeight = 22
	lineHeight   = 16
)

var (
	panelColor     = color.RGBA{28, 28, 28, 255}
	highlightColor = color.RGBA{60, 80, 120, 255}
	statusColor    = color.RGBA{20, 20, 20, 255}
	errorColor     = color.RGBA{120, 30, 30, 255}
)

var digitKeys = []ebiten.Key{
	ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3,
	ebiten.KeyDigit4, ebiten.KeyDigit5, ebiten.KeyDigit6,
	ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
}

var helpLines = []string{
	"drag: draw / move / resize",
	"right click, Del: delete box",
	"Esc: cancel   A/D: prev/next",
	"1-9: class   N: new   F2: rename",
	"X: delete class   PgUp/PgDn: order",
	"G: suggest   Ctrl+S: save",
	"Ctrl+E: export all",
}

// statusLine is the editor's Reporter; it shows the latest message
type statusLine struct {
	text  string
	isErr bool
	log   *logger.Logger
}

func (s *statusLine) Error(err error) {
	s.text = err.Error()
	s.isErr = true
	s.log.Error("%v", err)
}

func (s *statusLine) Status(msg string) {
	s.text = msg
	s.isErr = false
	s.log.Info("%s", msg)
}

// textInput collects a line of text typed into the window
type textInput struct {
	prompt string
	text   []rune
	done   func(string)
}

type suggestion struct {
	index int
	res   *vision.Result
	err   error
}

// editor hosts the canvas engine in an ebiten window
type editor struct {
	ws       *workspace.Workspace
	engine   *canvas.Engine
	status   *statusLine
	style    render.Style
	provider string

	proposer vision.Proposer
	results  chan suggestion
	busy     bool

	screenW, screenH int
	viewport         geometry.Size

	background *image.NRGBA
	bgIndex    int
	bgViewport geometry.Size
	frame      *ebiten.Image
	dirty      bool

	lastCursor image.Point
	input      *textInput
	classRows  []image.Rectangle
	boxRows    []image.Rectangle
}

func newEditor(ws *workspace.Workspace, status *statusLine, provider string) *editor {
	g := &editor{
		ws:       ws,
		engine:   ws.Engine(),
		status:   status,
		style:    render.DefaultStyle(),
		provider: provider,
		results:  make(chan suggestion, 1),
		bgIndex:  -1,
		dirty:    true,
	}
	g.style.Stroke = cfg.Render.Stroke
	g.style.Labels = cfg.Render.Labels
	ws.OnChange(func() { g.dirty = true })

	// the engine asks synchronously; answer no and collect a name instead
	ws.Classes().Prompt = func() (string, bool) {
		g.beginInput("First class name", func(name string) {
			g.report(g.addClass(name))
		})
		return "", false
	}
	return g
}

func (g *editor) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.screenW || outsideHeight != g.screenH {
		g.screenW, g.screenH = outsideWidth, outsideHeight
		g.viewport = geometry.Size{
			W: max(outsideWidth-panelWidth, 0),
			H: max(outsideHeight-statusHeight, 0),
		}
		g.engine.Resize(g.viewport)
		g.dirty = true
	}
	return outsideWidth, outsideHeight
}

func (g *editor) Update() error {
	if ebiten.IsWindowBeingClosed() {
		if err := g.ws.Close(); err != nil {
			quit := dialog.Message("Annotations could not be saved: %v\n\nQuit anyway?", err).Title("labeler").YesNo()
			if !quit {
				g.report(err)
				return nil
			}
		}
		return ebiten.Termination
	}

	g.pollBackground()
	if g.input != nil {
		g.updateInput()
		return nil
	}
	g.updateKeys()
	g.updatePointer()
	return nil
}

func (g *editor) pollBackground() {
	select {
	case s := <-g.results:
		g.busy = false
		switch {
		case s.err != nil:
			g.report(fmt.Errorf("failed to get suggestions: %w", s.err))
		case s.index != g.ws.Index():
			g.status.Status("suggestions discarded: image changed")
		default:
			_, err := g.ws.ApplySuggestions(s.res, suggestOptions(g.provider, cfg.Vision.CreateClasses))
			g.report(err)
		}
	default:
	}

	select {
	case <-g.ws.ClassChanges():
		changed, err := g.ws.ReloadClasses()
		if err != nil {
			g.report(err)
		} else if changed {
			g.status.Status("classes.txt reloaded")
		}
	default:
	}
}

func (g *editor) updateKeys() {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControl) || ebiten.IsKeyPressed(ebiten.KeyMeta)
	pressed := inpututil.IsKeyJustPressed

	switch {
	case pressed(ebiten.KeyDelete) || pressed(ebiten.KeyBackspace):
		g.engine.KeyDown(canvas.KeyDelete)
	case pressed(ebiten.KeyEscape):
		g.engine.KeyDown(canvas.KeyEscape)
	case ctrl && pressed(ebiten.KeyS):
		g.report(g.ws.Save())
	case ctrl && pressed(ebiten.KeyE):
		g.report(g.ws.ExportAll())
	case pressed(ebiten.KeyArrowRight) || pressed(ebiten.KeyD):
		g.report(g.ws.Next())
	case pressed(ebiten.KeyArrowLeft) || pressed(ebiten.KeyA):
		g.report(g.ws.Prev())
	case pressed(ebiten.KeyN):
		g.beginInput("New class", func(name string) {
			g.report(g.addClass(name))
		})
	case pressed(ebiten.KeyF2):
		g.renameClass()
	case pressed(ebiten.KeyX):
		g.deleteClass()
	case pressed(ebiten.KeyPageUp):
		g.report(g.ws.MoveClassUp(g.ws.Classes().Current()))
	case pressed(ebiten.KeyPageDown):
		g.report(g.ws.MoveClassDown(g.ws.Classes().Current()))
	case pressed(ebiten.KeyG):
		g.suggest()
	}

	for i, k := range digitKeys {
		if pressed(k) {
			g.selectClass(i)
		}
	}
}

func (g *editor) updatePointer() {
	mx, my := ebiten.CursorPosition()
	p := image.Pt(mx, my)
	inCanvas := mx >= 0 && my >= 0 && mx < g.viewport.W && my < g.viewport.H

	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		if inCanvas {
			g.engine.PointerDown(p, canvas.ButtonPrimary)
		} else {
			g.clickPanel(p)
		}
	case p != g.lastCursor:
		g.engine.PointerMove(p)
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		g.engine.PointerUp(p)
	}
	if inCanvas && inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		g.engine.PointerDown(p, canvas.ButtonSecondary)
	}
	g.lastCursor = p

	shape := ebiten.CursorShapeDefault
	if inCanvas {
		shape = cursorShape(g.engine.Cursor(p))
	}
	ebiten.SetCursorShape(shape)
}

func (g *editor) updateInput() {
	in := g.input
	in.text = ebiten.AppendInputChars(in.text)
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		g.input = nil
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter):
		g.input = nil
		if name := strings.TrimSpace(string(in.text)); name != "" {
			in.done(name)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && len(in.text) > 0:
		in.text = in.text[:len(in.text)-1]
	}
}

func (g *editor) beginInput(prompt string, done func(string)) {
	g.input = &textInput{prompt: prompt, done: done}
}

func (g *editor) clickPanel(p image.Point) {
	for i, r := range g.classRows {
		if p.In(r) {
			g.selectClass(i)
			return
		}
	}
	for i, r := range g.boxRows {
		if p.In(r) {
			g.engine.Select(i)
			return
		}
	}
}

// selectClass makes id the class for new boxes and relabels the selected box
func (g *editor) selectClass(id int) {
	reg := g.ws.Classes()
	if err := reg.SetCurrent(id); err != nil {
		return
	}
	if i, ok := g.engine.Selected(); ok {
		g.engine.SetClass(i, id)
	}
	g.dirty = true
}

func (g *editor) addClass(name string) error {
	_, err := g.ws.AddClass(name)
	return err
}

func (g *editor) renameClass() {
	reg := g.ws.Classes()
	if reg.Len() == 0 {
		return
	}
	id := reg.Current()
	g.beginInput(fmt.Sprintf("Rename %q", reg.Name(id)), func(name string) {
		g.report(g.ws.RenameClass(id, name))
	})
}

func (g *editor) deleteClass() {
	reg := g.ws.Classes()
	if reg.Len() == 0 {
		return
	}
	id := reg.Current()
	ok := dialog.Message("Delete class %q?\n\nBoxes of this class are removed from every image in the folder.", reg.Name(id)).
		Title("Delete class").YesNo()
	if ok {
		g.report(g.ws.DeleteClass(id))
	}
}

func (g *editor) suggest() {
	if g.busy {
		return
	}
	img := g.ws.Image()
	if img == nil {
		g.report(workspace.ErrNoImageOpen)
		return
	}
	if g.proposer == nil {
		p, err := newProposer(g.provider, g.ws.Classes().Names(), 0)
		if err != nil {
			g.report(err)
			return
		}
		g.proposer = p
	}

	g.busy = true
	g.status.Status("asking " + g.provider + " for suggestions...")
	index, p := g.ws.Index(), g.proposer
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), visionTimeout())
		defer cancel()
		res, err := p.Propose(ctx, img)
		g.results <- suggestion{index: index, res: res, err: err}
	}()
}

func (g *editor) report(err error) {
	if err != nil {
		g.status.Error(err)
	}
}

func (g *editor) Draw(screen *ebiten.Image) {
	screen.Fill(g.style.Background)
	if g.dirty {
		g.redraw()
	}
	if g.frame != nil {
		screen.DrawImage(g.frame, &ebiten.DrawImageOptions{})
	}
	g.drawPanel(screen)
	g.drawStatus(screen)
	if g.input != nil {
		g.drawInput(screen)
	}
}

// redraw rasterizes the scene into the frame texture. The scaled image is
// cached per image and viewport; only the overlay is repainted.
func (g *editor) redraw() {
	g.dirty = false
	vp := g.viewport
	if vp.Empty() {
		return
	}

	scene := g.engine.Scene(g.ws.Classes())
	if g.background == nil || g.bgIndex != g.ws.Index() || g.bgViewport != vp {
		base := canvas.Scene{
			Viewport:  vp,
			ImageSize: scene.ImageSize,
			Transform: scene.Transform,
			ImageRect: scene.ImageRect,
		}
		g.background = render.Frame(g.ws.Image(), base, g.style)
		g.bgIndex, g.bgViewport = g.ws.Index(), vp
	}

	dst := imaging.Clone(g.background)
	render.Overlay(dst, scene, g.style)

	if g.frame == nil || g.frame.Bounds().Size() != dst.Bounds().Size() {
		if g.frame != nil {
			g.frame.Deallocate()
		}
		g.frame = ebiten.NewImage(vp.W, vp.H)
	}
	g.frame.WritePixels(dst.Pix)
}

func (g *editor) drawPanel(screen *ebiten.Image) {
	x := g.viewport.W
	vector.DrawFilledRect(screen, float32(x), 0, panelWidth, float32(g.screenH), panelColor, false)

	y := 6
	ebitenutil.DebugPrintAt(screen, "Classes", x+8, y)
	y += lineHeight + 2

	reg := g.ws.Classes()
	g.classRows = g.classRows[:0]
	for i, name := range reg.Names() {
		row := image.Rect(x, y, x+panelWidth, y+lineHeight)
		g.classRows = append(g.classRows, row)
		if i == reg.Current() {
			vector.DrawFilledRect(screen, float32(row.Min.X), float32(row.Min.Y), panelWidth, lineHeight, highlightColor, false)
		}
		vector.DrawFilledRect(screen, float32(x+8), float32(y+3), 10, 10, reg.Color(i), false)
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%d %s", i, name), x+24, y)
		y += lineHeight
	}
	if reg.Len() == 0 {
		ebitenutil.DebugPrintAt(screen, "(none, press N)", x+8, y)
		y += lineHeight
	}

	y += lineHeight
	ebitenutil.DebugPrintAt(screen, "Annotations", x+8, y)
	y += lineHeight + 2

	selected, _ := g.engine.Selected()
	helpTop := g.screenH - statusHeight - len(helpLines)*lineHeight - 6
	g.boxRows = g.boxRows[:0]
	for i, line := range g.ws.Describe() {
		if y+lineHeight > helpTop {
			ebitenutil.DebugPrintAt(screen, "...", x+8, y)
			break
		}
		row := image.Rect(x, y, x+panelWidth, y+lineHeight)
		g.boxRows = append(g.boxRows, row)
		if i == selected {
			vector.DrawFilledRect(screen, float32(row.Min.X), float32(row.Min.Y), panelWidth, lineHeight, highlightColor, false)
		}
		ebitenutil.DebugPrintAt(screen, line, x+8, y)
		y += lineHeight
	}

	for i, line := range helpLines {
		ebitenutil.DebugPrintAt(screen, line, x+8, helpTop+i*lineHeight)
	}
}

func (g *editor) drawStatus(screen *ebiten.Image) {
	y := g.screenH - statusHeight
	bg := statusColor
	if g.status.isErr {
		bg = errorColor
	}
	vector.DrawFilledRect(screen, 0, float32(y), float32(g.screenW), statusHeight, bg, false)

	pos := "-"
	if g.ws.Index() >= 0 {
		pos = fmt.Sprintf("%d/%d", g.ws.Index()+1, g.ws.Len())
	}
	line := fmt.Sprintf("[%s] %s | %s", pos, g.engine.Mode(), g.status.text)
	ebitenutil.DebugPrintAt(screen, line, 6, y+3)
}

func (g *editor) drawInput(screen *ebiten.Image) {
	w, h := 360, 60
	x := (g.screenW - w) / 2
	y := (g.screenH - h) / 2
	vector.DrawFilledRect(screen, 0, 0, float32(g.screenW), float32(g.screenH), color.RGBA{0, 0, 0, 120}, false)
	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w), float32(h), panelColor, false)
	ebitenutil.DebugPrintAt(screen, g.input.prompt+" (Enter to confirm, Esc to cancel)", x+10, y+8)
	ebitenutil.DebugPrintAt(screen, string(g.input.text)+"_", x+10, y+32)
}

func cursorShape(c canvas.Cursor) ebiten.CursorShapeType {
	switch c {
	case canvas.CursorMove:
		return ebiten.CursorShapeMove
	case canvas.CursorCrosshair:
		return ebiten.CursorShapeCrosshair
	case canvas.CursorResizeNWSE:
		return ebiten.CursorShapeNWSEResize
	case canvas.CursorResizeNESW:
		return ebiten.CursorShapeNESWResize
	case canvas.CursorResizeHorizontal:
		return ebiten.CursorShapeEWResize
	case canvas.CursorResizeVertical:
		return ebiten.CursorShapeNSResize
	default:
		return ebiten.CursorShapeDefault
	}
}
