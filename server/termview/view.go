// Package termview draws a session top-down in a terminal and reads keys
// for the local paddle.
package termview

import (
	"context"
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/mo-shahab/pong3d/server/arena"
	"github.com/mo-shahab/pong3d/server/paddle"
	"github.com/mo-shahab/pong3d/server/session"
)

// hudRows are the status lines above the table
const hudRows = 2

var (
	styleWall  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleBall  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleGreen = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleRed   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleText  = tcell.StyleDefault
)

// Screen renders session views. The table is seen from above: x runs across
// the terminal and z runs down it, so red is at the top and green at the bottom.
type Screen struct {
	screen tcell.Screen
	arena  arena.Arena
}

func New(screen tcell.Screen) *Screen {
	return &Screen{screen: screen, arena: arena.Default()}
}

// Open initializes the real terminal
func Open() (*Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return New(screen), nil
}

func (s *Screen) Close() {
	s.screen.Fini()
}

// Render implements session.Renderer
func (s *Screen) Render(v session.View) {
	s.screen.Clear()
	w, h := s.screen.Size()

	s.drawHUD(v, w)

	field := rect{x: 0, y: hudRows, w: w, h: h - hudRows}
	if field.w < 4 || field.h < 4 {
		s.screen.Show()
		return
	}
	s.drawWalls(field)

	s.drawPaddle(field, v.Red.X, v.Red.Z, styleRed)
	s.drawPaddle(field, v.Green.X, v.Green.Z, styleGreen)

	bx, by := s.cell(field, v.Ball.X, v.Ball.Z)
	s.screen.SetContent(bx, by, 'O', nil, styleBall)

	s.screen.Show()
}

func (s *Screen) drawHUD(v session.View, w int) {
	score := fmt.Sprintf("green %d : %d red", v.Scores.Green, v.Scores.Red)
	status := v.State.String()
	if v.Code != "" {
		status = fmt.Sprintf("room %s  %s  %s (%s)", v.Code, status, v.Role, v.Seat)
	}
	switch {
	case v.Winner != "":
		status += "  " + string(v.Winner) + " wins"
	case v.Reason != "":
		status += "  " + v.Reason
	case v.Paused:
		status += "  paused"
	}
	s.text(0, 0, w, score+fmt.Sprintf("   ball height %+.1f", v.Ball.Y))
	s.text(0, 1, w, status+"   [wasd qe] move  [space] pause  [esc] quit")
}

func (s *Screen) text(x, y, w int, str string) {
	for _, r := range str {
		if x >= w {
			return
		}
		s.screen.SetContent(x, y, r, nil, styleText)
		x++
	}
}

type rect struct{ x, y, w, h int }

func (s *Screen) drawWalls(f rect) {
	for x := f.x; x < f.x+f.w; x++ {
		s.screen.SetContent(x, f.y, '-', nil, styleWall)
		s.screen.SetContent(x, f.y+f.h-1, '-', nil, styleWall)
	}
	for y := f.y + 1; y < f.y+f.h-1; y++ {
		s.screen.SetContent(f.x, y, '|', nil, styleWall)
		s.screen.SetContent(f.x+f.w-1, y, '|', nil, styleWall)
	}
}

func (s *Screen) drawPaddle(f rect, x, z float64, style tcell.Style) {
	left, row := s.cell(f, x-paddle.Width/2, z)
	right, _ := s.cell(f, x+paddle.Width/2, z)
	for c := left; c <= right; c++ {
		s.screen.SetContent(c, row, '=', nil, style)
	}
}

// cell maps table coordinates into the inside of f
func (s *Screen) cell(f rect, x, z float64) (int, int) {
	half := s.arena.HalfExtents()
	col := f.x + 1 + scale(x, half.X, f.w-2)
	row := f.y + 1 + scale(z, half.Z, f.h-2)
	return col, row
}

// scale maps v in [-half, half] onto [0, n-1], clamping outside values
func scale(v, half float64, n int) int {
	t := (v + half) / (2 * half)
	i := int(math.Round(t * float64(n-1)))
	return max(0, min(n-1, i))
}

// PollKeys feeds key events to keys until the user quits, the screen is
// finalized or ctx ends. The returned channel is closed on quit.
func (s *Screen) PollKeys(ctx context.Context, keys *Keys) <-chan struct{} {
	quit := make(chan struct{})
	go func() {
		defer close(quit)
		for ctx.Err() == nil {
			ev := s.screen.PollEvent()
			switch ev := ev.(type) {
			case nil:
				return
			case *tcell.EventKey:
				if keys.HandleKey(ev) {
					return
				}
			case *tcell.EventResize:
				s.screen.Sync()
			}
		}
	}()
	return quit
}
