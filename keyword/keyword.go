package keyword

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is an opaque RGB background color.
type Color struct {
	R, G, B uint8
}

var (
	Green = Color{0x00, 0xff, 0x00}
	Red   = Color{0xff, 0x00, 0x00}
	Black = Color{0x00, 0x00, 0x00}
	White = Color{0xff, 0xff, 0xff}
)

// ParseColor reads "#rrggbb".
func ParseColor(s string) (Color, error) {
	if len(s) != 7 || s[0] != '#' {
		return Color{}, fmt.Errorf("color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// Dark reports whether light text reads better on c.
func (c Color) Dark() bool {
	luma := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	return luma < 128
}

type Action struct {
	Keyword string
	Color   Color
}

// Table maps lower-cased keywords to background colors. It is not modified after
// construction.
type Table struct {
	actions map[string]Action
	order   []string
}

func NewTable(actions []Action) (*Table, error) {
	t := &Table{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		key := strings.ToLower(a.Keyword)
		if key == "" {
			return nil, fmt.Errorf("empty keyword")
		}
		if _, dup := t.actions[key]; dup {
			return nil, fmt.Errorf("duplicate keyword %q", key)
		}
		a.Keyword = key
		t.actions[key] = a
		t.order = append(t.order, key)
	}
	return t, nil
}

func Default() *Table {
	t, _ := NewTable([]Action{
		{Keyword: "green", Color: Green},
		{Keyword: "red", Color: Red},
		{Keyword: "black", Color: Black},
	})
	return t
}

// Match looks text up after lower-casing it. No trimming or substring matching is
// done, so "Green " and "greenish" do not match.
func (t *Table) Match(text string) (Action, bool) {
	a, ok := t.actions[strings.ToLower(text)]
	return a, ok
}

func (t *Table) Actions() []Action {
	out := make([]Action, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.actions[k])
	}
	return out
}

func (t *Table) Len() int { return len(t.order) }
