package debug

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color names a trigger group. Colours carry no behaviour beyond grouping:
// only breakpoints with equal colours interact.
type Color string

// Built-in colours.
const (
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorPurple Color = "purple"
	ColorPink   Color = "pink"
)

// String returns the colour name.
func (c Color) String() string {
	return string(c)
}

// NormalizeColor lower-cases and trims a colour name.
func NormalizeColor(s string) Color {
	return Color(strings.ToLower(strings.TrimSpace(s)))
}

// Swatch is one palette entry.
type Swatch struct {
	Name Color
	Hex  string
}

// RGB parses the swatch hex value.
func (s Swatch) RGB() (colorful.Color, error) {
	c, err := colorful.Hex(s.Hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("colour %s: %w", s.Name, err)
	}
	return c, nil
}

// Palette is the ordered set of colours available for grouping.
// The set is open: nothing in the package depends on its size.
type Palette struct {
	swatches []Swatch
	index    map[Color]int
}

// NewPalette builds a palette. Names are normalized; duplicates and empty
// names are rejected, as are hex values go-colorful cannot parse.
func NewPalette(swatches ...Swatch) (*Palette, error) {
	if len(swatches) == 0 {
		return nil, fmt.Errorf("%w: palette is empty", ErrUnknownColor)
	}
	p := &Palette{
		swatches: make([]Swatch, 0, len(swatches)),
		index:    make(map[Color]int, len(swatches)),
	}
	for _, s := range swatches {
		s.Name = NormalizeColor(string(s.Name))
		if s.Name == "" {
			return nil, fmt.Errorf("%w: empty colour name", ErrUnknownColor)
		}
		if _, dup := p.index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate colour %q", s.Name)
		}
		if _, err := s.RGB(); err != nil {
			return nil, err
		}
		p.index[s.Name] = len(p.swatches)
		p.swatches = append(p.swatches, s)
	}
	return p, nil
}

// DefaultPalette returns the built-in seven colour palette.
func DefaultPalette() *Palette {
	p, err := NewPalette(DefaultSwatches()...)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultSwatches returns the built-in swatches in display order.
func DefaultSwatches() []Swatch {
	return []Swatch{
		{Name: ColorRed, Hex: "#e51400"},
		{Name: ColorOrange, Hex: "#f09609"},
		{Name: ColorYellow, Hex: "#e3c800"},
		{Name: ColorGreen, Hex: "#339933"},
		{Name: ColorBlue, Hex: "#1ba1e2"},
		{Name: ColorPurple, Hex: "#a200ff"},
		{Name: ColorPink, Hex: "#e671b8"},
	}
}

// Contains reports whether c is in the palette.
func (p *Palette) Contains(c Color) bool {
	_, ok := p.index[c]
	return ok
}

// Lookup returns the swatch for c.
func (p *Palette) Lookup(c Color) (Swatch, bool) {
	i, ok := p.index[c]
	if !ok {
		return Swatch{}, false
	}
	return p.swatches[i], true
}

// First returns the first colour of the palette.
func (p *Palette) First() Color {
	return p.swatches[0].Name
}

// Colors returns the colour names in palette order.
func (p *Palette) Colors() []Color {
	out := make([]Color, len(p.swatches))
	for i, s := range p.swatches {
		out[i] = s.Name
	}
	return out
}

// Swatches returns a copy of the palette entries.
func (p *Palette) Swatches() []Swatch {
	out := make([]Swatch, len(p.swatches))
	copy(out, p.swatches)
	return out
}

// Len returns the number of colours.
func (p *Palette) Len() int {
	return len(p.swatches)
}
