// Package colors assigns display colors to category names.
package colors

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"pantry/internal/core"
)

// Generated colors stay in a bright band so category badges remain legible.
// Saturation is drawn from [70,100] and lightness from [55,65], both inclusive.
const (
	minSaturation  = 70
	saturationSpan = 31
	minLightness   = 55
	lightnessSpan  = 11
	hueSpan        = 360
)

// HSL is a color in CSS hsl() notation with integer components.
type HSL struct {
	H int // degrees, [0,360)
	S int // percent
	L int // percent
}

func (c HSL) String() string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", c.H, c.S, c.L)
}

// Hex converts the color to #rrggbb.
func (c HSL) Hex() string {
	return colorful.Hsl(float64(c.H), float64(c.S)/100, float64(c.L)/100).Clamped().Hex()
}

var hslPattern = regexp.MustCompile(`^\s*hsl\(\s*(\d{1,3})\s*,\s*(\d{1,3})%\s*,\s*(\d{1,3})%\s*\)\s*$`)

// ParseHSL parses the hsl(H, S%, L%) form produced by Generate.
func ParseHSL(s string) (HSL, error) {
	m := hslPattern.FindStringSubmatch(s)
	if m == nil {
		return HSL{}, fmt.Errorf("not an hsl color: %q", s)
	}
	h, _ := strconv.Atoi(m[1])
	sat, _ := strconv.Atoi(m[2])
	l, _ := strconv.Atoi(m[3])
	if h >= hueSpan || sat > 100 || l > 100 {
		return HSL{}, fmt.Errorf("hsl component out of range: %q", s)
	}
	return HSL{H: h, S: sat, L: l}, nil
}

// ToHex converts any supported CSS color expression to #rrggbb.
// Supported forms are hsl(), #rgb/#rrggbb and a small set of named colors.
func ToHex(color string) (string, bool) {
	if c, err := ParseHSL(color); err == nil {
		return c.Hex(), true
	}
	if c, err := colorful.Hex(color); err == nil {
		return c.Hex(), true
	}
	if hex, ok := namedColors[color]; ok {
		return hex, true
	}
	return "", false
}

var namedColors = map[string]string{
	"blue":   "#0000ff",
	"green":  "#008000",
	"yellow": "#ffff00",
	"red":    "#ff0000",
	"orange": "#ffa500",
	"gray":   "#808080",
	"grey":   "#808080",
	"purple": "#800080",
	"black":  "#000000",
	"white":  "#ffffff",
}

// Allocator hands out colors for category names. Safe for concurrent use.
type Allocator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewAllocator returns an allocator seeded from the clock.
func NewAllocator() *Allocator {
	return NewAllocatorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewAllocatorWithSource uses src for all randomness.
func NewAllocatorWithSource(src rand.Source) *Allocator {
	return &Allocator{rnd: rand.New(src)}
}

// Generate returns a new random bright color.
func (a *Allocator) Generate() HSL {
	a.mu.Lock()
	defer a.mu.Unlock()
	return HSL{
		H: a.rnd.Intn(hueSpan),
		S: minSaturation + a.rnd.Intn(saturationSpan),
		L: minLightness + a.rnd.Intn(lightnessSpan),
	}
}

// ColorFor returns the known color for name, or a newly generated one with
// created set. The caller must store a created color in known before the
// next lookup in the same pass.
func (a *Allocator) ColorFor(name string, known core.CategoryColorMap) (color string, created bool) {
	if c, ok := known[name]; ok {
		return c, false
	}
	return a.Generate().String(), true
}
