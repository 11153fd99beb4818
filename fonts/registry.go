// Package fonts keeps the font families registered by name and measures runes
// with them through github.com/tdewolff/canvas.
package fonts

import (
	"image/color"
	"sync"

	"github.com/tdewolff/canvas"
	"go.uber.org/zap"

	"github.com/ByLCY/scriptorium/units"
)

type advanceKey struct {
	r    rune
	size float64
}

type familyEntry struct {
	family   *canvas.FontFamily
	fallback bool
	advances map[advanceKey]float64
}

// Registry maps family names to raw font bytes. Families are parsed on first
// use and cached until re-registered. It is safe for concurrent use.
type Registry struct {
	log *zap.Logger

	mu       sync.Mutex
	blobs    map[string][]byte
	families map[string]*familyEntry
	fallback *canvas.FontFamily
}

// NewRegistry creates an empty registry. A nil logger is replaced with a no-op one.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:      log,
		blobs:    map[string][]byte{},
		families: map[string]*familyEntry{},
	}
}

// Register stores data under name. A later registration of the same name
// replaces the earlier one and drops its cached measurements.
func (r *Registry) Register(name string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[name] = data
	delete(r.families, name)
}

// Has reports whether name was registered.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.blobs[name]
	return ok
}

// Names returns registered family names in no particular order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.blobs))
	for name := range r.blobs {
		out = append(out, name)
	}
	return out
}

// Advance returns the horizontal advance of ch at size (pt), in pt.
func (r *Registry) Advance(name string, ch rune, size float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.ensureFamily(name)
	key := advanceKey{r: ch, size: size}
	if w, ok := entry.advances[key]; ok {
		return w
	}
	face := entry.family.Face(size, color.Black, canvas.FontRegular, canvas.FontNormal)
	// canvas reports widths in millimetres
	w := face.TextWidth(string(ch)) * units.MmToPt
	entry.advances[key] = w
	return w
}

// Face returns a canvas face of family name at size (pt) for drawing.
func (r *Registry) Face(name string, size float64, col color.Color) *canvas.FontFace {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.ensureFamily(name)
	return entry.family.Face(size, col, canvas.FontRegular, canvas.FontNormal)
}

// IsFallback reports whether name currently measures with the built-in fallback.
func (r *Registry) IsFallback(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureFamily(name).fallback
}

// ensureFamily must be called with mu held.
func (r *Registry) ensureFamily(name string) *familyEntry {
	if entry, ok := r.families[name]; ok {
		return entry
	}
	entry := &familyEntry{advances: map[advanceKey]float64{}}
	data, ok := r.blobs[name]
	if !ok {
		r.log.Warn("Font family not registered, using fallback", zap.String("family", name), zap.String("fallback", FallbackName))
		entry.family, entry.fallback = r.fallbackFamily(), true
	} else {
		family := canvas.NewFontFamily(name)
		if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
			r.log.Warn("Unable to parse font family, using fallback", zap.String("family", name), zap.Error(err))
			entry.family, entry.fallback = r.fallbackFamily(), true
		} else {
			entry.family = family
		}
	}
	r.families[name] = entry
	return entry
}

func (r *Registry) fallbackFamily() *canvas.FontFamily {
	if r.fallback != nil {
		return r.fallback
	}
	family := canvas.NewFontFamily(FallbackName)
	if err := family.LoadFont(builtin[FallbackName], 0, canvas.FontRegular); err != nil {
		// embedded font is part of the build, failure here is a packaging bug
		panic("fonts: unable to load built-in fallback: " + err.Error())
	}
	r.fallback = family
	return family
}
