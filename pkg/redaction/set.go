// Package redaction holds the ordered set of redaction rectangles for the
// currently loaded image together with the weak selection reference.
package redaction

import (
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/menta2k/image-redactor/pkg/types"
)

// Default geometry for newly added boxes and the minimum size floor, in
// fractions of the image dimensions.
const (
	DefaultWidth  = 0.30
	DefaultHeight = 0.08
	MinWidth      = 0.02
	MinHeight     = 0.02
)

// Config holds geometry defaults for a Set
type Config struct {
	DefaultWidth  float64
	DefaultHeight float64
	MinWidth      float64
	MinHeight     float64
}

// DefaultConfig returns the standard box geometry
func DefaultConfig() Config {
	return Config{
		DefaultWidth:  DefaultWidth,
		DefaultHeight: DefaultHeight,
		MinWidth:      MinWidth,
		MinHeight:     MinHeight,
	}
}

// Set is an ordered collection of redactions. Insertion order is paint order.
// A Set is not safe for concurrent use; the editor session serializes access.
type Set struct {
	config   Config
	items    []types.Redaction
	selected string
	newID    func() string
}

// New creates an empty Set with default geometry
func New() *Set {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an empty Set with custom geometry. Zero or out-of-range
// values fall back to the defaults.
func NewWithConfig(config Config) *Set {
	return &Set{config: sanitize(config), newID: uuid.NewString}
}

// SetIDGenerator replaces the identifier source
func (s *Set) SetIDGenerator(fn func() string) {
	if fn != nil {
		s.newID = fn
	}
}

// Config returns the geometry the set was built with
func (s *Set) Config() Config { return s.config }

// AddDefault inserts a default-sized box centered on the normalized viewport
// center, clamped into the image, selects it and returns its identifier. A NaN
// or infinite coordinate is replaced by the image center on that axis.
func (s *Set) AddDefault(center types.Point) string {
	if !types.Finite(center.X) {
		center.X = 0.5
	}
	if !types.Finite(center.Y) {
		center.Y = 0.5
	}
	w, h := s.config.DefaultWidth, s.config.DefaultHeight
	b := types.Box{
		X: clamp(center.X-w/2, 0, 1-w),
		Y: clamp(center.Y-h/2, 0, 1-h),
		W: w,
		H: h,
	}
	id := s.nextID()
	s.items = append(s.items, types.Redaction{ID: id, Box: b})
	s.selected = id
	return id
}

// Remove deletes the box with the given identifier. Removing the selected box
// empties the selection; it is never reassigned.
func (s *Set) Remove(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	if s.selected == id {
		s.selected = ""
	}
	return true
}

// Update replaces the geometry of a box. Callers pass invariant-preserving
// values; non-finite geometry is refused.
func (s *Set) Update(id string, box types.Box) bool {
	i := s.index(id)
	if i < 0 || !box.Finite() {
		return false
	}
	s.items[i].Box = box
	return true
}

// Clear empties the set and the selection
func (s *Set) Clear() {
	s.items = nil
	s.selected = ""
}

// Select sets the weak selection reference. An empty or unknown id clears it.
func (s *Set) Select(id string) {
	if s.index(id) < 0 {
		s.selected = ""
		return
	}
	s.selected = id
}

// SelectedID returns the selected identifier or "" when nothing is selected
func (s *Set) SelectedID() string { return s.selected }

// Selected returns the selected box
func (s *Set) Selected() (types.Redaction, bool) {
	return s.Get(s.selected)
}

// Get looks up a box by identifier
func (s *Set) Get(id string) (types.Redaction, bool) {
	if i := s.index(id); i >= 0 {
		return s.items[i], true
	}
	return types.Redaction{}, false
}

// Items returns a copy of the boxes in paint order
func (s *Set) Items() []types.Redaction {
	return slices.Clone(s.items)
}

// Boxes returns the geometry of every box in paint order
func (s *Set) Boxes() []types.Box {
	out := make([]types.Box, len(s.items))
	for i, r := range s.items {
		out[i] = r.Box
	}
	return out
}

// Len returns the number of boxes
func (s *Set) Len() int { return len(s.items) }

func (s *Set) index(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.items, func(r types.Redaction) bool { return r.ID == id })
}

// maxIDAttempts bounds how often a custom generator may return an empty or
// duplicate id before the set falls back to random UUIDs
const maxIDAttempts = 8

func (s *Set) nextID() string {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		if id := s.newID(); id != "" && s.index(id) < 0 {
			return id
		}
	}
	for {
		if id := uuid.NewString(); s.index(id) < 0 {
			return id
		}
	}
}

func sanitize(c Config) Config {
	d := DefaultConfig()
	if !unit(c.MinWidth) {
		c.MinWidth = d.MinWidth
	}
	if !unit(c.MinHeight) {
		c.MinHeight = d.MinHeight
	}
	if !unit(c.DefaultWidth) {
		c.DefaultWidth = d.DefaultWidth
	}
	if !unit(c.DefaultHeight) {
		c.DefaultHeight = d.DefaultHeight
	}
	c.DefaultWidth = max(c.DefaultWidth, c.MinWidth)
	c.DefaultHeight = max(c.DefaultHeight, c.MinHeight)
	return c
}

// unit reports whether v lies in (0,1]; NaN does not
func unit(v float64) bool { return v > 0 && v <= 1 }

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
