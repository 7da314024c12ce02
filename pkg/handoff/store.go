// Package handoff carries one pending image payload from an acquisition
// context (tab capture, remote image fetch) to the editing surface through a
// small set of named slots. Every offer clears all slots first and every take
// clears them again, so a payload is consumed at most once.
package handoff

import (
	"errors"
	"fmt"
	"sync"
)

// ErrEmptyPayload is returned when a capture or image offer carries no data
var ErrEmptyPayload = errors.New("empty handoff payload")

// Slot names a handoff storage key
type Slot string

const (
	SlotCaptureDataURL Slot = "lastCaptureDataUrl"
	SlotImageDataURL   Slot = "lastImageDataUrl"
	SlotImageSourceURL Slot = "lastImageSrcUrl"
)

// Slots lists every slot an offer or take clears
var Slots = []Slot{SlotCaptureDataURL, SlotImageDataURL, SlotImageSourceURL}

// Mode is how the editor was opened
type Mode string

const (
	ModeBlank             Mode = "blank"
	ModeCaptureVisibleTab Mode = "capture-visible-tab"
	ModeImage             Mode = "image"
)

// ParseMode maps a textual mode; unknown values fall back to blank
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeCaptureVisibleTab, ModeImage:
		return Mode(s)
	}
	return ModeBlank
}

// Payload is an image handed to the editor
type Payload struct {
	Mode      Mode
	DataURL   string
	SourceURL string
}

// Store is a concurrency-safe slot map. The zero value is ready to use.
type Store struct {
	mu    sync.Mutex
	slots map[Slot]string
}

// NewStore returns an empty store
func NewStore() *Store { return &Store{} }

// Offer replaces any pending payload. A blank offer only clears the slots.
func (s *Store) Offer(p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	switch p.Mode {
	case ModeCaptureVisibleTab:
		if p.DataURL == "" {
			return fmt.Errorf("%w: capture", ErrEmptyPayload)
		}
		s.slots[SlotCaptureDataURL] = p.DataURL
	case ModeImage:
		if p.DataURL == "" {
			return fmt.Errorf("%w: image", ErrEmptyPayload)
		}
		s.slots[SlotImageDataURL] = p.DataURL
		if p.SourceURL != "" {
			s.slots[SlotImageSourceURL] = p.SourceURL
		}
	}
	return nil
}

// Take returns the pending payload for mode and clears every slot. The
// boolean is false when nothing matching the mode is pending.
func (s *Store) Take(mode Mode) (Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Payload{Mode: mode}
	switch mode {
	case ModeCaptureVisibleTab:
		p.DataURL = s.slots[SlotCaptureDataURL]
	case ModeImage:
		p.DataURL = s.slots[SlotImageDataURL]
		p.SourceURL = s.slots[SlotImageSourceURL]
	}
	s.clearLocked()
	return p, p.DataURL != ""
}

// Get reads a single slot without consuming it
func (s *Store) Get(slot Slot) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.slots[slot]
	return v, ok
}

// Clear removes every slot
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Len returns the number of occupied slots
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *Store) clearLocked() {
	s.slots = make(map[Slot]string, len(Slots))
}
