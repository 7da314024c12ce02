package session

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/image-redactor/pkg/types"
)

// Script is a recorded sequence of editor inputs, replayed through a Loop.
//
//	frame: {origin: {x: 0, y: 0}, width: 800, height: 600}
//	events:
//	  - {op: add, x: 0.5, y: 0.25}
//	  - {op: down, target: selected, mode: move, x: 400, y: 150}
//	  - {op: move, x: 480, y: 170}
//	  - {op: up}
type Script struct {
	Frame  *types.DisplayFrame `yaml:"frame,omitempty"`
	Events []Step              `yaml:"events"`
}

// Step is one scripted input. X and Y are normalized for add and screen
// pixels for down and move.
type Step struct {
	Op       string              `yaml:"op"`
	X        float64             `yaml:"x,omitempty"`
	Y        float64             `yaml:"y,omitempty"`
	Target   string              `yaml:"target,omitempty"`
	Mode     string              `yaml:"mode,omitempty"`
	Frame    *types.DisplayFrame `yaml:"frame,omitempty"`
	Viewport *types.Viewport     `yaml:"viewport,omitempty"`
}

// ParseScript reads a YAML script, rejecting unknown fields and operations
func ParseScript(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if _, err := s.Compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScript reads a script from a file
func LoadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return ParseScript(f)
}

// Compile converts the script into loop events
func (s *Script) Compile() ([]Event, error) {
	var events []Event
	if s.Frame != nil {
		events = append(events, SetFrame{Frame: *s.Frame})
	}
	for i, step := range s.Events {
		ev, err := step.event()
		if err != nil {
			return nil, fmt.Errorf("script step %d: %w", i+1, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Play queues every event of the script on l
func (s *Script) Play(l *Loop) error {
	events, err := s.Compile()
	if err != nil {
		return err
	}
	for _, ev := range events {
		if !l.Post(ev) {
			return ErrClosed
		}
	}
	return nil
}

func (st Step) event() (Event, error) {
	pos := types.Point{X: st.X, Y: st.Y}
	switch st.Op {
	case "frame":
		if st.Frame == nil {
			return nil, fmt.Errorf("frame step needs a frame")
		}
		return SetFrame{Frame: *st.Frame}, nil
	case "add":
		if st.Viewport != nil {
			return AddBoxInView{Viewport: *st.Viewport}, nil
		}
		return AddBox{Center: pos}, nil
	case "down":
		mode := types.DragNone
		if st.Mode != "" {
			m, ok := types.ParseDragMode(st.Mode)
			if !ok {
				return nil, fmt.Errorf("unknown drag mode %q", st.Mode)
			}
			mode = m
		}
		return PointerDown{Target: st.Target, Mode: mode, Pos: pos}, nil
	case "move":
		return PointerMove{Pos: pos}, nil
	case "up":
		return PointerUp{}, nil
	case "delete":
		return KeyDelete{}, nil
	case "select":
		return Select{Target: st.Target}, nil
	case "preview":
		return TogglePreview{}, nil
	default:
		return nil, fmt.Errorf("unknown op %q", st.Op)
	}
}
