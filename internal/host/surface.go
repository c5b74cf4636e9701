package host

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// SurfaceID identifies the embedded surface in the host document.
const SurfaceID = "link-coach-widget-iframe"

const (
	mobileBreakpoint = 768
	edgeOffset       = "20px"
	surfaceAllow     = "clipboard-write"
)

// Layout is the positioning scheme of the surface.
type Layout string

const (
	LayoutFixed    Layout = "fixed"
	LayoutRelative Layout = "relative"
)

// Surface is the embedded frame as the host document sees it.
type Surface struct {
	ID      string
	Src     string
	Width   string
	Height  string
	Layout  Layout
	Top     string
	Right   string
	Bottom  string
	Left    string
	ZIndex  int
	Visible bool
	Allow   string
}

func newSurface(cfg Config, viewportWidth int) *Surface {
	s := &Surface{
		ID:      SurfaceID,
		Src:     cfg.WidgetURL,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Layout:  LayoutFixed,
		ZIndex:  cfg.ZIndex,
		Visible: true,
		Allow:   surfaceAllow,
	}

	switch cfg.Position {
	case PositionBottomLeft:
		s.Bottom, s.Left = edgeOffset, edgeOffset
	case PositionCustom:
		s.Layout = LayoutRelative
	default:
		s.Bottom, s.Right = edgeOffset, edgeOffset
	}

	// Narrow viewports get the whole screen; evaluated once at creation.
	if viewportWidth > 0 && viewportWidth < mobileBreakpoint {
		s.Width, s.Height = "100%", "100%"
		s.Top, s.Right, s.Bottom, s.Left = "0", "0", "0", "0"
	}
	return s
}

func pixels(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "px"
}

// ErrContainerNotFound is returned when a mount target does not exist.
var ErrContainerNotFound = errors.New("container not found")

// Document is the part of the host page the controller manipulates.
type Document interface {
	ViewportWidth() int
	// Mount attaches s to the element matching container, or to the body
	// when container is empty.
	Mount(container string, s *Surface) error
	Unmount(s *Surface)
}

// HeadlessDocument is an in-memory Document for embedding without a browser.
type HeadlessDocument struct {
	mu            sync.Mutex
	viewportWidth int
	containers    map[string]struct{}
	mounted       map[*Surface]string
}

// NewHeadlessDocument creates a document with the given viewport width and
// resolvable container selectors.
func NewHeadlessDocument(viewportWidth int, containers ...string) *HeadlessDocument {
	d := &HeadlessDocument{
		viewportWidth: viewportWidth,
		containers:    make(map[string]struct{}, len(containers)),
		mounted:       make(map[*Surface]string),
	}
	for _, c := range containers {
		d.containers[c] = struct{}{}
	}
	return d
}

func (d *HeadlessDocument) ViewportWidth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewportWidth
}

func (d *HeadlessDocument) Mount(container string, s *Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if container != "" {
		if _, ok := d.containers[container]; !ok {
			return fmt.Errorf("%w: %s", ErrContainerNotFound, container)
		}
	}
	d.mounted[s] = container
	return nil
}

func (d *HeadlessDocument) Unmount(s *Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mounted, s)
}

// MountedCount returns how many surfaces are currently attached.
func (d *HeadlessDocument) MountedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mounted)
}
