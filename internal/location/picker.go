// Package location picks a shop's position on the map and resolves its address.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/egannguyen/instaprint/internal/entity"
)

// ErrSuperseded is returned for a selection that a later one replaced while
// its address was being resolved.
var ErrSuperseded = errors.New("selection superseded")

// Source tells how a location was chosen.
type Source string

const (
	SourceClick           Source = "click"
	SourceDrag            Source = "drag"
	SourceSearch          Source = "search"
	SourceCurrentPosition Source = "current_position"
)

// Selection is what the picker hands to its host. Address is empty when
// it could not be resolved.
type Selection struct {
	Location entity.Location `json:"location"`
	Address  string          `json:"address,omitempty"`
	Source   Source          `json:"source"`
}

// Geocoder resolves between coordinates and addresses.
type Geocoder interface {
	Reverse(ctx context.Context, loc entity.Location) (string, error)
	Search(ctx context.Context, query string) (entity.Location, string, error)
}

// Picker owns the single marker of one map. Every way of choosing a point
// bumps seq, and a geocoding result only lands while its seq is current, so
// there is never more than one marker and a slow lookup cannot move it back.
type Picker struct {
	geocoder Geocoder
	onSelect func(Selection)

	// emit orders onSelect calls by seq.
	emit sync.Mutex

	mu     sync.Mutex
	marker *entity.Location
	seq    uint64
}

// NewPicker creates a picker showing initial, if any. geocoder may be nil.
func NewPicker(initial *entity.Location, geocoder Geocoder, onSelect func(Selection)) *Picker {
	p := &Picker{geocoder: geocoder, onSelect: onSelect}
	if initial != nil {
		loc := *initial
		p.marker = &loc
	}
	return p
}

// Select places the marker at loc, chosen by a click, a drag or the
// device position, then reverse-geocodes it.
func (p *Picker) Select(ctx context.Context, loc entity.Location, source Source) (Selection, error) {
	if err := Validate(loc); err != nil {
		return Selection{}, err
	}
	seq := p.move(&loc)

	address := ""
	if p.geocoder != nil {
		var err error
		address, err = p.geocoder.Reverse(ctx, loc)
		if err != nil {
			// The location is still usable without an address.
			slog.Warn("Reverse geocoding failed", "lat", loc.Lat, "lng", loc.Lng, "err", err)
			address = ""
		}
	}
	return p.settle(seq, Selection{Location: loc, Address: address, Source: source})
}

// Search geocodes query and places the marker at the first result. A point
// chosen while the search runs wins over its result.
func (p *Picker) Search(ctx context.Context, query string) (Selection, error) {
	if query == "" {
		return Selection{}, fmt.Errorf("%w: search query is empty", entity.ErrValidation)
	}
	if p.geocoder == nil {
		return Selection{}, fmt.Errorf("%w: no geocoder configured", entity.ErrValidation)
	}
	seq := p.move(nil)
	loc, address, err := p.geocoder.Search(ctx, query)
	if err != nil {
		return Selection{}, fmt.Errorf("failed to find %q: %w", query, err)
	}
	p.mu.Lock()
	if p.seq == seq {
		p.marker = &loc
	}
	p.mu.Unlock()
	return p.settle(seq, Selection{Location: loc, Address: address, Source: SourceSearch})
}

// move starts a new selection. A nil loc keeps the marker where it is.
func (p *Picker) move(loc *entity.Location) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	if loc != nil {
		at := *loc
		p.marker = &at
	}
	return p.seq
}

// settle hands sel to the host unless a later selection replaced it.
func (p *Picker) settle(seq uint64, sel Selection) (Selection, error) {
	p.emit.Lock()
	defer p.emit.Unlock()

	p.mu.Lock()
	current := p.seq == seq
	p.mu.Unlock()
	if !current {
		slog.Debug("Dropping superseded location", "lat", sel.Location.Lat, "lng", sel.Location.Lng, "source", sel.Source)
		return sel, ErrSuperseded
	}
	if p.onSelect != nil {
		p.onSelect(sel)
	}
	return sel, nil
}

// Clear removes the marker.
func (p *Picker) Clear() {
	p.mu.Lock()
	p.seq++
	p.marker = nil
	p.mu.Unlock()
}

// Marker returns the current marker position.
func (p *Picker) Marker() (entity.Location, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.marker == nil {
		return entity.Location{}, false
	}
	return *p.marker, true
}

// Validate checks that loc is a point on Earth.
func Validate(loc entity.Location) error {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return fmt.Errorf("%w: coordinates out of range (%f, %f)", entity.ErrValidation, loc.Lat, loc.Lng)
	}
	return nil
}
