package share

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/RawCapture/internal/debug"
)

// ErrUnknownItem is returned when a share id is not registered.
var ErrUnknownItem = errors.New("share: unknown item")

// Activity is a destination a shared file can be sent to.
type Activity string

const (
	SaveToFiles      Activity = "save_to_files"
	Download         Activity = "download"
	Mail             Activity = "mail"
	Message          Activity = "message"
	AirDrop          Activity = "airdrop"
	CopyToPasteboard Activity = "copy_to_pasteboard"
	AssignToContact  Activity = "assign_to_contact"
	OpenInBooks      Activity = "open_in_books"
)

// AllActivities lists every known activity in display order.
var AllActivities = []Activity{SaveToFiles, Download, Mail, Message, AirDrop, CopyToPasteboard, AssignToContact, OpenInBooks}

// DefaultExcluded are the destinations that make no sense for a DNG file.
var DefaultExcluded = []Activity{CopyToPasteboard, AssignToContact, OpenInBooks}

// ParseActivities converts configured names, rejecting unknown ones.
func ParseActivities(names []string) ([]Activity, error) {
	out := make([]Activity, 0, len(names))
	for _, n := range names {
		a := Activity(n)
		if !slices.Contains(AllActivities, a) {
			return nil, fmt.Errorf("unknown share activity %q", n)
		}
		out = append(out, a)
	}
	return out, nil
}

// Item is one file offered to the share sheet.
type Item struct {
	ID         string     `json:"id"`
	Path       string     `json:"-"`
	Name       string     `json:"name"`
	Activities []Activity `json:"activities"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Presenter shows a share item to the user.
type Presenter interface {
	Present(ctx context.Context, item Item) error
}

// Registry remembers shared items so they can be fetched later.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Item
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Item)}
}

func (r *Registry) add(item Item) {
	r.mu.Lock()
	r.items[item.ID] = item
	r.mu.Unlock()
}

// Lookup returns the item registered under id.
func (r *Registry) Lookup(id string) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	return item, nil
}

// Len returns the number of registered items.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Sheet presents files with every activity except the excluded ones.
type Sheet struct {
	registry  *Registry
	presenter Presenter
	excluded  []Activity
	now       func() time.Time
}

// NewSheet builds a share sheet.
func NewSheet(registry *Registry, presenter Presenter, excluded []Activity) *Sheet {
	return &Sheet{
		registry:  registry,
		presenter: presenter,
		excluded:  slices.Clone(excluded),
		now:       time.Now,
	}
}

// Activities returns the destinations offered by the sheet.
func (s *Sheet) Activities() []Activity {
	var out []Activity
	for _, a := range AllActivities {
		if !slices.Contains(s.excluded, a) {
			out = append(out, a)
		}
	}
	return out
}

// Share registers path as the only item and presents it.
func (s *Sheet) Share(ctx context.Context, path string) error {
	item := Item{
		ID:         uuid.NewString(),
		Path:       path,
		Name:       filepath.Base(path),
		Activities: s.Activities(),
		CreatedAt:  s.now(),
	}
	s.registry.add(item)
	if err := s.presenter.Present(ctx, item); err != nil {
		return fmt.Errorf("present %s: %w", item.Name, err)
	}
	return nil
}

// LogPresenter writes share items to the debug log. Used without a UI.
type LogPresenter struct{}

func (LogPresenter) Present(_ context.Context, item Item) error {
	debug.Event("share", "id", item.ID, "file", item.Path, "activities", item.Activities)
	return nil
}
