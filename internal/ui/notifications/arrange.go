package notifications

import (
	"sort"
	"time"

	"github.com/nhle/clinicdesk/internal/model"
)

// ReadFilter selects notifications by read state.
type ReadFilter int

const (
	FilterAll ReadFilter = iota
	FilterUnread
	FilterRead
)

func (f ReadFilter) String() string {
	switch f {
	case FilterUnread:
		return "unread"
	case FilterRead:
		return "read"
	default:
		return "all"
	}
}

// Next cycles all → unread → read → all.
func (f ReadFilter) Next() ReadFilter {
	return (f + 1) % 3
}

func (f ReadFilter) keep(n model.Notification) bool {
	switch f {
	case FilterUnread:
		return !n.IsRead()
	case FilterRead:
		return n.IsRead()
	default:
		return true
	}
}

// SortDirection orders notifications by creation time.
type SortDirection int

const (
	NewestFirst SortDirection = iota
	OldestFirst
)

func (d SortDirection) String() string {
	if d == OldestFirst {
		return "oldest first"
	}
	return "newest first"
}

// Toggle flips the direction.
func (d SortDirection) Toggle() SortDirection {
	if d == OldestFirst {
		return NewestFirst
	}
	return OldestFirst
}

// Day group labels.
const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupEarlier   = "Earlier"
)

// Group is a run of notifications that share a day label.
type Group struct {
	Label string
	Items []model.Notification
}

// DayLabel buckets t relative to the local midnight of now.
func DayLabel(t, now time.Time) string {
	now = now.Local()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	t = t.Local()
	switch {
	case !t.Before(midnight):
		return GroupToday
	case !t.Before(midnight.AddDate(0, 0, -1)):
		return GroupYesterday
	default:
		return GroupEarlier
	}
}

// Arrange filters, sorts and groups items for display. Groups appear in
// the order of their first item, so oldest-first lists start with
// Earlier. The input slice is not modified.
func Arrange(items []model.Notification, filter ReadFilter, dir SortDirection, now time.Time) []Group {
	kept := make([]model.Notification, 0, len(items))
	for _, n := range items {
		if filter.keep(n) {
			kept = append(kept, n)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if dir == OldestFirst {
			return kept[i].CreatedAt.Before(kept[j].CreatedAt)
		}
		return kept[i].CreatedAt.After(kept[j].CreatedAt)
	})

	var groups []Group
	for _, n := range kept {
		label := DayLabel(n.CreatedAt, now)
		if len(groups) == 0 || groups[len(groups)-1].Label != label {
			groups = append(groups, Group{Label: label})
		}
		g := &groups[len(groups)-1]
		g.Items = append(g.Items, n)
	}
	return groups
}

// Flatten returns the grouped items in display order.
func Flatten(groups []Group) []model.Notification {
	var out []model.Notification
	for _, g := range groups {
		out = append(out, g.Items...)
	}
	return out
}
