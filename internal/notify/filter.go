package notify

import "strconv"

// Filter selects notifications for the list view's tabs (all / unread /
// by category). Filtering is a pure function over the set; it never
// mutates store state.
type Filter struct {
	UnreadOnly bool
	Category   Category
}

// Match reports whether the notification passes the filter.
func (f Filter) Match(n *Notification) bool {
	if f.UnreadOnly && n.Read {
		return false
	}
	if f.Category != "" && n.Type.Category() != f.Category {
		return false
	}
	return true
}

// FormatBadge renders an unread count for the indicator, capped at "99+".
func FormatBadge(count int) string {
	if count > 99 {
		return "99+"
	}
	if count < 0 {
		count = 0
	}
	return strconv.Itoa(count)
}
