// Package notifications pushes publish lifecycle events to an ntfy topic.
// Without a configured topic every call is a noop, so callers never need to
// guard their notification sites.
package notifications
