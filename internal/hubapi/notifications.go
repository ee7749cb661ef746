package hubapi

import (
	"context"
	"fmt"
	"net/http"
)

const MaxUnreadNotifications = 5

func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	var notifications []Notification
	if err := c.do(ctx, http.MethodGet, "/notifications/", nil, &notifications); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadNotifications returns at most MaxUnreadNotifications unread notifications.
func (c *Client) UnreadNotifications(ctx context.Context) ([]Notification, error) {
	all, err := c.ListNotifications(ctx)
	if err != nil {
		return nil, err
	}
	unread := make([]Notification, 0, MaxUnreadNotifications)
	for _, n := range all {
		if n.Read {
			continue
		}
		unread = append(unread, n)
		if len(unread) == MaxUnreadNotifications {
			break
		}
	}
	return unread, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int) error {
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/notifications/%d/", id), map[string]bool{"read": true}, nil)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks the given notifications read, one request each, stopping at the first error.
func (c *Client) MarkAllRead(ctx context.Context, notifications []Notification) error {
	for _, n := range notifications {
		if err := c.MarkNotificationRead(ctx, n.ID); err != nil {
			return err
		}
	}
	return nil
}
