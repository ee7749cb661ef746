package hubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

var roomsCacheKey = []byte("rooms")

func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	if c.roomsCache != nil {
		if cached, err := c.roomsCache.Get(roomsCacheKey); err == nil {
			var rooms []Room
			if err := json.Unmarshal(cached, &rooms); err == nil {
				log.Tracef("hubapi: %d rooms from cache", len(rooms))
				return rooms, nil
			}
		}
	}

	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/rooms/", nil, &rooms); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	if c.roomsCache != nil {
		if encoded, err := json.Marshal(rooms); err == nil {
			// freecache treats 0 as no expiry
			ttl := max(int(c.roomsCacheTTL.Seconds()), 1)
			if err := c.roomsCache.Set(roomsCacheKey, encoded, ttl); err != nil {
				log.Warnf("hubapi: cache rooms: %s", err)
			}
		}
	}

	return rooms, nil
}

func (c *Client) CreateRoom(ctx context.Context, req RoomRequest) (*Room, error) {
	defer c.invalidateRooms()
	var room Room
	if err := c.do(ctx, http.MethodPost, "/rooms/", req, &room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &room, nil
}

func (c *Client) UpdateRoom(ctx context.Context, id int, req RoomRequest) (*Room, error) {
	defer c.invalidateRooms()
	var room Room
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/rooms/%d/", id), req, &room); err != nil {
		return nil, fmt.Errorf("update room %d: %w", id, err)
	}
	return &room, nil
}

func (c *Client) DeleteRoom(ctx context.Context, id int) error {
	defer c.invalidateRooms()
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/rooms/%d/", id), nil, nil); err != nil {
		return fmt.Errorf("delete room %d: %w", id, err)
	}
	return nil
}

func (c *Client) invalidateRooms() {
	if c.roomsCache != nil {
		c.roomsCache.Del(roomsCacheKey)
	}
}
