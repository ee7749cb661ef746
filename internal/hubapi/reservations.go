package hubapi

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) ListReservations(ctx context.Context) ([]Reservation, error) {
	var reservations []Reservation
	if err := c.do(ctx, http.MethodGet, "/reservations/", nil, &reservations); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

func (c *Client) CreateReservation(ctx context.Context, req ReservationRequest) (*Reservation, error) {
	var reservation Reservation
	if err := c.do(ctx, http.MethodPost, "/reservations/", req, &reservation); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	return &reservation, nil
}

func (c *Client) UpdateReservation(ctx context.Context, id int, req ReservationRequest) (*Reservation, error) {
	var reservation Reservation
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/reservations/%d/", id), req, &reservation); err != nil {
		return nil, fmt.Errorf("update reservation %d: %w", id, err)
	}
	return &reservation, nil
}

func (c *Client) CancelReservation(ctx context.Context, id int) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/reservations/%d/", id), nil, nil); err != nil {
		return fmt.Errorf("cancel reservation %d: %w", id, err)
	}
	return nil
}
