package hubapi

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsStaff   bool   `json:"is_staff"`
}

func (u *User) validate() error {
	if u.ID == 0 || u.Username == "" {
		return fmt.Errorf("%w: user without id or username", ErrMalformedResponse)
	}
	return nil
}

type Room struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
}

type RoomRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
}

func (r RoomRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("room name is required")
	}
	if r.Capacity <= 0 {
		return fmt.Errorf("room capacity must be positive")
	}
	return nil
}

// ReservationUser accepts both a nested user object and a bare user id.
type ReservationUser struct {
	ID       int    `json:"id"`
	Username string `json:"username,omitempty"`
}

func (u *ReservationUser) UnmarshalJSON(data []byte) error {
	if id, err := strconv.Atoi(string(data)); err == nil {
		u.ID = id
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	type plain ReservationUser
	return json.Unmarshal(data, (*plain)(u))
}

type Reservation struct {
	ID        int              `json:"id"`
	Room      *Room            `json:"room"`
	User      *ReservationUser `json:"user,omitempty"`
	Date      string           `json:"date"`
	StartTime string           `json:"start_time"`
	EndTime   string           `json:"end_time"`
	Status    string           `json:"status,omitempty"`
}

func (r Reservation) RoomName() string {
	if r.Room == nil || r.Room.Name == "" {
		return "Unknown Room"
	}
	return r.Room.Name
}

type ReservationRequest struct {
	RoomID    int    `json:"room_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	// set by admins reserving on behalf of someone else
	UserID int `json:"user,omitempty"`
}

func (r ReservationRequest) Validate() error {
	if r.RoomID <= 0 {
		return fmt.Errorf("room is required")
	}
	if r.Date == "" || r.StartTime == "" || r.EndTime == "" {
		return fmt.Errorf("date, start time and end time are required")
	}
	return nil
}

type Notification struct {
	ID        int    `json:"id"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}
