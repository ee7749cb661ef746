package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/2beens/confhub/internal/hubapi"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) handleRooms(w http.ResponseWriter, r *http.Request) {
	data := h.newPage(r, "Rooms")

	rooms, err := h.api.ListRooms(r.Context())
	if err != nil {
		log.Errorf("list rooms: %s", err)
		data.Error = hubapi.UserMessage(err, "Failed to load rooms")
		h.render(w, apiStatus(err), "rooms", data)
		return
	}

	data.Rooms = rooms
	h.render(w, http.StatusOK, "rooms", data)
}

func (h *Handler) handleReservations(w http.ResponseWriter, r *http.Request) {
	h.renderReservations(w, r, http.StatusOK, "")
}

func (h *Handler) renderReservations(w http.ResponseWriter, r *http.Request, statusCode int, formError string) {
	data := h.newPage(r, "My Reservations")
	data.Error = formError

	reservations, err := h.api.ListReservations(r.Context())
	if err != nil {
		if h.credentialRejected(w, r, err) {
			return
		}
		log.Errorf("list reservations: %s", err)
		data.Error = hubapi.UserMessage(err, "Failed to load reservations")
		h.render(w, apiStatus(err), "reservations", data)
		return
	}
	data.Reservations = reservations

	rooms, err := h.api.ListRooms(r.Context())
	if err != nil {
		log.Warnf("list rooms for reservation form: %s", err)
	}
	data.Rooms = rooms

	h.render(w, statusCode, "reservations", data)
}

// reservationFromForm reads the reservation fields shared by the create,
// edit and admin forms.
func reservationFromForm(r *http.Request) hubapi.ReservationRequest {
	roomID, _ := strconv.Atoi(r.Form.Get("room_id"))
	return hubapi.ReservationRequest{
		RoomID:    roomID,
		Date:      strings.TrimSpace(r.Form.Get("date")),
		StartTime: strings.TrimSpace(r.Form.Get("start_time")),
		EndTime:   strings.TrimSpace(r.Form.Get("end_time")),
	}
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("reserve failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	req := reservationFromForm(r)
	if err := req.Validate(); err != nil {
		h.renderReservations(w, r, http.StatusBadRequest, err.Error())
		return
	}

	reservation, err := h.api.CreateReservation(r.Context(), req)
	if err != nil {
		if h.credentialRejected(w, r, err) {
			return
		}
		log.Infof("create reservation failed: %s", err)
		h.renderReservations(w, r, apiStatus(err), hubapi.UserMessage(err, "Failed to create reservation"))
		return
	}

	log.Debugf("reservation %d created: room %d, %s %s-%s", reservation.ID, req.RoomID, req.Date, req.StartTime, req.EndTime)
	redirectWithNotice(w, r, "/reservations", "reserved")
}

func (h *Handler) handleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromVars(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		log.Errorf("update reservation %d failed, parse form error: %s", id, err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	req := reservationFromForm(r)
	if err := req.Validate(); err != nil {
		h.renderReservations(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.api.UpdateReservation(r.Context(), id, req); err != nil {
		if h.credentialRejected(w, r, err) {
			return
		}
		log.Infof("update reservation %d failed: %s", id, err)
		h.renderReservations(w, r, apiStatus(err), hubapi.UserMessage(err, "Failed to update reservation"))
		return
	}

	log.Debugf("reservation %d updated: room %d, %s %s-%s", id, req.RoomID, req.Date, req.StartTime, req.EndTime)
	redirectWithNotice(w, r, "/reservations", "updated")
}

func (h *Handler) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromVars(w, r)
	if !ok {
		return
	}

	if err := h.api.CancelReservation(r.Context(), id); err != nil {
		if h.credentialRejected(w, r, err) {
			return
		}
		log.Infof("cancel reservation %d failed: %s", id, err)
		h.renderReservations(w, r, apiStatus(err), hubapi.UserMessage(err, "Failed to cancel reservation"))
		return
	}

	redirectWithNotice(w, r, "/reservations", "cancelled")
}

func (h *Handler) handleAdmin(w http.ResponseWriter, r *http.Request) {
	h.renderAdmin(w, r, http.StatusOK, "")
}

func (h *Handler) renderAdmin(w http.ResponseWriter, r *http.Request, statusCode int, formError string) {
	data := h.newPage(r, "Admin")
	data.Error = formError

	ctx := r.Context()
	var err error
	if data.Rooms, err = h.api.ListRooms(ctx); err == nil {
		if data.Reservations, err = h.api.ListReservations(ctx); err == nil {
			data.Users, err = h.api.ListUsers(ctx)
		}
	}
	if err != nil {
		if h.credentialRejected(w, r, err) {
			return
		}
		log.Errorf("admin dashboard: %s", err)
		data.Error = hubapi.UserMessage(err, "Failed to load dashboard data")
		h.render(w, apiStatus(err), "admin", data)
		return
	}

	h.render(w, statusCode, "admin", data)
}

func (h *Handler) handleSaveRoom(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("save room failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	capacity, _ := strconv.Atoi(r.Form.Get("capacity"))
	req := hubapi.RoomRequest{
		Name:     strings.TrimSpace(r.Form.Get("name")),
		Location: strings.TrimSpace(r.Form.Get("location")),
		Capacity: capacity,
	}
	if err := req.Validate(); err != nil {
		h.renderAdmin(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var err error
	if idStr := r.Form.Get("id"); idStr != "" {
		id, convErr := strconv.Atoi(idStr)
		if convErr != nil {
			http.Error(w, "error, id NaN", http.StatusBadRequest)
			return
		}
		_, err = h.api.UpdateRoom(r.Context(), id, req)
	} else {
		_, err = h.api.CreateRoom(r.Context(), req)
	}
	if err != nil {
		if h.credentialRejected(w, r, err) {
			return
		}
		log.Infof("save room [%s] failed: %s", req.Name, err)
		h.renderAdmin(w, r, apiStatus(err), hubapi.UserMessage(err, "Failed to save room"))
		return
	}

	redirectWithNotice(w, r, "/admin", "room_saved")
}

// handleAdminReserve books a room on behalf of the selected user.
func (h *Handler) handleAdminReserve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("admin reserve failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	req := reservationFromForm(r)
	req.UserID, _ = strconv.Atoi(r.Form.Get("user"))
	if req.UserID <= 0 {
		h.renderAdmin(w, r, http.StatusBadRequest, "user is required")
		return
	}
	if err := req.Validate(); err != nil {
		h.renderAdmin(w, r, http.StatusBadRequest, err.Error())
		return
	}

	reservation, err := h.api.CreateReservation(r.Context(), req)
	if err != nil {
		if h.credentialRejected(w, r, err) {
			return
		}
		log.Infof("admin reserve for user %d failed: %s", req.UserID, err)
		h.renderAdmin(w, r, apiStatus(err), hubapi.UserMessage(err, "Failed to create reservation"))
		return
	}

	log.Infof("admin: reservation %d created for user %d", reservation.ID, req.UserID)
	redirectWithNotice(w, r, "/admin", "reserved")
}

func (h *Handler) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	h.adminDelete(w, r, h.api.DeleteRoom, "room_deleted", "Failed to delete room")
}

func (h *Handler) handleAdminCancelReservation(w http.ResponseWriter, r *http.Request) {
	h.adminDelete(w, r, h.api.CancelReservation, "cancelled", "Failed to cancel reservation")
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	h.adminDelete(w, r, h.api.DeleteUser, "user_deleted", "Failed to delete user")
}

func (h *Handler) adminDelete(
	w http.ResponseWriter,
	r *http.Request,
	remove func(ctx context.Context, id int) error,
	notice, failure string,
) {
	id, ok := idFromVars(w, r)
	if !ok {
		return
	}

	if err := remove(r.Context(), id); err != nil {
		if h.credentialRejected(w, r, err) {
			return
		}
		log.Infof("admin %s %d: %s", notice, id, err)
		h.renderAdmin(w, r, apiStatus(err), hubapi.UserMessage(err, failure))
		return
	}

	log.Infof("admin: %s %d", notice, id)
	redirectWithNotice(w, r, "/admin", notice)
}

func idFromVars(w http.ResponseWriter, r *http.Request) (int, bool) {
	idStr := mux.Vars(r)["id"]
	if idStr == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
