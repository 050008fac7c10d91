package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"courtbook/internal/export"
	"courtbook/internal/interval"
	"courtbook/internal/models"
	"courtbook/internal/service"
)

type reserveRequest struct {
	ResourceID  int64         `json:"resource_id"`
	Date        string        `json:"date"`
	Start       string        `json:"start"`
	End         string        `json:"end"`
	Renter      models.Renter `json:"renter"`
	AccessToken string        `json:"access_token,omitempty"`
}

type rescheduleRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type paymentRequest struct {
	Status models.PaymentStatus `json:"status"`
	Method *string              `json:"method,omitempty"`
}

type lanesResponse struct {
	Date         string                          `json:"date"`
	Reservations []reservationWithLane           `json:"reservations"`
	Lanes        map[int64]models.LaneAssignment `json:"lanes"`
}

type reservationWithLane struct {
	models.Reservation
	Lane       *int `json:"lane,omitempty"`
	TotalLanes int  `json:"total_lanes,omitempty"`
}

// handleSlots returns the evaluated slots of a day.
// GET /api/v1/resources/{id}/slots?date=YYYY-MM-DD[&public=1]
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	id, date, err := resourceAndDate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var out []models.Slot
	if public, _ := strconv.ParseBool(r.URL.Query().Get("public")); public {
		out, err = s.engine.PublicSlots(r.Context(), id, date)
	} else {
		out, err = s.engine.EvaluateSlots(r.Context(), id, date)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []models.Slot{}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAvailability checks one interval.
// GET /api/v1/resources/{id}/availability?date=YYYY-MM-DD&start=HH:MM&end=HH:MM
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, date, err := resourceAndDate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	start, end, err := parseInterval(date, q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := s.engine.CheckInterval(r.Context(), id, date, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleDurations lists the booking lengths available from one slot start.
// GET /api/v1/resources/{id}/durations?date=YYYY-MM-DD&start=HH:MM
func (s *HTTPServer) handleDurations(w http.ResponseWriter, r *http.Request) {
	id, date, err := resourceAndDate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	raw := r.URL.Query().Get("start")
	if raw == "" {
		writeError(w, fmt.Errorf("%w: start is required", errBadRequest))
		return
	}
	start, err := interval.OnDate(date, raw)
	if err != nil {
		writeError(w, err)
		return
	}

	options, err := s.engine.DurationOptions(r.Context(), id, date, start)
	if err != nil {
		writeError(w, err)
		return
	}
	if options == nil {
		options = []service.DurationOption{}
	}
	writeJSON(w, http.StatusOK, options)
}

// GET /api/v1/resources/{id}/lanes?date=YYYY-MM-DD
func (s *HTTPServer) handleLanes(w http.ResponseWriter, r *http.Request) {
	id, date, err := resourceAndDate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.engine.DayView(r.Context(), id, date)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := lanesResponse{
		Date:         date.Format(interval.DateLayout),
		Reservations: make([]reservationWithLane, 0, len(view.Reservations)),
		Lanes:        view.Lanes,
	}
	for _, res := range view.Reservations {
		item := reservationWithLane{Reservation: withoutTokens(res)}
		if a, ok := view.Lanes[res.ID]; ok {
			lane := a.Lane
			item.Lane = &lane
			item.TotalLanes = a.TotalLanes
		}
		resp.Reservations = append(resp.Reservations, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExport streams the day as an XLSX workbook.
// GET /api/v1/resources/{id}/export?date=YYYY-MM-DD
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	id, date, err := resourceAndDate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.engine.DayView(r.Context(), id, date)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteDaySheet(&buf, view.Resource, date, view.Reservations, view.Lanes); err != nil {
		s.logger.Error().Err(err).Int64("resource_id", id).Msg("export day sheet failed")
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("resource-%d-%s.xlsx", id, date.Format(interval.DateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// POST /api/v1/reservations
func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ResourceID <= 0 {
		writeError(w, fmt.Errorf("%w: resource_id is required", errBadRequest))
		return
	}
	date, err := interval.ParseDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	start, end, err := parseInterval(date, req.Start, req.End)
	if err != nil {
		writeError(w, err)
		return
	}

	access := req.AccessToken
	if access == "" {
		access = r.Header.Get(AccessTokenHeader)
	}

	created, err := s.engine.Reserve(r.Context(), service.ReserveInput{
		ResourceID:  req.ResourceID,
		Date:        date,
		Start:       start,
		End:         end,
		Renter:      req.Renter,
		AccessToken: access,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GET /api/v1/reservations/{id}
func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.engine.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withoutTokens(*res))
}

// POST /api/v1/reservations/{id}/cancel
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.engine.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	res.Reservation = withoutTokens(res.Reservation)
	writeJSON(w, http.StatusOK, res)
}

// POST /api/v1/reservations/{id}/reschedule
func (s *HTTPServer) handleReschedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req rescheduleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	date, err := interval.ParseDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	start, end, err := parseInterval(date, req.Start, req.End)
	if err != nil {
		writeError(w, err)
		return
	}

	moved, err := s.engine.Reschedule(r.Context(), id, date, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withoutTokens(*moved))
}

// POST /api/v1/reservations/{id}/payment
func (s *HTTPServer) handlePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req paymentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !req.Status.Valid() {
		writeError(w, fmt.Errorf("%w: unknown payment status %q", errBadRequest, req.Status))
		return
	}

	res, err := s.engine.SetPaymentStatus(r.Context(), id, req.Status, req.Method)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withoutTokens(*res))
}

// GET /api/v1/track/{token}
func (s *HTTPServer) handleTrack(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Lookup(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withoutTokens(*res))
}

// GET /api/v1/my-reservations with the X-Access-Token header.
func (s *HTTPServer) handleMyReservations(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get(AccessTokenHeader))
	if token == "" {
		writeError(w, fmt.Errorf("%w: %s header is required", errBadRequest, AccessTokenHeader))
		return
	}
	list, err := s.engine.MyReservations(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Reservation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// withoutTokens hides a renter's tokens. They leave the service only in the
// Reserve response and in access-token lookups; everything keyed by a
// sequential id or a date must not reveal them.
func withoutTokens(res models.Reservation) models.Reservation {
	res.TrackingToken = ""
	res.AccessToken = ""
	return res
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, r.PathValue("id"))
	}
	return id, nil
}

func resourceAndDate(r *http.Request) (int64, time.Time, error) {
	id, err := pathID(r)
	if err != nil {
		return 0, time.Time{}, err
	}
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return 0, time.Time{}, fmt.Errorf("%w: date is required", errBadRequest)
	}
	date, err := interval.ParseDate(raw)
	if err != nil {
		return 0, time.Time{}, err
	}
	return id, date, nil
}

func parseInterval(date time.Time, start, end string) (time.Time, time.Time, error) {
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start and end are required", errBadRequest)
	}
	from, err := interval.OnDate(date, start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := interval.OnDate(date, end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
