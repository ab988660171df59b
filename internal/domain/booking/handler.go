package booking

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"propertybook/internal/domain/payment"
	"propertybook/internal/domain/rate"
	"propertybook/internal/pkg/response"
	"propertybook/internal/pkg/validator"
)

// Handler exposes the booking workflow over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateBooking handles POST /api/v1/bookings
// @Summary Create booking
// @Description Guest books a property for a date range. The booking starts pending verification.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body CreateBookingRequest true "Booking data"
// @Success 201 {object} response.Response{data=BookingResponse}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /bookings [post]
func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid booking request", errs)
		return
	}

	checkIn, checkOut, ok := h.parseStay(c, req.CheckIn, req.CheckOut)
	if !ok {
		return
	}

	details := make([]GuestDetail, 0, len(req.GuestDetails))
	for _, d := range req.GuestDetails {
		details = append(details, GuestDetail(d))
	}

	b, err := h.service.CreateBooking(c.Request.Context(), CreateBookingInput{
		PropertyID:   req.PropertyID,
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		Guests:       req.Guests.toRate(),
		GuestDetails: details,
		DPPercentage: req.DPPercentage,
		Contact:      GuestContact{Name: req.GuestName, Email: req.GuestEmail, Phone: req.GuestPhone},
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, BookingResponse{Booking: b, Allowed: Allowed(b)})
}

// Quote handles POST /api/v1/quotes
// @Summary Quote a stay
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body QuoteRequest true "Stay"
// @Success 200 {object} response.Response{data=rate.Breakdown}
// @Failure 422 {object} response.Response
// @Router /quotes [post]
func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid quote request", errs)
		return
	}
	checkIn, checkOut, ok := h.parseStay(c, req.CheckIn, req.CheckOut)
	if !ok {
		return
	}

	b, err := h.service.CalculateRate(c.Request.Context(), req.PropertyID, checkIn, checkOut, req.Guests.toRate())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// GetByNumber handles GET /api/v1/bookings/:number
// @Summary Booking status for the guest
// @Tags Bookings
// @Produce json
// @Param number path string true "Booking number"
// @Success 200 {object} response.Response{data=BookingResponse}
// @Failure 404 {object} response.Response
// @Router /bookings/{number} [get]
func (h *Handler) GetByNumber(c *gin.Context) {
	b, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.writeBooking(c, b)
}

// SubmitPayment handles POST /api/v1/bookings/:number/payments
// @Summary Submit payment proof
// @Tags Bookings
// @Accept json
// @Produce json
// @Param number path string true "Booking number"
// @Param request body SubmitPaymentRequest true "Payment"
// @Success 201 {object} response.Response{data=payment.Payment}
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /bookings/{number}/payments [post]
func (h *Handler) SubmitPayment(c *gin.Context) {
	var req SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid payment", errs)
		return
	}

	b, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := h.service.SubmitPayment(c.Request.Context(), b.ID, req.Amount, payment.Method(req.Method), req.ProofRef)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, p)
}

// ListBookings handles GET /api/v1/admin/bookings
// @Summary List bookings
// @Tags Admin Bookings
// @Produce json
// @Security BearerAuth
// @Param status query string false "Booking status"
// @Param property_id query int false "Property"
// @Param from query string false "Stay overlaps from (YYYY-MM-DD)"
// @Param to query string false "Stay overlaps to (YYYY-MM-DD)"
// @Param q query string false "Booking number, guest name or email"
// @Param limit query int false "Limit" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} response.Response{data=ListResponse}
// @Router /admin/bookings [get]
func (h *Handler) ListBookings(c *gin.Context) {
	f := ListFilter{
		Status: Status(c.Query("status")),
		Search: c.Query("q"),
		Limit:  50,
	}
	if v := c.Query("property_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.CustomError(c, http.StatusBadRequest, "INVALID_PROPERTY_ID", "Invalid property ID")
			return
		}
		f.PropertyID = id
	}
	cal := h.service.Calendar()
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		if v := c.Query(p.key); v != "" {
			d, err := cal.ParseDate(v)
			if err != nil {
				response.CustomError(c, http.StatusBadRequest, "INVALID_DATE", "Dates must be YYYY-MM-DD")
				return
			}
			*p.dst = &d
		}
	}
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			f.Limit = v
		}
	}
	if o := c.Query("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			f.Offset = v
		}
	}

	list, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []Booking{}
	}
	response.Success(c, http.StatusOK, ListResponse{Bookings: list, Total: total, Limit: f.Limit, Offset: f.Offset})
}

// GetBooking handles GET /api/v1/admin/bookings/:id
// @Summary Booking details with payments
// @Tags Admin Bookings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Booking ID"
// @Success 200 {object} response.Response{data=BookingResponse}
// @Failure 404 {object} response.Response
// @Router /admin/bookings/{id} [get]
func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	h.writeBooking(c, b)
}

// History handles GET /api/v1/admin/bookings/:id/history
// @Summary Workflow history
// @Tags Admin Bookings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Booking ID"
// @Success 200 {object} response.Response{data=[]WorkflowEntry}
// @Failure 404 {object} response.Response
// @Router /admin/bookings/{id}/history [get]
func (h *Handler) History(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

// Verify handles POST /api/v1/admin/bookings/:id/verify
// @Summary Approve booking
// @Tags Admin Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Booking ID"
// @Param request body VerifyBookingRequest false "Notes"
// @Success 200 {object} response.Response{data=Booking}
// @Failure 409 {object} response.Response
// @Router /admin/bookings/{id}/verify [post]
func (h *Handler) Verify(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req VerifyBookingRequest
	if !bindOptional(c, &req) {
		return
	}
	b, err := h.service.VerifyBooking(c.Request.Context(), id, c.GetInt64("actor_id"), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// Reject handles POST /api/v1/admin/bookings/:id/reject
// @Summary Reject booking
// @Tags Admin Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Booking ID"
// @Param request body ReasonRequest true "Reason"
// @Success 200 {object} response.Response{data=Booking}
// @Failure 409 {object} response.Response
// @Router /admin/bookings/{id}/reject [post]
func (h *Handler) Reject(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	req, ok := bindReason(c)
	if !ok {
		return
	}
	b, err := h.service.RejectBooking(c.Request.Context(), id, c.GetInt64("actor_id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// CheckIn handles POST /api/v1/admin/bookings/:id/check-in
// @Summary Check guest in
// @Tags Admin Bookings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Booking ID"
// @Success 200 {object} response.Response{data=Booking}
// @Failure 409 {object} response.Response
// @Router /admin/bookings/{id}/check-in [post]
func (h *Handler) CheckIn(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.CheckIn(c.Request.Context(), id, c.GetInt64("actor_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// CheckOut handles POST /api/v1/admin/bookings/:id/check-out
// @Summary Check guest out
// @Tags Admin Bookings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Booking ID"
// @Success 200 {object} response.Response{data=Booking}
// @Failure 409 {object} response.Response
// @Router /admin/bookings/{id}/check-out [post]
func (h *Handler) CheckOut(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.CheckOut(c.Request.Context(), id, c.GetInt64("actor_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// Cancel handles POST /api/v1/admin/bookings/:id/cancel
// @Summary Cancel booking
// @Tags Admin Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Booking ID"
// @Param request body ReasonRequest true "Reason"
// @Success 200 {object} response.Response{data=Booking}
// @Failure 409 {object} response.Response
// @Router /admin/bookings/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	req, ok := bindReason(c)
	if !ok {
		return
	}
	b, err := h.service.CancelBooking(c.Request.Context(), id, c.GetInt64("actor_id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// VerifyPayment handles POST /api/v1/admin/payments/:id/verify
// @Summary Verify payment
// @Tags Admin Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Response{data=payment.Payment}
// @Failure 409 {object} response.Response
// @Router /admin/payments/{id}/verify [post]
func (h *Handler) VerifyPayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}
	p, err := h.service.VerifyPayment(c.Request.Context(), id, c.GetInt64("actor_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

// RejectPayment handles POST /api/v1/admin/payments/:id/reject
// @Summary Reject payment
// @Tags Admin Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Param request body ReasonRequest true "Reason"
// @Success 200 {object} response.Response{data=payment.Payment}
// @Failure 409 {object} response.Response
// @Router /admin/payments/{id}/reject [post]
func (h *Handler) RejectPayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}
	req, ok := bindReason(c)
	if !ok {
		return
	}
	p, err := h.service.RejectPayment(c.Request.Context(), id, c.GetInt64("actor_id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

// PropertyCalendar handles GET /api/v1/admin/properties/:id/availability
// @Summary Bookings holding nights in a window
// @Tags Admin Bookings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Property ID"
// @Param from query string true "YYYY-MM-DD"
// @Param to query string true "YYYY-MM-DD"
// @Success 200 {object} response.Response{data=CalendarResponse}
// @Router /admin/properties/{id}/availability [get]
func (h *Handler) PropertyCalendar(c *gin.Context) {
	propertyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_ID", "Invalid property ID")
		return
	}
	from, to, ok := h.parseStay(c, c.Query("from"), c.Query("to"))
	if !ok {
		return
	}
	spans, err := h.service.PropertyCalendar(c.Request.Context(), propertyID, from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	cal := h.service.Calendar()
	response.Success(c, http.StatusOK, CalendarResponse{
		PropertyID: propertyID,
		From:       cal.Format(from),
		To:         cal.Format(to),
		Available:  len(spans) == 0,
		Bookings:   spans,
	})
}

func (h *Handler) writeBooking(c *gin.Context, b *Booking) {
	payments, summary, err := h.service.Payments(c.Request.Context(), b.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, BookingResponse{
		Booking:  b,
		Payments: payments,
		Summary: &PaymentSummary{
			Summary:       summary,
			PendingAmount: payment.PendingAmount(b.TotalAmount, summary.Verified),
		},
		Allowed: Allowed(b),
	})
}

func (h *Handler) parseStay(c *gin.Context, in, out string) (time.Time, time.Time, bool) {
	cal := h.service.Calendar()
	checkIn, err1 := cal.ParseDate(in)
	checkOut, err2 := cal.ParseDate(out)
	if err1 != nil || err2 != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_DATE", "Dates must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	return checkIn, checkOut, true
}

func bookingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.CustomError(c, http.StatusBadRequest, "INVALID_ID", "Invalid booking ID")
		return 0, false
	}
	return id, true
}

func paymentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID")
		return uuid.Nil, false
	}
	return id, true
}

func bindReason(c *gin.Context) (ReasonRequest, bool) {
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return req, false
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Reason is required", errs)
		return req, false
	}
	return req, true
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return false
	}
	if errs := validator.Validate(dst); errs != nil {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request", errs)
		return false
	}
	return true
}

var errorStatus = []struct {
	target error
	status int
	code   string
}{
	{ErrValidation, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{rate.ErrInvalidGuests, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{ErrInvalidDateRange, http.StatusUnprocessableEntity, "INVALID_DATE_RANGE"},
	{ErrInvalidDownPayment, http.StatusUnprocessableEntity, "INVALID_DOWN_PAYMENT"},
	{ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{ErrNotAvailable, http.StatusConflict, "NOT_AVAILABLE"},
	{ErrMinimumStay, http.StatusConflict, "MINIMUM_STAY"},
	{ErrCapacityExceeded, http.StatusConflict, "CAPACITY_EXCEEDED"},
	{ErrAmountExceedsPending, http.StatusConflict, "AMOUNT_EXCEEDS_PENDING"},
	{ErrOutstandingBalance, http.StatusConflict, "OUTSTANDING_BALANCE"},
	{ErrBookingNotFound, http.StatusNotFound, "BOOKING_NOT_FOUND"},
	{ErrPaymentNotFound, http.StatusNotFound, "PAYMENT_NOT_FOUND"},
	{ErrPropertyNotFound, http.StatusNotFound, "PROPERTY_NOT_FOUND"},
	{ErrStorage, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
}

func writeError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.target) {
			msg := err.Error()
			if e.target == ErrStorage {
				msg = "Temporary storage failure, retry later"
			}
			_ = c.Error(err)
			response.Error(c, e.status, e.code, strings.TrimSpace(msg))
			return
		}
	}
	_ = c.Error(err)
	response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}
