package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"habita/internal/app/commands"
	"habita/internal/app/dto"
	"habita/internal/app/handlers/reservations"
	"habita/internal/app/queries"
	"habita/internal/domain/shared/daterange"
	"habita/internal/domain/shared/fault"
)

type ReservationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createReservationRequest struct {
	UserID          string  `json:"user_id"`
	PropertyID      string  `json:"property_id"`
	CheckIn         string  `json:"checkin"`
	CheckOut        string  `json:"checkout"`
	GuestCount      int     `json:"guest_count"`
	DiscountPercent float64 `json:"discount_percent"`
	Comment         string  `json:"comment"`
}

type updateReservationRequest struct {
	PropertyID      *string  `json:"property_id"`
	UserID          *string  `json:"user_id"`
	CheckIn         *string  `json:"checkin"`
	CheckOut        *string  `json:"checkout"`
	GuestCount      *int     `json:"guest_count"`
	DiscountPercent *float64 `json:"discount_percent"`
	Comment         *string  `json:"comment"`
	Status          *string  `json:"status"`
	PaymentStatus   *string  `json:"payment_status"`
}

type transitionStatusRequest struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

func (h *ReservationHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "", err)
		return
	}
	checkIn, err := parseDay("checkin", req.CheckIn)
	if err != nil {
		badRequest(c, "checkin", err)
		return
	}
	checkOut, err := parseDay("checkout", req.CheckOut)
	if err != nil {
		badRequest(c, "checkout", err)
		return
	}
	cmd := reservations.CreateReservationCommand{
		Actor:           actor,
		UserID:          strings.TrimSpace(req.UserID),
		PropertyID:      strings.TrimSpace(req.PropertyID),
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		GuestCount:      req.GuestCount,
		DiscountPercent: req.DiscountPercent,
		Comment:         req.Comment,
		RequestKey:      strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	}
	result, err := commands.Dispatch[reservations.CreateReservationCommand, *dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *ReservationHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	q := reservations.ListReservationsQuery{
		Actor:      actor,
		Status:     strings.TrimSpace(c.Query("status")),
		PropertyID: strings.TrimSpace(c.Query("property_id")),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit", err)
			return
		}
		q.Limit = limit
	}
	result, err := queries.Ask[reservations.ListReservationsQuery, dto.ReservationCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReservationHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	q := reservations.GetReservationQuery{Actor: actor, ReservationID: c.Param("id")}
	result, err := queries.Ask[reservations.GetReservationQuery, dto.Reservation](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReservationHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req updateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "", err)
		return
	}
	patch := reservations.Patch{
		PropertyID:      req.PropertyID,
		UserID:          req.UserID,
		GuestCount:      req.GuestCount,
		DiscountPercent: req.DiscountPercent,
		Comment:         req.Comment,
		Status:          req.Status,
		PaymentStatus:   req.PaymentStatus,
	}
	if req.CheckIn != nil {
		day, err := parseDay("checkin", *req.CheckIn)
		if err != nil {
			badRequest(c, "checkin", err)
			return
		}
		patch.CheckIn = &day
	}
	if req.CheckOut != nil {
		day, err := parseDay("checkout", *req.CheckOut)
		if err != nil {
			badRequest(c, "checkout", err)
			return
		}
		patch.CheckOut = &day
	}
	cmd := reservations.UpdateReservationCommand{Actor: actor, ReservationID: c.Param("id"), Patch: patch}
	result, err := commands.Dispatch[reservations.UpdateReservationCommand, *dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReservationHandler) TransitionStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req transitionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "", err)
		return
	}
	cmd := reservations.TransitionStatusCommand{
		Actor:         actor,
		ReservationID: c.Param("id"),
		Status:        strings.TrimSpace(req.Status),
		PaymentStatus: strings.TrimSpace(req.PaymentStatus),
	}
	result, err := commands.Dispatch[reservations.TransitionStatusCommand, *dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReservationHandler) OccupiedDates(c *gin.Context) {
	q := reservations.GetOccupiedDatesQuery{PropertyID: c.Param("id")}
	result, err := queries.Ask[reservations.GetOccupiedDatesQuery, dto.OccupiedDates](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReservationHandler) RebuildAvailability(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	cmd := reservations.RebuildAvailabilityCommand{Actor: actor, PropertyID: c.Param("id")}
	result, err := commands.Dispatch[reservations.RebuildAvailabilityCommand, *dto.RebuildResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseDay(field, value string) (time.Time, error) {
	day, err := daterange.ParseDay(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fault.Validation(field, err)
	}
	return day, nil
}
