package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
)

const idempotencyHeader = "Idempotency-Key"

func (s *Server) addRoutes(r *gin.Engine, rateLimit gin.HandlerFunc) {
	r.GET(s.conf.LivenessEndpoint, s.livenessHandler)

	api := r.Group("/api/v1", rateLimit)
	api.GET("/availability", s.availabilityHandler)
	api.POST("/bookings", s.createBookingHandler)
	api.GET("/bookings/:reference", s.getBookingHandler)
	api.POST("/bookings/:reference/payments", s.paymentHandler)
	api.GET("/bookings/:reference/cancellation", s.cancellationQuoteHandler)
	api.POST("/bookings/:reference/cancellation", s.cancelHandler)

	admin := api.Group("/admin", s.staffAuthMiddleware())
	admin.POST("/sweeps", s.sweepHandler)
	admin.GET("/buffer-entries", s.listBufferHandler)
	admin.POST("/buffer-entries/:id/resolution", s.resolveBufferHandler)
	admin.GET("/blocks", s.listBlocksHandler)
	admin.POST("/blocks", s.createBlockHandler)
	admin.DELETE("/blocks/:reference", s.releaseBlockHandler)
	admin.GET("/inventory", s.reportHandler)
	admin.POST("/inventory", s.openInventoryHandler)
	admin.PUT("/inventory/price", s.repriceHandler)
}

func (s *Server) livenessHandler(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

type stayParams struct {
	PropertyID string `form:"property_id" json:"property_id"`
	RoomTypeID string `form:"room_type_id" json:"room_type_id"`
	CheckIn    string `form:"check_in" json:"check_in"`
	CheckOut   string `form:"check_out" json:"check_out"`
}

func (p *stayParams) key() inventory.RoomTypeKey {
	return inventory.RoomTypeKey{PropertyID: p.PropertyID, RoomTypeID: p.RoomTypeID}
}

func (p *stayParams) parse() (inventory.RoomTypeKey, inventory.Stay, error) {
	if p.PropertyID == "" {
		return inventory.RoomTypeKey{}, inventory.Stay{}, badRequest("property_id is required")
	}

	checkIn, err := inventory.ParseDate(p.CheckIn)
	if err != nil {
		return inventory.RoomTypeKey{}, inventory.Stay{}, badRequest("check_in must be YYYY-MM-DD")
	}

	checkOut, err := inventory.ParseDate(p.CheckOut)
	if err != nil {
		return inventory.RoomTypeKey{}, inventory.Stay{}, badRequest("check_out must be YYYY-MM-DD")
	}

	if !checkOut.After(checkIn) {
		return inventory.RoomTypeKey{}, inventory.Stay{}, inventory.ErrInvalidStay
	}

	return p.key(), inventory.NewStay(checkIn, checkOut), nil
}

func (p *stayParams) parseWithRoomType() (inventory.RoomTypeKey, inventory.Stay, error) {
	if p.RoomTypeID == "" {
		return inventory.RoomTypeKey{}, inventory.Stay{}, badRequest("room_type_id is required")
	}

	return p.parse()
}

type availabilityQuery struct {
	stayParams
	Rooms int `form:"rooms"`
}

func (s *Server) availabilityHandler(c *gin.Context) {
	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.writeError(c, badRequest("%v", err))

		return
	}

	key, stay, err := q.parseWithRoomType()
	if err != nil {
		s.writeError(c, err)

		return
	}

	if q.Rooms == 0 {
		q.Rooms = 1
	}

	res, err := s.inventory.Check(c.Request.Context(), inventory.Query{Key: key, Stay: stay, Rooms: q.Rooms})
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

type createBookingRequest struct {
	stayParams
	Rooms           int           `json:"rooms"`
	Guests          int           `json:"guests"`
	Guest           booking.Guest `json:"guest"`
	TotalPrice      float64       `json:"total_price"`
	SpecialRequests string        `json:"special_requests"`
}

func (s *Server) createBookingHandler(c *gin.Context) {
	idempotencyKey := c.GetHeader(idempotencyHeader)
	if len(idempotencyKey) > booking.MaxIdempotencyKeyLength {
		s.writeError(c, badRequest("%s is longer than %d characters", idempotencyHeader, booking.MaxIdempotencyKeyLength))

		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("%v", err))

		return
	}

	key, stay, err := req.parseWithRoomType()
	if err != nil {
		s.writeError(c, err)

		return
	}

	ctx := booking.NewContextWithIdempotencyKey(c.Request.Context(), idempotencyKey)

	out, err := s.bookings.CreateBooking(ctx, &booking.CreateInput{
		PropertyID:      key.PropertyID,
		RoomTypeID:      key.RoomTypeID,
		CheckIn:         stay.CheckIn,
		CheckOut:        stay.CheckOut,
		Rooms:           req.Rooms,
		Guests:          req.Guests,
		Guest:           req.Guest,
		TotalPrice:      req.TotalPrice,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		s.writeError(c, err)

		return
	}

	status := http.StatusCreated
	if out.Replayed {
		status = http.StatusOK
	}

	c.JSON(status, out)
}

func (s *Server) getBookingHandler(c *gin.Context) {
	details, err := s.bookings.GetBooking(c.Request.Context(), c.Param("reference"))
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, details)
}

func (s *Server) paymentHandler(c *gin.Context) {
	var input booking.PaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.writeError(c, badRequest("%v", err))

		return
	}

	res, err := s.bookings.ConfirmPayment(c.Request.Context(), c.Param("reference"), input)
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) cancellationQuoteHandler(c *gin.Context) {
	q, err := s.bookings.QuoteCancellation(c.Request.Context(), c.Param("reference"))
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, q)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancelHandler(c *gin.Context) {
	var req cancelRequest

	// The body is optional.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, badRequest("%v", err))

			return
		}
	}

	res, err := s.bookings.Cancel(c.Request.Context(), c.Param("reference"), req.Reason)
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("id must be a positive integer")
	}

	return id, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil //nolint:nilnil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, badRequest("expires_at must be RFC 3339")
	}

	return &t, nil
}
