package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/sweeper"
)

type sweepResponse struct {
	Results []sweeper.Result `json:"results"`
	Failed  int              `json:"failed"`
}

func (s *Server) sweepHandler(c *gin.Context) {
	results := s.sweeper.Sweep(c.Request.Context())

	resp := sweepResponse{Results: results, Failed: 0}

	for _, r := range results {
		if r.Err != nil {
			resp.Failed++
		}
	}

	if resp.Results == nil {
		resp.Results = []sweeper.Result{}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) listBufferHandler(c *gin.Context) {
	status := booking.BufferStatus(c.Query("status"))

	switch status {
	case "", booking.BufferPendingResolution, booking.BufferResolved:
	default:
		s.writeError(c, badRequest("unknown status %q", status))

		return
	}

	entries, err := s.bookings.ListBufferEntries(c.Request.Context(), status)
	if err != nil {
		s.writeError(c, err)

		return
	}

	if entries == nil {
		entries = []*booking.BufferEntry{}
	}

	c.JSON(http.StatusOK, entries)
}

func (s *Server) resolveBufferHandler(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)

		return
	}

	var input booking.ResolveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.writeError(c, badRequest("%v", err))

		return
	}

	if input.ResolvedBy == "" {
		input.ResolvedBy = c.GetString(staffKey)
	}

	entry, err := s.bookings.ResolveBufferEntry(c.Request.Context(), id, input)
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, entry)
}

func (s *Server) listBlocksHandler(c *gin.Context) {
	var q stayParams
	if err := c.ShouldBindQuery(&q); err != nil {
		s.writeError(c, badRequest("%v", err))

		return
	}

	key, stay, err := q.parse()
	if err != nil {
		s.writeError(c, err)

		return
	}

	blocks, err := s.inventory.ListBlocks(c.Request.Context(), key, stay)
	if err != nil {
		s.writeError(c, err)

		return
	}

	if blocks == nil {
		blocks = []*inventory.Block{}
	}

	c.JSON(http.StatusOK, blocks)
}

type createBlockRequest struct {
	PropertyID string `json:"property_id"`
	RoomTypeID string `json:"room_type_id"`
	Date       string `json:"date"`
	Rooms      int    `json:"rooms"`
	Reason     string `json:"reason"`
	ExpiresAt  string `json:"expires_at"`
}

func (s *Server) createBlockHandler(c *gin.Context) {
	var req createBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("%v", err))

		return
	}

	if req.PropertyID == "" || req.RoomTypeID == "" {
		s.writeError(c, badRequest("property_id and room_type_id are required"))

		return
	}

	date, err := inventory.ParseDate(req.Date)
	if err != nil {
		s.writeError(c, badRequest("date must be YYYY-MM-DD"))

		return
	}

	expiresAt, err := parseOptionalTime(req.ExpiresAt)
	if err != nil {
		s.writeError(c, err)

		return
	}

	block, err := s.inventory.CreateBlock(c.Request.Context(), inventory.BlockInput{
		Key:       inventory.RoomTypeKey{PropertyID: req.PropertyID, RoomTypeID: req.RoomTypeID},
		Date:      date,
		Rooms:     req.Rooms,
		Reason:    req.Reason,
		BlockedBy: c.GetString(staffKey),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusCreated, block)
}

func (s *Server) releaseBlockHandler(c *gin.Context) {
	block, err := s.inventory.ReleaseBlock(c.Request.Context(), c.Param("reference"))
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, block)
}

func (s *Server) reportHandler(c *gin.Context) {
	var q stayParams
	if err := c.ShouldBindQuery(&q); err != nil {
		s.writeError(c, badRequest("%v", err))

		return
	}

	key, stay, err := q.parseWithRoomType()
	if err != nil {
		s.writeError(c, err)

		return
	}

	rows, err := s.inventory.Report(c.Request.Context(), key, stay)
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, rows)
}

type priceRequest struct {
	stayParams
	Price *float64 `json:"price"`
}

type changedResponse struct {
	Nights int `json:"nights"`
}

func (s *Server) openInventoryHandler(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("%v", err))

		return
	}

	key, stay, err := req.parseWithRoomType()
	if err != nil {
		s.writeError(c, err)

		return
	}

	if req.Price != nil && *req.Price < 0 {
		s.writeError(c, badRequest("price must not be negative"))

		return
	}

	created, err := s.inventory.Open(c.Request.Context(), key, stay, req.Price)
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusCreated, changedResponse{Nights: created})
}

func (s *Server) repriceHandler(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("%v", err))

		return
	}

	key, stay, err := req.parseWithRoomType()
	if err != nil {
		s.writeError(c, err)

		return
	}

	if req.Price == nil || *req.Price < 0 {
		s.writeError(c, badRequest("price must be set and not negative"))

		return
	}

	updated, err := s.inventory.Reprice(c.Request.Context(), key, stay, *req.Price)
	if err != nil {
		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, changedResponse{Nights: updated})
}
