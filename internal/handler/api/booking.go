package api

import (
	"errors"
	"net/http"

	reqdto "expertbooking/internal/handler/dto/request"
	resdto "expertbooking/internal/handler/dto/response"
	"expertbooking/internal/handler/middleware"
	"expertbooking/internal/usecase/commands"
	"expertbooking/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingHandler struct {
	bookingCommands commands.BookingCommands
	bookingQueries  queries.BookingQueries
}

func NewBookingHandler(bookingCommands commands.BookingCommands, bookingQueries queries.BookingQueries) *BookingHandler {
	return &BookingHandler{
		bookingCommands: bookingCommands,
		bookingQueries:  bookingQueries,
	}
}

// @Summary Create booking intent
// @Description Open a payment session for an appointment slot, holding the slot when delayed methods apply
// @Tags bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Idempotency key for duplicate prevention"
// @Param request body reqdto.CreateBookingIntentRequest true "Booking intent request"
// @Success 201 {object} resdto.BookingIntentResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /booking-intents [post]
func (h *BookingHandler) CreateBookingIntent(c *gin.Context) {
	holder, ok := middleware.GetHolder(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	idempotencyKey, err := getIdempotencyKey(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	var req reqdto.CreateBookingIntentRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	result, err := h.bookingCommands.CreateIntent(c.Request.Context(), req, holder, idempotencyKey)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrExpertNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Expert not found",
			})
		case errors.Is(err, commands.ErrExpertInactive):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Expert is not accepting bookings",
			})
		case errors.Is(err, commands.ErrInvalidSchedule):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Appointment start must be in the future",
			})
		case errors.Is(err, commands.ErrSlotConflict):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Slot is already reserved or booked",
			})
		case errors.Is(err, commands.ErrIdempotencyKeyReused):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Idempotency key reused with a different request",
			})
		case errors.Is(err, commands.ErrIdempotencyInProgress):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Request with this idempotency key is being processed",
			})
		case errors.Is(err, commands.ErrIdempotencyUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Service temporarily unavailable, retry with the same idempotency key",
			})
		case errors.Is(err, commands.ErrPaymentProviderFailed):
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Payment provider rejected the request",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	if result.IsReplayed {
		c.JSON(http.StatusOK, resdto.FromBookingIntentResult(result))
		return
	}
	c.JSON(http.StatusCreated, resdto.FromBookingIntentResult(result))
}

// @Summary Get booking intent status
// @Description Poll the state of a payment session and its hold or meeting
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Payment session ID"
// @Success 200 {object} resdto.IntentStatusResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /booking-intents/{sessionId} [get]
func (h *BookingHandler) GetBookingIntent(c *gin.Context) {
	holder, ok := middleware.GetHolder(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	sessionID := c.Param("sessionId")
	view, err := h.bookingQueries.GetIntentStatus(c.Request.Context(), holder.ID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrIntentNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Booking intent not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromIntentStatusView(view))
}

// @Summary Get meeting
// @Description Get a confirmed meeting by ID
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Meeting ID"
// @Success 200 {object} resdto.MeetingResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /meetings/{id} [get]
func (h *BookingHandler) GetMeeting(c *gin.Context) {
	holder, ok := middleware.GetHolder(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid meeting ID format",
		})
		return
	}

	view, err := h.bookingQueries.GetMeeting(c.Request.Context(), holder.ID, id)
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrMeetingNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Meeting not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromMeetingView(view))
}

// @Summary List meetings
// @Description List the current client's meetings, newest first
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} resdto.MeetingResponse
// @Failure 401 {object} map[string]string
// @Router /meetings [get]
func (h *BookingHandler) ListMeetings(c *gin.Context) {
	holder, ok := middleware.GetHolder(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	views, err := h.bookingQueries.ListMeetings(c.Request.Context(), holder.ID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	response := make([]*resdto.MeetingResponse, len(views))
	for i, rm := range views {
		response[i] = resdto.FromMeetingView(rm)
	}
	c.JSON(http.StatusOK, response)
}

func getIdempotencyKey(c *gin.Context) (uuid.UUID, error) {
	keyStr := c.GetHeader("Idempotency-Key")
	if keyStr == "" {
		return uuid.Nil, errors.New("Idempotency-Key header is required")
	}

	key, err := uuid.Parse(keyStr)
	if err != nil {
		return uuid.Nil, errors.New("invalid idempotency key format")
	}

	return key, nil
}
