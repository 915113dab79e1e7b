package api

import (
	"net/http"

	resdto "expertbooking/internal/handler/dto/response"
	"expertbooking/internal/usecase/commands"

	"github.com/gin-gonic/gin"
)

type ReaperHandler struct {
	reaperCommands commands.ReaperCommands
}

func NewReaperHandler(reaperCommands commands.ReaperCommands) *ReaperHandler {
	return &ReaperHandler{
		reaperCommands: reaperCommands,
	}
}

// @Summary Release expired holds
// @Description Run the expiry sweep immediately instead of waiting for the background interval
// @Tags internal
// @Produce json
// @Success 200 {object} resdto.ReaperRunResponse
// @Failure 500 {object} map[string]string
// @Router /internal/reaper/run [post]
func (h *ReaperHandler) Run(c *gin.Context) {
	released, err := h.reaperCommands.ReleaseExpired(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}
	c.JSON(http.StatusOK, resdto.ReaperRunResponse{Released: released})
}
