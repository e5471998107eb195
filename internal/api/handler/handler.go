package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/ideagraph/internal/api/middleware"
	"github.com/d60-Lab/ideagraph/internal/service"
	"github.com/d60-Lab/ideagraph/pkg/response"
)

// Handler 把引擎的逻辑调用映射到 HTTP
type Handler struct {
	relService service.RelationshipService
	toggles    *service.ToggleEngine
	agg        *service.AggregationEngine
	ideas      service.IdeaService
	chat       *service.ChatService
}

func NewHandler(
	relService service.RelationshipService,
	toggles *service.ToggleEngine,
	agg *service.AggregationEngine,
	ideas service.IdeaService,
	chat *service.ChatService,
) *Handler {
	return &Handler{relService: relService, toggles: toggles, agg: agg, ideas: ideas, chat: chat}
}

// caller writes a 401 and returns false when Identity did not run.
func caller(c *gin.Context) (middleware.Caller, bool) {
	cl, ok := middleware.CallerFrom(c)
	if !ok {
		response.Unauthorized(c, "authorization required")
	}
	return cl, ok
}
