package lesson

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teamfive/lesson-booking-api/internal/user"
)

// CreateLessonRequest books a lesson for the caller.
type CreateLessonRequest struct {
	Instrument string    `json:"instrument" binding:"required"`
	StartTime  time.Time `json:"startTime" binding:"required"`
	EndTime    time.Time `json:"endTime" binding:"required"`
}

type lessonURI struct {
	ID uint `uri:"id" binding:"required,min=1"`
}

// LessonHandler serves lesson bookings. Every per-lesson route is scoped to the caller
// resolved from the Authorization header.
type LessonHandler struct {
	service LessonService
	caller  user.CallerIdentifier
	logger  *zap.Logger
}

func NewLessonHandler(
	authed, admin *gin.RouterGroup,
	service LessonService,
	caller user.CallerIdentifier,
	logger *zap.Logger,
) *LessonHandler {
	h := &LessonHandler{service: service, caller: caller, logger: logger}

	authed.POST("/lessons", h.CreateLesson)
	authed.GET("/lessons/user", h.LessonsForUser)
	authed.GET("/lessons/:id", h.OneLesson)
	authed.DELETE("/lessons/:id", h.DeleteLesson)

	admin.GET("/lessons/all", h.AllLessons)
	return h
}

func (h *LessonHandler) callerID(c *gin.Context) (uint, bool) {
	id := h.caller.GetIDClaimFromHeader(c.GetHeader("Authorization"))
	if id < 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	return uint(id), true
}

func (h *LessonHandler) ownedLessonID(c *gin.Context) (lessonID, callerID uint, ok bool) {
	var uri lessonURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid or missing id"})
		return 0, 0, false
	}
	callerID, ok = h.callerID(c)
	return uri.ID, callerID, ok
}

func (h *LessonHandler) lessonFailure(c *gin.Context, op string, err error) {
	if errors.Is(err, ErrLessonNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	h.logger.Error(op+" failed", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
}

// CreateLesson godoc
// @Summary      Book lesson
// @Tags         lessons
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      CreateLessonRequest  true  "Lesson"
// @Success      201      {object}  Lesson
// @Failure      400,401  {object}  map[string]string
// @Router       /lessons [post]
func (h *LessonHandler) CreateLesson(c *gin.Context) {
	callerID, ok := h.callerID(c)
	if !ok {
		return
	}
	var req CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "instrument, startTime and endTime required"})
		return
	}
	lesson, err := h.service.CreateLesson(c.Request.Context(), callerID, req.Instrument, req.StartTime, req.EndTime)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, lesson)
	case errors.Is(err, ErrInstrumentRequired), errors.Is(err, ErrInvalidLessonTime):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.lessonFailure(c, "create lesson", err)
	}
}

// OneLesson godoc
// @Summary      Get own lesson
// @Tags         lessons
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Lesson ID"
// @Success      200  {object}  Lesson
// @Failure      401,404  {object}  map[string]string
// @Router       /lessons/{id} [get]
func (h *LessonHandler) OneLesson(c *gin.Context) {
	id, callerID, ok := h.ownedLessonID(c)
	if !ok {
		return
	}
	lesson, err := h.service.OneLesson(c.Request.Context(), id, callerID)
	if err != nil {
		h.lessonFailure(c, "read lesson", err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

// LessonsForUser godoc
// @Summary      List own lessons
// @Tags         lessons
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   Lesson
// @Failure      401  {object}  map[string]string
// @Router       /lessons/user [get]
func (h *LessonHandler) LessonsForUser(c *gin.Context) {
	callerID, ok := h.callerID(c)
	if !ok {
		return
	}
	lessons, err := h.service.LessonsForStudent(c.Request.Context(), callerID)
	if err != nil {
		h.lessonFailure(c, "list lessons", err)
		return
	}
	c.JSON(http.StatusOK, lessons)
}

// DeleteLesson godoc
// @Summary      Cancel own lesson
// @Tags         lessons
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Lesson ID"
// @Success      200  {object}  Lesson
// @Failure      401,404  {object}  map[string]string
// @Router       /lessons/{id} [delete]
func (h *LessonHandler) DeleteLesson(c *gin.Context) {
	id, callerID, ok := h.ownedLessonID(c)
	if !ok {
		return
	}
	lesson, err := h.service.DeleteLesson(c.Request.Context(), id, callerID)
	if err != nil {
		h.lessonFailure(c, "delete lesson", err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

// AllLessons godoc
// @Summary      List every lesson
// @Tags         lessons
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  Lesson
// @Router       /lessons/all [get]
func (h *LessonHandler) AllLessons(c *gin.Context) {
	lessons, err := h.service.AllLessons(c.Request.Context())
	if err != nil {
		h.lessonFailure(c, "list all lessons", err)
		return
	}
	c.JSON(http.StatusOK, lessons)
}
