package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"servos/channel"
	"servos/curve"
	"servos/define"
	"servos/editor"
	"servos/playback"
	"servos/store"
	"servos/studio"
)

// statusFor 把领域错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, curve.ErrBoundaryImmutable):
		return http.StatusForbidden
	case errors.Is(err, curve.ErrNotFound),
		errors.Is(err, channel.ErrNotFound),
		errors.Is(err, store.ErrNoProject):
		return http.StatusNotFound
	case errors.Is(err, playback.ErrNotPlaying),
		errors.Is(err, playback.ErrInvalidTransition),
		errors.Is(err, channel.ErrLimit),
		errors.Is(err, studio.ErrNoStore):
		return http.StatusConflict
	case errors.Is(err, curve.ErrOutOfRange),
		errors.Is(err, curve.ErrDuplicateTime),
		errors.Is(err, curve.ErrOrderViolation),
		errors.Is(err, curve.ErrCorruptData),
		errors.Is(err, editor.ErrInvalidViewport):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), define.ApiResponse{
		Status: "error",
		Error:  err.Error(),
	})
}

func respondBadRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, define.ApiResponse{
		Status: "error",
		Error:  msg + "：" + err.Error(),
	})
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, define.ApiResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}
