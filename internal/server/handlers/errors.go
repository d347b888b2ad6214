package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/service/recording"
)

// fail hands err to the error middleware, which renders the response.
func fail(c *gin.Context, err error) {
	if errors.Is(err, recording.ErrInvalidArguments) || errors.Is(err, recording.ErrUnsupportedCommand) {
		err = apperror.Validation(err.Error()).Wrap(err)
	}
	_ = c.Error(err)
	c.Abort()
}

func bindFailed(c *gin.Context, err error) {
	fail(c, apperror.Validation("invalid request body").Wrap(err))
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, apperror.Validation(name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}
