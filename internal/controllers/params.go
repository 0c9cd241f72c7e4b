package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"raspimon/internal/services"

	"github.com/gin-gonic/gin"
)

func errInvalidParam(name string) error {
	return errors.New("invalid " + name)
}

// queryInt reads a non-negative integer query parameter
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errInvalidParam(name)
	}
	return n, nil
}

// summaryHours reads the summary window, 24 hours unless given
func summaryHours(c *gin.Context) (int, error) {
	hours, err := queryInt(c, "hours", 24)
	if err != nil || hours == 0 {
		return 0, errInvalidParam("hours")
	}
	return hours, nil
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	if errors.Is(err, services.ErrConfiguration) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
