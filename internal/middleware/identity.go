package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's id.  It reports false for
// unauthenticated requests and for operator tokens, whose subject is not a
// user id.
func UserID(c echo.Context) (int64, bool) {
	sub, ok := c.Get(KeyUserID).(string)
	if !ok || sub == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Token returns the raw bearer token of the request.
func Token(c echo.Context) string {
	t, _ := c.Get(KeyToken).(string)
	return t
}
