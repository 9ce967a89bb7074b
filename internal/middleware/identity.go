package middleware

import "github.com/labstack/echo/v4"

// GuideID returns the authenticated guide's id, or "" for anonymous
// requests.
func GuideID(c echo.Context) string {
	s, _ := c.Get(ctxGuideID).(string)
	return s
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

// visitor keys rate limiting: the guide id when signed in, "anon" otherwise.
func visitor(c echo.Context) string {
	if id := GuideID(c); id != "" {
		return id
	}
	return "anon"
}
