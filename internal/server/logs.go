package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// requestLog writes one line per request naming the matched route and, for
// session routes, the session id. Client errors log at warn, server errors at error.
func requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// let the error handler set the final status before it is logged
			c.Error(err)
		}
		line := requestLine(c, time.Since(start), err)
		switch status := c.Response().Status; {
		case status >= 500:
			c.Logger().Error(line)
		case status >= 400:
			c.Logger().Warn(line)
		default:
			c.Logger().Info(line)
		}
		return nil
	}
}

func requestLine(c echo.Context, elapsed time.Duration, err error) string {
	route := c.Path()
	if route == "" {
		route = c.Request().URL.Path
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s status=%d bytes=%d in %v", c.Request().Method, route,
		c.Response().Status, c.Response().Size, elapsed.Round(time.Microsecond))
	if id := c.Param("id"); id != "" {
		fmt.Fprintf(&b, " session=%s", id)
	}
	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}
	return b.String()
}

var logLevels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

// setLogLevel applies level to e's logger; unknown names fall back to warn.
func setLogLevel(e *echo.Echo, level string) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "warn"
	}
	lvl, ok := logLevels[level]
	if !ok {
		e.Logger.SetLevel(log.WARN)
		e.Logger.Warnf("unknown log level %q, using warn", level)
		return
	}
	e.Logger.SetLevel(lvl)
}
