package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/language"

	"realestate-token-hub/internal/i18n"
	"realestate-token-hub/internal/observability"
)

const langKey = "lang"

func (s *Server) metrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		code := c.Response().Status
		if err != nil {
			code = statusOf(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		observability.RecordAPIRequest(c.Request().Method, route, strconv.Itoa(code))
		return err
	}
}

func (s *Server) language(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tag, persist := s.deps.Bundle.ResolveTag(c.Request(), s.deps.DefaultLang)
		if persist {
			i18n.SetLanguageCookie(c.Response(), tag)
		}
		c.Set(langKey, tag)
		return next(c)
	}
}

func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.deps.Limiter.Allow(c.RealIP(), time.Now()) {
			observability.RecordRateLimited()
			return errRateLimited
		}
		return next(c)
	}
}

func langOf(c echo.Context, def language.Tag) language.Tag {
	if tag, ok := c.Get(langKey).(language.Tag); ok {
		return tag
	}
	return def
}
