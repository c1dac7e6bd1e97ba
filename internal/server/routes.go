package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/metrics"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var errNoFleet = errors.New("not available in slave mode")

type StatusResponse struct {
	Mode      string    `json:"mode"`
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type SlavePowerRequest struct {
	Enable bool `json:"enable"`
}

type SlavePowerResponse struct {
	SlaveId int  `json:"slaveId"`
	Enable  bool `json:"enable"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/status", s.StatusHandler)
	e.GET("/api/data", s.DataHandler)
	e.POST("/api/slaves/:id/power", s.SlavePowerHandler)
	if s.registry != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.rootActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StatusHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Mode:      s.mode,
		Status:    s.status(),
		Version:   versioninfo.Short(),
		Timestamp: time.Now(),
	})
}

func (s *Server) DataHandler(c echo.Context) error {
	if s.fleet == nil {
		return echo.NewHTTPError(http.StatusNotFound, errNoFleet.Error())
	}
	snapshot, err := s.fleet.GetSnapshot(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (s *Server) SlavePowerHandler(c echo.Context) error {
	if s.fleet == nil {
		return echo.NewHTTPError(http.StatusNotFound, errNoFleet.Error())
	}
	slaveId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid slave id")
	}
	var req SlavePowerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	found, err := s.fleet.SetSlavePower(c.Request().Context(), slaveId, req.Enable)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "unknown slave")
	}
	return c.JSON(http.StatusOK, SlavePowerResponse{SlaveId: slaveId, Enable: req.Enable})
}
