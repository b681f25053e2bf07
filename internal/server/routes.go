package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"homepulse/internal/core/domain"
	"homepulse/internal/core/port"
	"homepulse/internal/core/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/devices", s.ListDevicesHandler)
	api.POST("/devices", s.CreateDeviceHandler)
	api.GET("/devices/:id", s.GetDeviceHandler)
	api.PUT("/devices/:id", s.UpdateDeviceHandler)
	api.DELETE("/devices/:id", s.DeleteDeviceHandler)

	api.POST("/devices/:id/status", s.SetDeviceStatusHandler)
	api.POST("/devices/:id/simulate", s.SimulateDeviceHandler)
	api.POST("/devices/:id/patterns", s.MinePatternsHandler)
	api.GET("/devices/:id/efficiency", s.EfficiencyReportHandler)

	api.POST("/devices/:id/data", s.AppendUsageDataHandler)
	api.GET("/devices/:id/data", s.QueryUsageDataHandler)

	api.POST("/evaluate", s.EvaluateSchedulesHandler)

	return e
}

type errorResponse struct {
	Error string `json:"error"`
}

func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrDeviceNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidSchedule), errors.Is(err, domain.ErrUnsupportedType):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// Device registry

type deviceRequest struct {
	Name         string                `json:"name"`
	Type         domain.DeviceType     `json:"type"`
	IPAddress    string                `json:"ipAddress"`
	Location     string                `json:"location"`
	Settings     domain.DeviceSettings `json:"settings"`
	AutoSchedule domain.AutoSchedule   `json:"autoSchedule"`
}

func validateDeviceRequest(req *deviceRequest) error {
	if req.Name == "" {
		return errors.New("name is required")
	}
	if !req.Type.Valid() {
		return domain.ErrUnsupportedType
	}
	if req.AutoSchedule.Enabled {
		if _, err := service.ParseClock(req.AutoSchedule.OnTime); err != nil {
			return err
		}
		if _, err := service.ParseClock(req.AutoSchedule.OffTime); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) ListDevicesHandler(c echo.Context) error {
	var filter port.DeviceFilter
	if t := c.QueryParam("type"); t != "" {
		deviceType := domain.DeviceType(t)
		if !deviceType.Valid() {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown device type"})
		}
		filter.Type = &deviceType
	}
	if se := c.QueryParam("scheduleEnabled"); se != "" {
		enabled, err := strconv.ParseBool(se)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "scheduleEnabled must be a boolean"})
		}
		filter.ScheduleEnabled = &enabled
	}
	devices, err := s.devices.List(c.Request().Context(), filter)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, devices)
}

func (s *Server) CreateDeviceHandler(c echo.Context) error {
	var req deviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := validateDeviceRequest(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	now := time.Now()
	device := domain.Device{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Type:         req.Type,
		Status:       domain.StatusOff,
		IPAddress:    req.IPAddress,
		Location:     req.Location,
		Settings:     req.Settings,
		AutoSchedule: req.AutoSchedule,
		Predictive:   domain.PredictiveData{Patterns: []domain.Pattern{}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.devices.Upsert(c.Request().Context(), &device); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, device)
}

func (s *Server) GetDeviceHandler(c echo.Context) error {
	device, err := s.devices.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, device)
}

func (s *Server) UpdateDeviceHandler(c echo.Context) error {
	ctx := c.Request().Context()
	device, err := s.devices.Get(ctx, c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	var req deviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := validateDeviceRequest(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	device.Name = req.Name
	device.Type = req.Type
	device.IPAddress = req.IPAddress
	device.Location = req.Location
	device.Settings = req.Settings
	device.AutoSchedule = req.AutoSchedule
	device.UpdatedAt = time.Now()
	if err := s.devices.Upsert(ctx, device); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, device)
}

func (s *Server) DeleteDeviceHandler(c echo.Context) error {
	if err := s.devices.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Engine operations, routed through the actor tree

type setStatusRequest struct {
	On bool `json:"on"`
}

func (s *Server) SetDeviceStatusHandler(c echo.Context) error {
	var req setStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.SetDeviceStatusRequest{
		DeviceID: c.Param("id"),
		On:       req.On,
	}, 15*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.SetDeviceStatusResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		return httpError(c, response.GetResponseError())
	}
	return c.JSON(http.StatusOK, map[string]any{"changed": response.Changed})
}

func (s *Server) SimulateDeviceHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.SimulateDeviceRequest{
		DeviceID: c.Param("id"),
	}, 15*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.SimulateDeviceResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		return httpError(c, response.GetResponseError())
	}
	if !response.Applicable {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "device type has no simulation behavior"})
	}
	return c.JSON(http.StatusOK, response.Result)
}

func (s *Server) MinePatternsHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.MinePatternsRequest{
		DeviceID: c.Param("id"),
	}, 30*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.MinePatternsResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		return httpError(c, response.GetResponseError())
	}
	if response.Patterns == nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "device type has no mining behavior"})
	}
	return c.JSON(http.StatusOK, response.Patterns)
}

func (s *Server) EfficiencyReportHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.EfficiencyReportRequest{
		DeviceID: c.Param("id"),
	}, 15*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.EfficiencyReportResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		return httpError(c, response.GetResponseError())
	}
	return c.JSON(http.StatusOK, response.Report)
}

func (s *Server) EvaluateSchedulesHandler(c echo.Context) error {
	// optional time parameter pins the evaluation clock
	var at time.Time
	if param := c.QueryParam("time"); param != "" {
		parsed, err := time.Parse(time.RFC3339, param)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "time must be RFC3339"})
		}
		at = parsed
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.EvaluateSchedulesRequest{At: at}, 60*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.EvaluateSchedulesResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.Busy {
		return c.JSON(http.StatusConflict, errorResponse{Error: "an evaluation pass is already running"})
	}
	if response.HasResponseError() {
		return httpError(c, response.GetResponseError())
	}
	return c.JSON(http.StatusOK, response.Summary)
}

// Usage data

func (s *Server) AppendUsageDataHandler(c echo.Context) error {
	ctx := c.Request().Context()
	deviceID := c.Param("id")
	if _, err := s.devices.Get(ctx, deviceID); err != nil {
		return httpError(c, err)
	}
	var record domain.SessionRecord
	if err := c.Bind(&record); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	saved, err := s.usage.AppendSessionRecord(ctx, deviceID, record)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, saved)
}

func (s *Server) QueryUsageDataHandler(c echo.Context) error {
	ctx := c.Request().Context()
	deviceID := c.Param("id")
	if _, err := s.devices.Get(ctx, deviceID); err != nil {
		return httpError(c, err)
	}

	fromParam := c.QueryParam("from")
	toParam := c.QueryParam("to")
	if fromParam != "" || toParam != "" {
		from, err := time.Parse(time.RFC3339, fromParam)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "from must be RFC3339"})
		}
		to, err := time.Parse(time.RFC3339, toParam)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "to must be RFC3339"})
		}
		records, err := s.usage.QueryByDeviceAndRange(ctx, deviceID, from, to)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, records)
	}

	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
		}
		limit = parsed
	}
	records, err := s.usage.RecentSessionRecords(ctx, deviceID, limit)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}
