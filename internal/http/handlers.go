package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/coldchain/coldchain-monitor/internal/domain"
	"github.com/coldchain/coldchain-monitor/internal/repository"
	"github.com/coldchain/coldchain-monitor/internal/service"
)

// ActorHeader names the user performing a mutating request.
const ActorHeader = "X-Actor"

const defaultActor = "api"

type readingRequest struct {
	SensorID    int64    `json:"sensor_id"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

type sensorRequest struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Location string  `json:"location"`
	MinTemp  float64 `json:"min_temp"`
	MaxTemp  float64 `json:"max_temp"`
	Active   *bool   `json:"active"`
}

type thresholdsRequest struct {
	MinTemp *float64 `json:"min_temp"`
	MaxTemp *float64 `json:"max_temp"`
}

type assignRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

func Register(app *fiber.App, svcs *service.Services) {
	api := app.Group("/api")

	api.Post("/readings", func(c *fiber.Ctx) error {
		var req readingRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		if req.Temperature == nil || req.Humidity == nil {
			return badRequest(c, "temperature and humidity are required")
		}
		id, err := svcs.Readings.SubmitReading(c.UserContext(), req.SensorID, *req.Temperature, *req.Humidity)
		if err != nil {
			if id == 0 {
				return writeError(c, err)
			}
			log.Warn().Err(err).Int64("reading_id", id).Msg("reading stored, evaluation incomplete")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"reading_id": id})
	})

	api.Get("/readings/latest", func(c *fiber.Ctx) error {
		items, err := svcs.Readings.Latest(c.UserContext())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(items)
	})

	api.Get("/sensors", func(c *fiber.Ctx) error {
		items, err := svcs.Sensors.List(c.UserContext())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(items)
	})

	api.Post("/sensors", func(c *fiber.Ctx) error {
		var req sensorRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		s := &domain.Sensor{
			ID:       req.ID,
			Name:     req.Name,
			Location: req.Location,
			MinTemp:  req.MinTemp,
			MaxTemp:  req.MaxTemp,
			Active:   req.Active == nil || *req.Active,
		}
		if err := svcs.Sensors.Create(c.UserContext(), s, actor(c)); err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(s)
	})

	api.Get("/sensors/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return badRequest(c, "invalid sensor id")
		}
		s, err := svcs.Sensors.Get(c.UserContext(), int64(id))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(s)
	})

	api.Put("/sensors/:id/thresholds", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return badRequest(c, "invalid sensor id")
		}
		var req thresholdsRequest
		if err := c.BodyParser(&req); err != nil || req.MinTemp == nil || req.MaxTemp == nil {
			return badRequest(c, "min_temp and max_temp are required")
		}
		s, err := svcs.Sensors.UpdateThresholds(c.UserContext(), int64(id), *req.MinTemp, *req.MaxTemp, actor(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(s)
	})

	api.Get("/sensors/:id/history", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return badRequest(c, "invalid sensor id")
		}
		hours := c.QueryInt("hours", 24)
		if hours < 1 {
			return badRequest(c, "hours must be positive")
		}
		items, err := svcs.Readings.History(c.UserContext(), int64(id), time.Duration(hours)*time.Hour)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(items)
	})

	api.Get("/incidents", func(c *fiber.Ctx) error {
		items, err := svcs.Incidents.List(c.UserContext(), domain.IncidentStatus(c.Query("status")))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(items)
	})

	api.Post("/incidents/:id/assign", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return badRequest(c, "invalid incident id")
		}
		var req assignRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		userID := req.UserID
		if userID == 0 && req.Username != "" {
			u, err := svcs.Incidents.EnsureUser(c.UserContext(), req.Username, "")
			if err != nil {
				return writeError(c, err)
			}
			userID = u.ID
		}
		inc, err := svcs.Incidents.Assign(c.UserContext(), int64(id), userID, actor(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(inc)
	})

	api.Post("/incidents/:id/close", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return badRequest(c, "invalid incident id")
		}
		inc, err := svcs.Incidents.Close(c.UserContext(), int64(id), actor(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(inc)
	})

	api.Get("/audit", func(c *fiber.Ctx) error {
		f, err := auditFilter(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		items, err := svcs.Audit.Query(c.UserContext(), f)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(items)
	})
}

func auditFilter(c *fiber.Ctx) (domain.AuditFilter, error) {
	f := domain.AuditFilter{Kind: c.Query("kind"), Limit: c.QueryInt("limit", 500)}

	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		if v := c.Query(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, errors.New(key + " must be an RFC3339 timestamp")
			}
			*dst = t.UTC()
		}
	}
	for key, dst := range map[string]*int64{"sensor_id": &f.SensorID, "reading_id": &f.ReadingID, "incident_id": &f.IncidentID} {
		if v := c.Query(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return f, errors.New(key + " must be an integer")
			}
			*dst = n
		}
	}
	return f, nil
}

func actor(c *fiber.Ctx) string {
	return c.Get(ActorHeader, defaultActor)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrSensorUnknown), errors.Is(err, repository.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, service.ErrSensorInactive), errors.Is(err, service.ErrIncidentClosed),
		errors.Is(err, service.ErrSensorExists):
		status = fiber.StatusConflict
	case errors.Is(err, service.ErrInvalidThresholds), errors.Is(err, service.ErrInvalidReading), errors.Is(err, service.ErrInvalidSensor):
		status = fiber.StatusBadRequest
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
