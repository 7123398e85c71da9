package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/joshuadavidthomas/meteofetch/internal/fetch"
	"github.com/joshuadavidthomas/meteofetch/internal/geocode"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

var validate = validator.New()

// RegisterRoutes wires the API handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, s *Server) {
	v1 := app.Group("/api/v1")

	v1.Post("/fetch", s.submit)
	v1.Get("/fetch", s.list)
	v1.Get("/fetch/:id", s.get)
	v1.Delete("/fetch/:id", s.cancel)
	v1.Delete("/fetch", s.cancelAll)

	v1.Get("/usage", s.usage)
	v1.Get("/providers", s.providers)
	v1.Get("/route", s.route)
}

// fetchBody is the POST /fetch payload. Either a coordinate pair or a
// location name is required.
type fetchBody struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Location  string   `json:"location" validate:"omitempty,min=2,max=200"`
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	UseCase   string   `json:"use_case" validate:"omitempty,oneof=single-location multi-location historical-deep real-time"`
	Provider  string   `json:"provider"`
	Label     string   `json:"label" validate:"max=200"`
}

type taskJSON struct {
	TaskID    string              `json:"task_id"`
	State     fetch.State         `json:"state"`
	Provider  models.ProviderID   `json:"provider,omitempty"`
	Submitted time.Time           `json:"submitted_at"`
	Request   models.FetchRequest `json:"request"`
	Outcome   *fetch.Outcome      `json:"outcome,omitempty"`
}

func toTaskJSON(h *fetch.Handle) taskJSON {
	t := taskJSON{
		TaskID:    h.ID(),
		State:     h.State(),
		Provider:  h.Provider(),
		Submitted: h.Submitted(),
		Request:   h.Request(),
	}
	if o, ok := h.Outcome(); ok {
		t.Outcome = &o
	}
	return t
}

func (s *Server) submit(c *fiber.Ctx) error {
	var body fetchBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := validate.Struct(body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	req, err := s.toRequest(c, body)
	if err != nil {
		return err
	}

	h, err := s.coord.Submit(req)
	switch {
	case errors.Is(err, fetch.ErrClosed):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case err != nil:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if c.QueryBool("wait") {
		if _, err := h.Wait(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusRequestTimeout, err.Error())
		}
		return c.JSON(toTaskJSON(h))
	}
	c.Location("/api/v1/fetch/" + h.ID())
	return c.Status(fiber.StatusAccepted).JSON(toTaskJSON(h))
}

func (s *Server) toRequest(c *fiber.Ctx, body fetchBody) (models.FetchRequest, error) {
	start, _ := models.ParseDate(body.StartDate)
	end, _ := models.ParseDate(body.EndDate)
	uc, err := models.ParseUseCase(body.UseCase)
	if err != nil {
		return models.FetchRequest{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	choice, err := models.ParseProviderChoice(body.Provider)
	if err != nil {
		return models.FetchRequest{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	req := models.FetchRequest{Start: start, End: end, UseCase: uc, Provider: choice, Label: body.Label}

	switch {
	case body.Latitude != nil && body.Longitude != nil:
		req.Latitude, req.Longitude = *body.Latitude, *body.Longitude
	case strings.TrimSpace(body.Location) != "":
		coords, err := s.resolve(c, body.Location)
		if err != nil {
			return models.FetchRequest{}, err
		}
		req.Latitude, req.Longitude = coords.Latitude, coords.Longitude
		if req.Label == "" {
			req.Label = coords.Name
		}
	default:
		return models.FetchRequest{}, fiber.NewError(fiber.StatusBadRequest, "latitude and longitude, or location, are required")
	}
	return req, nil
}

func (s *Server) resolve(c *fiber.Ctx, name string) (geocode.Coordinates, error) {
	if s.resolver == nil {
		return geocode.Coordinates{}, fiber.NewError(fiber.StatusBadRequest, "location lookup is not enabled")
	}
	coords, err := s.resolver.Resolve(c.UserContext(), name)
	switch {
	case errors.Is(err, geocode.ErrNotFound):
		return coords, fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("location %q not found", name))
	case errors.Is(err, geocode.ErrQueryTooShort):
		return coords, fiber.NewError(fiber.StatusBadRequest, err.Error())
	case err != nil:
		return coords, fiber.NewError(fiber.StatusBadGateway, "location lookup failed")
	}
	return coords, nil
}

func (s *Server) list(c *fiber.Ctx) error {
	handles := s.coord.Handles()
	out := make([]taskJSON, 0, len(handles))
	for _, h := range handles {
		t := toTaskJSON(h)
		// Records are only returned from the single-task endpoint.
		if t.Outcome != nil {
			o := *t.Outcome
			o.Records = nil
			t.Outcome = &o
		}
		out = append(out, t)
	}
	return c.JSON(fiber.Map{"tasks": out})
}

func (s *Server) get(c *fiber.Ctx) error {
	h, ok := s.coord.Lookup(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown task")
	}
	return c.JSON(toTaskJSON(h))
}

func (s *Server) cancel(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, ok := s.coord.Lookup(id); !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown task")
	}
	return c.JSON(fiber.Map{"task_id": id, "cancelled": s.coord.Cancel(id)})
}

func (s *Server) cancelAll(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cancelled": s.coord.CancelAll()})
}

func (s *Server) usage(c *fiber.Ctx) error {
	ledger := s.coord.Ledger()
	var out []usage.Summary
	for _, d := range s.coord.Catalog().All() {
		if sum, ok := ledger.Summary(d.ID); ok {
			out = append(out, sum)
		}
	}
	if out == nil {
		out = []usage.Summary{}
	}
	return c.JSON(fiber.Map{"providers": out})
}

type providerJSON struct {
	ID                models.ProviderID `json:"id"`
	Label             string            `json:"label"`
	CostPerRequest    float64           `json:"cost_per_request_usd"`
	MonthlyQuota      int               `json:"monthly_quota"`
	MaxDaysPerRequest int               `json:"max_days_per_request"`
	RequiresKey       bool              `json:"requires_key"`
	Available         bool              `json:"available"`
	Reason            string            `json:"reason,omitempty"`
}

func (s *Server) providers(c *fiber.Ctx) error {
	ledger := s.coord.Ledger()
	var out []providerJSON
	for _, d := range s.coord.Catalog().All() {
		a := ledger.Check(d.ID)
		out = append(out, providerJSON{
			ID:                d.ID,
			Label:             d.Label,
			CostPerRequest:    d.CostPerRequest,
			MonthlyQuota:      d.MonthlyQuota,
			MaxDaysPerRequest: d.MaxDaysPerRequest,
			RequiresKey:       d.RequiresKey,
			Available:         a.Available,
			Reason:            a.Reason,
		})
	}
	return c.JSON(fiber.Map{"providers": out})
}

func (s *Server) route(c *fiber.Ctx) error {
	uc, err := models.ParseUseCase(c.Query("use_case"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	choice, err := models.ParseProviderChoice(c.Query("provider"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.coord.Router().Select(uc, choice))
}
