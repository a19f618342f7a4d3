package handler

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"readly/internal/domain"
	"readly/internal/eventlog"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/dashboard.html
var templatesFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templatesFS, "templates/dashboard.html"))

const defaultEventLimit = 100

// DashboardHandler renders recorded error events.
type DashboardHandler struct {
	store    eventlog.Store
	capacity int
}

// NewDashboardHandler creates a DashboardHandler. capacity bounds the limit
// query parameter.
func NewDashboardHandler(store eventlog.Store, capacity int) *DashboardHandler {
	if capacity < 1 {
		capacity = defaultEventLimit
	}
	return &DashboardHandler{store: store, capacity: capacity}
}

type dashboardPage struct {
	Events      []eventlog.Event
	Count       int
	Capacity    int
	GeneratedAt time.Time
}

// EventsResponse is the JSON form of the dashboard.
type EventsResponse struct {
	Events []eventlog.Event `json:"events"`
	Count  int              `json:"count"`
}

// Page godoc
// @Summary Error event dashboard
// @Tags dashboard
// @Produce html
// @Param limit query int false "Maximum events"
// @Param category query string false "Only events of this category"
// @Success 200 {string} string "HTML page"
// @Failure 401 {object} middleware.ErrorResponse
// @Router /dashboard [get]
// @Security ApiKeyAuth
func (h *DashboardHandler) Page(c *fiber.Ctx) error {
	events, err := h.recent(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, dashboardPage{
		Events:      events,
		Count:       len(events),
		Capacity:    h.capacity,
		GeneratedAt: time.Now(),
	}); err != nil {
		return domain.NewInternalError("failed to render dashboard", err)
	}

	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

// Events godoc
// @Summary Error events as JSON
// @Tags dashboard
// @Produce json
// @Param limit query int false "Maximum events"
// @Param category query string false "Only events of this category"
// @Success 200 {object} EventsResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /dashboard/events [get]
// @Security ApiKeyAuth
func (h *DashboardHandler) Events(c *fiber.Ctx) error {
	events, err := h.recent(c)
	if err != nil {
		return err
	}
	if events == nil {
		events = []eventlog.Event{}
	}
	return c.JSON(EventsResponse{Events: events, Count: len(events)})
}

func (h *DashboardHandler) recent(c *fiber.Ctx) ([]eventlog.Event, error) {
	limit := c.QueryInt("limit", defaultEventLimit)
	if limit < 1 {
		return nil, domain.NewOutOfRangeError("limit", limit, 1, h.capacity)
	}
	limit = min(limit, h.capacity)

	category := strings.TrimSpace(c.Query("category"))
	fetch := limit
	if category != "" {
		fetch = h.capacity
	}

	events, err := h.store.Recent(c.UserContext(), fetch)
	if err != nil {
		return nil, domain.NewInternalError("failed to read events", err)
	}
	if category == "" {
		return events, nil
	}

	filtered := make([]eventlog.Event, 0, limit)
	for _, e := range events {
		if e.Category == category {
			filtered = append(filtered, e)
			if len(filtered) == limit {
				break
			}
		}
	}
	return filtered, nil
}
