package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/firstmakers/fm-api/domain"
	"github.com/firstmakers/fm-api/middleware"
)

// ListSketches returns the caller's sketches.
func (a *API) ListSketches(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)

	sketches, err := a.sketches.List(c.Request().Context(), identity.Username)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sketches)
}

// GetSketch returns one of the caller's sketches by id.
func (a *API) GetSketch(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)

	sketch, err := a.sketches.Get(c.Request().Context(), identity.Username, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sketch)
}

type createSketchRequest struct {
	Title       string   `json:"title" validate:"required,max=256"`
	Description string   `json:"description"`
	Blocks      string   `json:"blocks"`
	Tags        []string `json:"tags"`
}

type sketchResponse struct {
	Response
	Sketch *domain.Sketch `json:"sketch,omitempty"`
}

// CreateSketch saves a new sketch for the caller. The title is checked before
// the insert so the common collision is reported cleanly; the unique index on
// (username, title) closes the remaining race.
func (a *API) CreateSketch(c echo.Context) error {
	var req createSketchRequest
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return failValidation(c, "Must provide a title.")
	}

	identity := middleware.CurrentIdentity(c)
	if _, err := a.sketches.FindByTitle(c.Request().Context(), identity.Username, req.Title); err == nil {
		return fail(c, domain.ErrSketchTitleTaken)
	} else if !errors.Is(err, domain.ErrSketchNotFound) {
		return fail(c, err)
	}

	sketch := &domain.Sketch{
		Username:    identity.Username,
		Title:       req.Title,
		Description: req.Description,
		Blocks:      req.Blocks,
		Tags:        req.Tags,
	}
	if err := a.sketches.Create(c.Request().Context(), sketch); err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, sketchResponse{
		Response: Response{Success: true, Message: "Sketch successfully saved.", MessageCode: "sketch_created"},
		Sketch:   sketch,
	})
}

type updateSketchRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Blocks      *string  `json:"blocks"`
	Tags        []string `json:"tags"`
}

// UpdateSketch applies partial changes to one of the caller's sketches.
func (a *API) UpdateSketch(c echo.Context) error {
	var req updateSketchRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "Invalid request body.")
	}

	identity := middleware.CurrentIdentity(c)
	err := a.sketches.Update(c.Request().Context(), identity.Username, c.Param("id"), domain.SketchUpdate{
		Title:       req.Title,
		Description: req.Description,
		Blocks:      req.Blocks,
		Tags:        req.Tags,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, "Sketch update successful.", "sketch_updated")
}

// DeleteSketch removes one of the caller's sketches.
func (a *API) DeleteSketch(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)

	if err := a.sketches.Delete(c.Request().Context(), identity.Username, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return ok(c, "Sketch successfully deleted.", "sketch_deleted")
}
