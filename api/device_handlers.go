package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/firstmakers/fm-api/domain"
	"github.com/firstmakers/fm-api/middleware"
)

// defaultActiveWindowMinutes is the devices-active lookback when the client
// does not pass one (24 hours).
const defaultActiveWindowMinutes = 60 * 24

// ListDevices returns the caller's devices.
func (a *API) ListDevices(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)

	devices, err := a.devices.List(c.Request().Context(), identity.Username)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, devices)
}

// GetDevice returns one of the caller's devices.
func (a *API) GetDevice(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)

	device, err := a.devices.Get(c.Request().Context(), identity.Username, c.Param("deviceName"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, device)
}

type createDeviceRequest struct {
	DeviceName string         `json:"deviceName" validate:"required,max=128"`
	Pins       map[string]any `json:"pins"`
}

// CreateDevice registers a new device owned by the caller.
func (a *API) CreateDevice(c echo.Context) error {
	var req createDeviceRequest
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return failValidation(c, "Must provide a deviceName.")
	}

	identity := middleware.CurrentIdentity(c)
	device := &domain.Device{
		Username:   identity.Username,
		DeviceName: req.DeviceName,
		Pins:       req.Pins,
	}
	if err := a.devices.Create(c.Request().Context(), device); err != nil {
		return fail(c, err)
	}
	return ok(c, "Device successfully saved.", "device_created")
}

type updateDeviceRequest struct {
	Pins map[string]any `json:"pins"`
}

// UpdateDevice merges pin values into one of the caller's devices.
func (a *API) UpdateDevice(c echo.Context) error {
	var req updateDeviceRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "Invalid request body.")
	}

	identity := middleware.CurrentIdentity(c)
	err := a.devices.UpdatePins(c.Request().Context(), identity.Username, c.Param("deviceName"), req.Pins)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, "Device update successful.", "device_updated")
}

// DeleteDevice removes one of the caller's devices.
func (a *API) DeleteDevice(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)

	if err := a.devices.Delete(c.Request().Context(), identity.Username, c.Param("deviceName")); err != nil {
		return fail(c, err)
	}
	return ok(c, "Device successfully deleted.", "device_deleted")
}

// GetPins returns the pin map of one of the caller's devices.
func (a *API) GetPins(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)

	device, err := a.devices.Get(c.Request().Context(), identity.Username, c.Param("deviceName"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, device.Pins)
}

type setPinRequest struct {
	Value any `json:"value"`
}

// SetPin writes a single pin value, creating the device on first report.
func (a *API) SetPin(c echo.Context) error {
	var req setPinRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "Invalid request body.")
	}

	identity := middleware.CurrentIdentity(c)
	err := a.devices.SetPin(c.Request().Context(),
		identity.Username, c.Param("deviceName"), c.Param("pin"), req.Value)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, "Device update successful.", "pin_updated")
}

// DeletePin removes a single pin from one of the caller's devices.
func (a *API) DeletePin(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)

	err := a.devices.UnsetPin(c.Request().Context(),
		identity.Username, c.Param("deviceName"), c.Param("pin"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, "Pin deleted successfully.", "pin_deleted")
}

// ListActiveDevices returns devices across all users updated within the given
// window (?minutes=N, default 24 hours).
func (a *API) ListActiveDevices(c echo.Context) error {
	minutes := defaultActiveWindowMinutes
	if raw := c.QueryParam("minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return failValidation(c, "minutes must be a positive integer.")
		}
		minutes = parsed
	}

	since := time.Now().Add(-time.Duration(minutes) * time.Minute)
	devices, err := a.devices.ListActive(c.Request().Context(), since)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, devices)
}
