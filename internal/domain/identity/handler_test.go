package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/auth"
)

func newDoctorContext(e *echo.Echo, method, body string, caller *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/doctors", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/doctors", nil)
	}
	if caller != nil {
		req = req.WithContext(auth.WithPrincipal(context.Background(), caller))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func adminCaller() *auth.Principal {
	return &auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}
}

func TestHandler_GetDoctor_NotFound(t *testing.T) {
	h := NewHandler(newTestService())
	e := echo.New()

	c, _ := newDoctorContext(e, http.MethodGet, "", nil)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.GetDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_UpdateDoctor_NotFound(t *testing.T) {
	h := NewHandler(newTestService())
	e := echo.New()

	c, _ := newDoctorContext(e, http.MethodPut,
		`{"first_name":"Maria","last_name":"Rossi","specialization":"cardiology","price":80}`, adminCaller())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.UpdateDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_DeleteDoctor_NotFound(t *testing.T) {
	h := NewHandler(newTestService())
	e := echo.New()

	c, _ := newDoctorContext(e, http.MethodDelete, "", adminCaller())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.DeleteDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_CreateDoctor_ValidationStays400(t *testing.T) {
	h := NewHandler(newTestService())
	e := echo.New()

	c, _ := newDoctorContext(e, http.MethodPost, `{"last_name":"Rossi"}`, adminCaller())
	err := h.CreateDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
