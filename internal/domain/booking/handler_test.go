package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/auth"
)

func newTestHandler() (*Handler, *memSlotStore, *echo.Echo) {
	svc, slots, _, _ := newTestService()
	return NewHandler(svc), slots, echo.New()
}

func newRequestContext(e *echo.Echo, method, target, body string, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(context.Background(), p))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_CreateAvailability(t *testing.T) {
	h, _, e := newTestHandler()
	doctorID := uuid.New()
	body := `{"doctor_id":"` + doctorID.String() + `","dates":["2026-03-02T09:00:00Z"],"price":60}`
	c, rec := newRequestContext(e, http.MethodPost, "/availability", body, doctorPrincipal(doctorID))

	if err := h.CreateAvailability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var created []Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || len(created) != 1 {
		t.Fatalf("bad response body: %v %s", err, rec.Body.String())
	}
	if created[0].Status != StatusAvailable {
		t.Errorf("expected AVAILABLE, got %s", created[0].Status)
	}
}

func TestHandler_CreateAvailability_Forbidden(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"doctor_id":"` + uuid.New().String() + `","dates":["2026-03-02T09:00:00Z"]}`
	c, _ := newRequestContext(e, http.MethodPost, "/availability", body, doctorPrincipal(uuid.New()))

	err := h.CreateAvailability(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestHandler_Book(t *testing.T) {
	h, slots, e := newTestHandler()
	doctorID := uuid.New()
	sl := seedAvailable(t, slots, doctorID, baseDate)
	caller := patientPrincipal()

	body := `{"patient":{"first_name":"Ada","last_name":"Park","age":34,"gender":"female"},"visit_type":"FIRST_VISIT","duration":1}`
	c, rec := newRequestContext(e, http.MethodPost, "/", body, caller)
	c.SetParamNames("id")
	c.SetParamValues(sl.ID.String())

	if err := h.Book(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var booked Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &booked); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if booked.Status != StatusBooked || booked.PatientID == nil || *booked.PatientID != caller.UserID {
		t.Error("response does not reflect the booking")
	}
}

func TestHandler_Book_ConflictStatus(t *testing.T) {
	h, slots, e := newTestHandler()
	doctorID := uuid.New()
	sl := seedAvailable(t, slots, doctorID, baseDate)
	first := patientPrincipal()
	if _, err := h.svc.Book(context.Background(), first, sl.ID, first.UserID, testSnapshot(), VisitFirstVisit, 1); err != nil {
		t.Fatalf("book: %v", err)
	}

	body := `{"patient":{"first_name":"Bea","last_name":"Singh","age":40,"gender":"female"},"visit_type":"FIRST_VISIT"}`
	c, _ := newRequestContext(e, http.MethodPost, "/", body, patientPrincipal())
	c.SetParamNames("id")
	c.SetParamValues(sl.ID.String())

	err := h.Book(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
	// Conflict payload carries the offending timestamp.
	be, ok := he.Message.(*Error)
	if !ok || be.At == nil || !be.At.Equal(baseDate) {
		t.Errorf("conflict body should name the slot time, got %v", he.Message)
	}
}

func TestHandler_CancelByDoctor_InvalidState(t *testing.T) {
	h, slots, e := newTestHandler()
	doctorID := uuid.New()
	sl := seedAvailable(t, slots, doctorID, baseDate)

	c, _ := newRequestContext(e, http.MethodPost, "/", `{"reason":"sick"}`, doctorPrincipal(doctorID))
	c.SetParamNames("id")
	c.SetParamValues(sl.ID.String())

	err := h.CancelByDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_GetSlot_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newRequestContext(e, http.MethodGet, "/", "", patientPrincipal())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetSlot(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListSlots(t *testing.T) {
	h, slots, e := newTestHandler()
	doctorID := uuid.New()
	seedAvailable(t, slots, doctorID, baseDate)

	target := "/slots?doctor_id=" + doctorID.String() +
		"&start_date=" + baseDate.Add(-time.Hour).Format(time.RFC3339) +
		"&end_date=" + baseDate.Add(time.Hour).Format(time.RFC3339)
	c, rec := newRequestContext(e, http.MethodGet, target, "", patientPrincipal())

	if err := h.ListSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var list []Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Errorf("expected 1 slot, got %v %s", err, rec.Body.String())
	}
}

func TestHandler_ListSlots_BadParams(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newRequestContext(e, http.MethodGet, "/slots?doctor_id=nope", "", patientPrincipal())

	err := h.ListSlots(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_DeclareAbsence(t *testing.T) {
	h, slots, e := newTestHandler()
	doctorID := uuid.New()
	seedAvailable(t, slots, doctorID, baseDate)

	body := `{"doctor_id":"` + doctorID.String() + `","start_date":"2026-03-02T00:00:00Z","end_date":"2026-03-02T00:00:00Z","reason":"vacation"}`
	c, rec := newRequestContext(e, http.MethodPost, "/absences", body, doctorPrincipal(doctorID))

	if err := h.DeclareAbsence(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if slots.count() != 0 {
		t.Error("available slot in absence range should be gone")
	}
}
