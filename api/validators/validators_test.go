package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

type itemBody struct {
	Name     string `json:"name" validate:"required"`
	Quantity string `json:"quantity" validate:"required"`
}

type requestBody struct {
	Items []itemBody `json:"items" validate:"required,min=1,dive"`
	Total int64      `json:"total" validate:"gt=0"`
}

func TestDecodeJSONBodyReportsNestedFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[{"name":"rice"}],"total":0}`))
	var body requestBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["items[0].quantity"])
	require.Equal(t, "must be greater than 0", details["total"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[],"extra":true}`))
	var body requestBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("phaseId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	_, err := ParseUUIDParam(req, "phaseId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseUUIDParam(req, "missing")
	require.Error(t, err)
}

func TestParseOptionalUUID(t *testing.T) {
	empty := " "
	id, err := ParseOptionalUUID(&empty, "planned_meal_id")
	require.NoError(t, err)
	require.Nil(t, id)

	bad := "x"
	_, err = ParseOptionalUUID(&bad, "planned_meal_id")
	require.Error(t, err)
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[{"name":"rice","quantity":"5kg"}],"total":1}{}`))
	var body requestBody
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	padding := strings.Repeat("a", maxBodyBytes)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[{"name":"`+padding+`","quantity":"1"}],"total":1}`))
	var body requestBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, "request body too large", typed.Message())
}

func TestSanitizeString(t *testing.T) {
	decomposed := "Ca\u0301 kho\u0302\u0300" // "Cá khồ" typed with combining marks
	require.Equal(t, "Cá khồ", SanitizeString("  "+decomposed+"\t\x00 ", 0))
	require.Equal(t, "Gạo", SanitizeString("Gạo tẻ", 3))
	require.Equal(t, "line one\nline two", SanitizeString("line one\nline two", 100))
}
