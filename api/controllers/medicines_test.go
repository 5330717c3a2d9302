package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/internal/medicines"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
)

type testMedicinesService struct {
	createFn func(ctx context.Context, input medicines.CreateMedicineInput) (medicines.MedicineDTO, error)
	getFn    func(ctx context.Context, id uuid.UUID) (medicines.MedicineDTO, error)
	searchFn func(ctx context.Context, query string) ([]medicines.MedicineDTO, error)
}

func (s *testMedicinesService) Create(ctx context.Context, input medicines.CreateMedicineInput) (medicines.MedicineDTO, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return medicines.MedicineDTO{}, nil
}

func (s *testMedicinesService) GetByID(ctx context.Context, id uuid.UUID) (medicines.MedicineDTO, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return medicines.MedicineDTO{}, nil
}

func (s *testMedicinesService) List(ctx context.Context) ([]medicines.MedicineDTO, error) {
	return nil, nil
}

func (s *testMedicinesService) Search(ctx context.Context, query string) ([]medicines.MedicineDTO, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, query)
	}
	return nil, nil
}

func (s *testMedicinesService) Update(ctx context.Context, id uuid.UUID, input medicines.UpdateMedicineInput) (medicines.MedicineDTO, error) {
	return medicines.MedicineDTO{}, nil
}

func (s *testMedicinesService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func controllerTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withURLParam(req *http.Request, name, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestMedicinesCreateSuccess(t *testing.T) {
	created := medicines.MedicineDTO{ID: uuid.New(), Name: "Paracetamol 500mg"}
	svc := &testMedicinesService{
		createFn: func(ctx context.Context, input medicines.CreateMedicineInput) (medicines.MedicineDTO, error) {
			if input.Name != "Paracetamol 500mg" {
				t.Fatalf("unexpected name %q", input.Name)
			}
			return created, nil
		},
	}

	body := strings.NewReader(`{"name":"Paracetamol 500mg","description":"analgesico"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/medicines", body)
	resp := httptest.NewRecorder()
	MedicinesCreate(svc, controllerTestLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data medicines.MedicineDTO `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != created.ID {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestMedicinesCreateRejectsShortName(t *testing.T) {
	svc := &testMedicinesService{
		createFn: func(ctx context.Context, input medicines.CreateMedicineInput) (medicines.MedicineDTO, error) {
			t.Fatal("service must not be called on validation failure")
			return medicines.MedicineDTO{}, nil
		},
	}

	body := strings.NewReader(`{"name":"x"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/medicines", body)
	resp := httptest.NewRecorder()
	MedicinesCreate(svc, controllerTestLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %q", envelope.Error.Code)
	}
	if _, ok := envelope.Error.Details["name"]; !ok {
		t.Fatalf("expected name detail, got %v", envelope.Error.Details)
	}
}

func TestMedicinesCreateRejectsUnknownFields(t *testing.T) {
	svc := &testMedicinesService{}

	body := strings.NewReader(`{"name":"Paracetamol","price":10}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/medicines", body)
	resp := httptest.NewRecorder()
	MedicinesCreate(svc, controllerTestLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMedicinesGetRejectsMalformedID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/medicines/not-a-uuid", nil)
	req = withURLParam(req, "id", "not-a-uuid")
	resp := httptest.NewRecorder()
	MedicinesGet(&testMedicinesService{}, controllerTestLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMedicinesGetMapsNotFound(t *testing.T) {
	svc := &testMedicinesService{
		getFn: func(ctx context.Context, id uuid.UUID) (medicines.MedicineDTO, error) {
			return medicines.MedicineDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "medicine not found")
		},
	}

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/medicines/"+id.String(), nil)
	req = withURLParam(req, "id", id.String())
	resp := httptest.NewRecorder()
	MedicinesGet(svc, controllerTestLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
