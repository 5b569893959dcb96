package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/authlog/internal/model"
)

type mockApplicationService struct {
	createFn        func(ctx context.Context, name, description string) (*model.Application, error)
	getFn           func(ctx context.Context, id string) (*model.Application, error)
	listFn          func(ctx context.Context) ([]*model.Application, error)
	listForFilterFn func(ctx context.Context) ([]model.ApplicationRef, error)
	updateFn        func(ctx context.Context, id, name, description string) (*model.Application, error)
	deleteFn        func(ctx context.Context, id string) error
}

func (m *mockApplicationService) Create(ctx context.Context, name, description string) (*model.Application, error) {
	if m.createFn != nil {
		return m.createFn(ctx, name, description)
	}
	return &model.Application{ID: "app-1", Name: name, Description: description}, nil
}
func (m *mockApplicationService) Get(ctx context.Context, id string) (*model.Application, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Application{ID: id, Name: "My App"}, nil
}
func (m *mockApplicationService) List(ctx context.Context) ([]*model.Application, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockApplicationService) ListForFilter(ctx context.Context) ([]model.ApplicationRef, error) {
	if m.listForFilterFn != nil {
		return m.listForFilterFn(ctx)
	}
	return nil, nil
}
func (m *mockApplicationService) Update(ctx context.Context, id, name, description string) (*model.Application, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, name, description)
	}
	return &model.Application{ID: id, Name: name, Description: description}, nil
}
func (m *mockApplicationService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func newApplicationRouter(svc ApplicationServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewApplicationHandler(svc)
	r.Route("/api/applications", func(r chi.Router) {
		r.Get("/", h.ListApplications)
		r.Post("/", h.CreateApplication)
		r.Get("/filter", h.ListApplicationsForFilter)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetApplication)
			r.Put("/", h.UpdateApplication)
			r.Delete("/", h.DeleteApplication)
		})
	})
	return r
}

func TestCreateApplication(t *testing.T) {
	router := newApplicationRouter(&mockApplicationService{})

	req := httptest.NewRequest(http.MethodPost, "/api/applications",
		strings.NewReader(`{"name":"My App","description":"desc"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var body applicationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSONであるべき: %v", err)
	}
	if body.Name != "My App" {
		t.Errorf("name = %s", body.Name)
	}
}

func TestCreateApplication_InvalidBody(t *testing.T) {
	router := newApplicationRouter(&mockApplicationService{})

	req := httptest.NewRequest(http.MethodPost, "/api/applications", strings.NewReader(`{broken`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("壊れたJSONは400になるべき: %d", rec.Code)
	}
}

func TestCreateApplication_DuplicateNameIs409(t *testing.T) {
	svc := &mockApplicationService{
		createFn: func(ctx context.Context, name, description string) (*model.Application, error) {
			return nil, model.NewAppNameExistsError(name)
		},
	}
	router := newApplicationRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/applications",
		strings.NewReader(`{"name":"Taken"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("APP_NAME_EXISTSは409になるべき: %d", rec.Code)
	}
}

func TestGetApplication_NotFoundIs404(t *testing.T) {
	svc := &mockApplicationService{
		getFn: func(ctx context.Context, id string) (*model.Application, error) {
			return nil, model.NewAppNotFoundError()
		},
	}
	router := newApplicationRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/applications/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("APP_NOT_FOUNDは404になるべき: %d", rec.Code)
	}
}

func TestListApplicationsForFilter(t *testing.T) {
	svc := &mockApplicationService{
		listForFilterFn: func(ctx context.Context) ([]model.ApplicationRef, error) {
			return []model.ApplicationRef{{ID: "a", Name: "Alpha"}, {ID: "b", Name: "Beta"}}, nil
		},
	}
	router := newApplicationRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/applications/filter", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body []appRefResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body) != 2 {
		t.Errorf("ID+名前の一覧が返るべき: %s", rec.Body.String())
	}
}

func TestDeleteApplication_GuardedIs409(t *testing.T) {
	svc := &mockApplicationService{
		deleteFn: func(ctx context.Context, id string) error {
			return model.NewAppHasEventsError(7)
		},
	}
	router := newApplicationRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/applications/app-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("APP_HAS_EVENTSは409になるべき: %d", rec.Code)
	}
	var body apiErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("統一エラーフォーマットであるべき: %v", err)
	}
	if !strings.Contains(body.Message, "7") {
		t.Errorf("メッセージに件数が含まれるべき: %s", body.Message)
	}
}

func TestDeleteApplication_Success(t *testing.T) {
	router := newApplicationRouter(&mockApplicationService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/applications/app-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
