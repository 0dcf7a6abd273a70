package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	requesterrors "istishara/internal/requests/errors"
	"istishara/internal/requests/validator"
	"istishara/pkg/config"
	apperrors "istishara/pkg/errors"
	"istishara/pkg/logger"
	"istishara/pkg/model"
)

const (
	requestClientID     = "507f1f77bcf86cd799439011"
	requestConsultantID = "507f1f77bcf86cd799439022"
)

type fakeRequestRepo struct {
	mu      sync.Mutex
	records map[string]*model.ConsultationRequest
	nextID  int
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{records: map[string]*model.ConsultationRequest{}}
}

func (r *fakeRequestRepo) put(req *model.ConsultationRequest) *model.ConsultationRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == "" {
		r.nextID++
		req.ID = fmt.Sprintf("request-%03d", r.nextID)
	}
	copied := *req
	r.records[req.ID] = &copied
	return req
}

func (r *fakeRequestRepo) Create(ctx context.Context, req *model.ConsultationRequest) error {
	r.put(req)
	return nil
}

func (r *fakeRequestRepo) FindByID(ctx context.Context, id string) (*model.ConsultationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.records[id]
	if !ok {
		return nil, requesterrors.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *fakeRequestRepo) FindByClient(ctx context.Context, clientID string, status model.RequestStatus, limit int, offset int64) ([]*model.ConsultationRequest, int64, error) {
	return r.filter(func(req *model.ConsultationRequest) bool {
		return req.ClientID == clientID && (status == "" || req.Status == status)
	})
}

func (r *fakeRequestRepo) FindByConsultant(ctx context.Context, consultantID string, status model.RequestStatus, limit int, offset int64) ([]*model.ConsultationRequest, int64, error) {
	return r.filter(func(req *model.ConsultationRequest) bool {
		return req.ConsultantID == consultantID && (status == "" || req.Status == status)
	})
}

func (r *fakeRequestRepo) filter(keep func(*model.ConsultationRequest) bool) ([]*model.ConsultationRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ConsultationRequest
	for _, req := range r.records {
		if keep(req) {
			copied := *req
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRequestRepo) Respond(ctx context.Context, id string, from model.RequestStatus, response string, to model.RequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.records[id]
	if !ok {
		return requesterrors.ErrNotFound
	}
	if req.Status != from {
		return requesterrors.ErrStatusChanged
	}
	req.Response = response
	req.Status = to
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) Notify(ctx context.Context, userID, message, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, userID)
	return nil
}

func (n *fakeNotifier) Close() error { return nil }

type requestFixture struct {
	repo     *fakeRequestRepo
	notifier *fakeNotifier
	svc      RequestService
}

func newRequestFixture() *requestFixture {
	cfg := &config.Config{
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		Log:          logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}),
	}
	f := &requestFixture{
		repo:     newFakeRequestRepo(),
		notifier: &fakeNotifier{},
	}
	f.svc = NewRequestService(f.repo, validator.NewRequestValidator(cfg.Log), f.notifier, cfg)
	return f
}

func asClient(id string) model.Principal {
	return model.Principal{UserID: id, Role: model.RoleClient}
}

func asConsultant(id string) model.Principal {
	return model.Principal{UserID: id, Role: model.RoleProvider}
}

func TestRequestCreate(t *testing.T) {
	t.Run("valid request notifies the consultant", func(t *testing.T) {
		f := newRequestFixture()
		request := &model.ConsultationRequest{
			ConsultantID: requestConsultantID,
			Question:     "How should I structure my consulting agreement?",
		}

		err := f.svc.Create(context.Background(), asClient(requestClientID), request)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if request.Status != model.RequestPending {
			t.Errorf("Status = %q, want %q", request.Status, model.RequestPending)
		}
		if request.ClientID != requestClientID {
			t.Errorf("ClientID = %q, want %q", request.ClientID, requestClientID)
		}
		if len(f.notifier.sent) != 1 || f.notifier.sent[0] != requestConsultantID {
			t.Errorf("notified %v, want [%s]", f.notifier.sent, requestConsultantID)
		}
	})

	t.Run("self-addressed request rejected", func(t *testing.T) {
		f := newRequestFixture()
		request := &model.ConsultationRequest{
			ConsultantID: requestClientID,
			Question:     "Can I send a question to myself just to test?",
		}

		err := f.svc.Create(context.Background(), asClient(requestClientID), request)
		if got := apperrors.CodeOf(err); got != apperrors.CodeSelfBooking {
			t.Errorf("Create() error code = %q, want %q", got, apperrors.CodeSelfBooking)
		}
	})

	t.Run("question too short", func(t *testing.T) {
		f := newRequestFixture()
		request := &model.ConsultationRequest{
			ConsultantID: requestConsultantID,
			Question:     "hi",
		}

		err := f.svc.Create(context.Background(), asClient(requestClientID), request)
		if got := apperrors.CodeOf(err); got != apperrors.CodeValidation {
			t.Errorf("Create() error code = %q, want %q", got, apperrors.CodeValidation)
		}
	})

	t.Run("client cannot preset status or response", func(t *testing.T) {
		f := newRequestFixture()
		request := &model.ConsultationRequest{
			ConsultantID: requestConsultantID,
			Question:     "Is my pre-filled response field ignored by the server?",
			Response:     "pre-filled answer",
			Status:       model.RequestCompleted,
		}

		if err := f.svc.Create(context.Background(), asClient(requestClientID), request); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if request.Status != model.RequestPending || request.Response != "" {
			t.Errorf("status/response not reset: %q %q", request.Status, request.Response)
		}
	})
}

func TestRequestRespond(t *testing.T) {
	seed := func(f *requestFixture, status model.RequestStatus) *model.ConsultationRequest {
		return f.repo.put(&model.ConsultationRequest{
			ClientID:     requestClientID,
			ConsultantID: requestConsultantID,
			Question:     "What are my options for early termination?",
			Status:       status,
		})
	}

	tests := []struct {
		name     string
		from     model.RequestStatus
		target   model.RequestStatus
		actor    model.Principal
		wantCode string
	}{
		{"consultant accepts pending", model.RequestPending, model.RequestAccepted, asConsultant(requestConsultantID), ""},
		{"consultant rejects pending", model.RequestPending, model.RequestRejected, asConsultant(requestConsultantID), ""},
		{"consultant completes pending", model.RequestPending, model.RequestCompleted, asConsultant(requestConsultantID), ""},
		{"consultant completes accepted", model.RequestAccepted, model.RequestCompleted, asConsultant(requestConsultantID), ""},
		{"client cannot respond", model.RequestPending, model.RequestAccepted, asClient(requestClientID), apperrors.CodeNotAuthorized},
		{"stranger cannot respond", model.RequestPending, model.RequestAccepted, asConsultant("507f1f77bcf86cd799439099"), apperrors.CodeNotAuthorized},
		{"rejected is closed", model.RequestRejected, model.RequestAccepted, asConsultant(requestConsultantID), apperrors.CodeIllegalTransition},
		{"completed is closed", model.RequestCompleted, model.RequestCompleted, asConsultant(requestConsultantID), apperrors.CodeIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRequestFixture()
			seeded := seed(f, tt.from)

			got, err := f.svc.Respond(context.Background(), tt.actor, seeded.ID, &model.RespondInput{
				Response: "Here is my considered answer.",
				Status:   tt.target,
			})

			if tt.wantCode != "" {
				if err == nil {
					t.Fatal("Respond() error = nil, want error")
				}
				if code := apperrors.CodeOf(err); code != tt.wantCode {
					t.Errorf("Respond() error code = %q, want %q", code, tt.wantCode)
				}
				current, _ := f.repo.FindByID(context.Background(), seeded.ID)
				if current.Status != tt.from || current.Response != "" {
					t.Errorf("request mutated by rejected respond: %q %q", current.Status, current.Response)
				}
				return
			}

			if err != nil {
				t.Fatalf("Respond() error = %v", err)
			}
			if got.Status != tt.target {
				t.Errorf("Status = %q, want %q", got.Status, tt.target)
			}
			if got.Response == "" {
				t.Error("Response not stored")
			}
			// The client hears about the answer.
			if len(f.notifier.sent) != 1 || f.notifier.sent[0] != requestClientID {
				t.Errorf("notified %v, want [%s]", f.notifier.sent, requestClientID)
			}
		})
	}
}

func TestRequestRespondSanitizesResponse(t *testing.T) {
	f := newRequestFixture()
	seeded := f.repo.put(&model.ConsultationRequest{
		ClientID:     requestClientID,
		ConsultantID: requestConsultantID,
		Question:     "Does the response survive messy whitespace?",
		Status:       model.RequestPending,
	})

	got, err := f.svc.Respond(context.Background(), asConsultant(requestConsultantID), seeded.ID, &model.RespondInput{
		Response: "  line one\r\nline two\t\twith   runs  ",
		Status:   model.RequestCompleted,
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if strings.Contains(got.Response, "\r") || strings.HasPrefix(got.Response, " ") {
		t.Errorf("Response not sanitized: %q", got.Response)
	}
}

func TestRequestListMine(t *testing.T) {
	f := newRequestFixture()
	f.repo.put(&model.ConsultationRequest{ClientID: requestClientID, ConsultantID: requestConsultantID, Question: "first question, long enough", Status: model.RequestPending})
	f.repo.put(&model.ConsultationRequest{ClientID: requestClientID, ConsultantID: requestConsultantID, Question: "second question, long enough", Status: model.RequestCompleted})
	ctx := context.Background()

	all, total, err := f.svc.ListMine(ctx, asClient(requestClientID), "", 50, 0)
	if err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Errorf("client sees %d requests, want 2", total)
	}

	pending, total, err := f.svc.ListMine(ctx, asConsultant(requestConsultantID), model.RequestPending, 50, 0)
	if err != nil {
		t.Fatalf("ListMine(pending) error = %v", err)
	}
	if total != 1 || len(pending) != 1 {
		t.Errorf("consultant sees %d pending requests, want 1", total)
	}

	if _, _, err := f.svc.ListMine(ctx, asClient(requestClientID), "bogus", 50, 0); apperrors.CodeOf(err) != apperrors.CodeInvalidInput {
		t.Errorf("ListMine(bogus) error = %v, want INVALID_INPUT", err)
	}
}
