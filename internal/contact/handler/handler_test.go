package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"contactlink/internal/contact/handler/mocks"
	"contactlink/internal/contact/models"
	"contactlink/internal/platform/middleware"
	dErrors "contactlink/pkg/domain-errors"
	"contactlink/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type IdentifyHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestIdentifyHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentifyHandlerSuite))
}

func (s *IdentifyHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(s.service, logger, nil, 0)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *IdentifyHandlerSuite) post(body string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/identify", body))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	return *testutil.UnmarshalResponse[map[string]any](t, w)
}

func (s *IdentifyHandlerSuite) TestIdentifyReturnsConsolidatedContact() {
	s.service.EXPECT().
		Identify(gomock.Any(), models.IdentifyRequest{Email: "mcfly@hillvalley.edu", PhoneNumber: "123456"}).
		Return(models.NewIdentifyResponse(models.IdentityView{
			PrimaryID:    1,
			Emails:       []string{"lorraine@hillvalley.edu", "mcfly@hillvalley.edu"},
			PhoneNumbers: []string{"123456"},
			SecondaryIDs: []int64{23},
		}), nil)

	w := s.post(`{"email":"mcfly@hillvalley.edu","phoneNumber":"123456"}`)

	s.Require().Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get(middleware.RequestIDHeader))
	s.Equal("application/json", w.Header().Get("Content-Type"))

	contact := decodeBody(s.T(), w)["contact"].(map[string]any)
	s.EqualValues(1, contact["primaryContactId"])
	s.Equal([]any{"lorraine@hillvalley.edu", "mcfly@hillvalley.edu"}, contact["emails"])
	s.Equal([]any{"123456"}, contact["phoneNumbers"])
	s.Equal([]any{float64(23)}, contact["secondaryContactIds"])
}

func (s *IdentifyHandlerSuite) TestNumericPhoneIsAccepted() {
	s.service.EXPECT().
		Identify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req models.IdentifyRequest) (*models.IdentifyResponse, error) {
			s.Equal("", req.Email)
			s.Equal("919191", req.PhoneNumber.String())
			return models.NewIdentifyResponse(models.IdentityView{PrimaryID: 4, PhoneNumbers: []string{"919191"}}), nil
		})

	w := s.post(`{"email":null,"phoneNumber":919191}`)

	s.Require().Equal(http.StatusOK, w.Code)
	contact := decodeBody(s.T(), w)["contact"].(map[string]any)
	s.Equal([]any{}, contact["emails"])
	s.Equal([]any{}, contact["secondaryContactIds"])
}

func (s *IdentifyHandlerSuite) TestMalformedBodyIsBadRequest() {
	cases := map[string]string{
		"not json":     `{"email":`,
		"object phone": `{"phoneNumber":{"n":1}}`,
		"array body":   `[1,2]`,
	}
	for name, body := range cases {
		s.Run(name, func() {
			testutil.AssertStatusAndError(s.T(), s.post(body), http.StatusBadRequest, "bad_request")
		})
	}
}

func (s *IdentifyHandlerSuite) TestServiceErrorsMapToStatus() {
	cases := []struct {
		name        string
		err         error
		status      int
		code        string
		description bool
	}{
		{
			name:        "invalid input",
			err:         dErrors.New(dErrors.CodeBadRequest, "email or phoneNumber is required"),
			status:      http.StatusBadRequest,
			code:        "bad_request",
			description: true,
		},
		{
			name:   "storage failure",
			err:    dErrors.Wrap(errors.New("connection reset"), dErrors.CodeInternal, "storage failure"),
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
		{
			name:        "retries exhausted",
			err:         dErrors.New(dErrors.CodeConflict, "concurrent update, retry the request"),
			status:      http.StatusConflict,
			code:        "conflict",
			description: true,
		},
		{
			name:   "lock unavailable",
			err:    dErrors.Wrap(errors.New("redis down"), dErrors.CodeUnavailable, "failed to acquire identifier lock"),
			status: http.StatusServiceUnavailable,
			code:   "service_unavailable",
		},
		{
			name:   "timeout",
			err:    dErrors.Wrap(context.DeadlineExceeded, dErrors.CodeTimeout, "reconciliation timed out"),
			status: http.StatusGatewayTimeout,
			code:   "timeout",
		},
		{
			name:   "untyped error",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().Identify(gomock.Any(), gomock.Any()).Return(nil, tc.err)

			w := s.post(`{"email":"doc@hillvalley.edu"}`)

			s.Equal(tc.status, w.Code)
			body := decodeBody(s.T(), w)
			s.Equal(tc.code, body["error"])
			_, hasDescription := body["error_description"]
			s.Equal(tc.description, hasDescription)
		})
	}
}

func (s *IdentifyHandlerSuite) TestRequestIDIsPropagated() {
	s.service.EXPECT().
		Identify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ models.IdentifyRequest) (*models.IdentifyResponse, error) {
			s.Equal("req-42", middleware.GetRequestID(ctx))
			return models.NewIdentifyResponse(models.IdentityView{PrimaryID: 1}), nil
		})

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/identify", `{"email":"a@b.c"}`)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, w.Code)
	s.Equal("req-42", w.Header().Get(middleware.RequestIDHeader))
}

func TestOnlyPostIsRouted(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := New(mocks.NewMockService(ctrl), slog.New(slog.NewTextHandler(io.Discard, nil)), nil, 0)
	r := chi.NewRouter()
	h.Register(r)

	w := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/identify"))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
