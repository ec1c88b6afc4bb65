package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"composite/internal/composite/handler/mocks"
	"composite/internal/composite/models"
	dErrors "composite/pkg/domain-errors"
	"composite/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type CompositeHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
}

func TestCompositeHandlerSuite(t *testing.T) {
	suite.Run(t, new(CompositeHandlerSuite))
}

func (s *CompositeHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(s.service, logger, nil, 0).Register(r)
	s.router = r
}

func (s *CompositeHandlerSuite) do(req *http.Request) (int, []byte) {
	rr := testutil.DoRequest(s.router, req)
	return rr.Code, rr.Body.Bytes()
}

func (s *CompositeHandlerSuite) TestGetAggregate() {
	s.Run("returns the aggregate", func() {
		agg := models.NewAggregate(1, "name", 7,
			[]models.RecommendationSummary{{RecommendationID: 1, Author: "a", Rate: 2, Content: "c"}},
			[]models.ReviewSummary{},
		)
		agg.ServiceAddresses = models.ServiceAddresses{Composite: "cmp", Product: "pro", Recommendation: "rec"}
		s.service.EXPECT().GetAggregate(gomock.Any(), 1, 0, 0).Return(agg, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/composite/1"))
		testutil.AssertStatusOK(s.T(), rr)

		s.JSONEq(`{
			"productId": 1,
			"name": "name",
			"weight": 7,
			"recommendations": [{"recommendationId": 1, "author": "a", "rate": 2, "content": "c"}],
			"reviews": [],
			"serviceAddresses": {"cmp": "cmp", "pro": "pro", "rev": "", "rec": "rec"}
		}`, rr.Body.String())
	})

	s.Run("absent lists are null", func() {
		s.service.EXPECT().GetAggregate(gomock.Any(), 2, 0, 0).Return(models.NewAggregate(2, "n", 1, nil, nil), nil)

		code, body := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/composite/2"))
		s.Equal(http.StatusOK, code)
		var resp map[string]any
		s.Require().NoError(json.Unmarshal(body, &resp))
		s.Contains(resp, "recommendations")
		s.Nil(resp["recommendations"])
		s.Nil(resp["reviews"])
	})

	s.Run("forwards delay and faultPercent", func() {
		s.service.EXPECT().GetAggregate(gomock.Any(), 1, 3, 25).Return(models.NewAggregate(1, "n", 1, nil, nil), nil)
		code, _ := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/composite/1?delay=3&faultPercent=25"))
		s.Equal(http.StatusOK, code)
	})

	s.Run("non-integer id is a bad request", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/composite/no-integer"))
		testutil.AssertStatusAndMessage(s.T(), rr, http.StatusBadRequest, "Type mismatch: productId must be an integer")
	})

	s.Run("non-integer query is a bad request", func() {
		code, _ := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/composite/1?faultPercent=lots"))
		s.Equal(http.StatusBadRequest, code)
	})

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "No product found for productId: 13"), http.StatusNotFound},
		{"invalid input", dErrors.New(dErrors.CodeInvalidInput, "Invalid productId: -1"), http.StatusUnprocessableEntity},
		{"unavailable", dErrors.New(dErrors.CodeUnavailable, "product unreachable"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		s.Run(tt.name+" maps to status", func() {
			s.service.EXPECT().GetAggregate(gomock.Any(), 9, 0, 0).Return(models.Aggregate{}, tt.err)
			rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/composite/9"))
			testutil.AssertStatus(s.T(), rr, tt.status)
			errResp := testutil.UnmarshalErrorResponse(s.T(), rr)
			s.Equal(dErrors.MessageOf(tt.err), errResp.Message)
			s.Equal(tt.status, errResp.Status)
			s.Equal("/composite/9", errResp.Path)
			s.False(errResp.Timestamp.IsZero())
		})
	}

	s.Run("internal errors are not leaked", func() {
		s.service.EXPECT().GetAggregate(gomock.Any(), 1, 0, 0).Return(models.Aggregate{}, io.ErrUnexpectedEOF)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/composite/1"))
		testutil.AssertStatusAndMessage(s.T(), rr, http.StatusInternalServerError, "internal error")
	})
}

func (s *CompositeHandlerSuite) TestCreateAggregate() {
	s.Run("accepted", func() {
		s.service.EXPECT().CreateAggregate(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, agg models.Aggregate) error {
				s.Equal(1, agg.ProductID())
				s.Equal("name", agg.Name)
				s.Require().Len(agg.Recommendations, 1)
				s.Equal("author", agg.Recommendations[0].Author)
				s.Nil(agg.Reviews)
				return nil
			})

		body := AggregateRequest{
			ProductID:       1,
			Name:            "name",
			Weight:          1,
			Recommendations: []RecommendationSummary{{RecommendationID: 1, Author: "author", Rate: 1, Content: "c"}},
		}
		code, _ := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/composite", body))
		s.Equal(http.StatusAccepted, code)
	})

	s.Run("echoed service addresses are ignored", func() {
		s.service.EXPECT().CreateAggregate(gomock.Any(), gomock.Any()).Return(nil)
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/composite",
			`{"productId":1,"name":"n","weight":1,"serviceAddresses":{"cmp":"x","pro":"","rev":"","rec":""}}`)
		code, _ := s.do(req)
		s.Equal(http.StatusAccepted, code)
	})

	s.Run("malformed JSON", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/composite", `{"productId":`))
		testutil.AssertStatusAndMessage(s.T(), rr, http.StatusBadRequest, "invalid JSON body")
	})

	s.Run("unknown fields are rejected", func() {
		code, _ := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/composite", `{"productId":1,"colour":"red"}`))
		s.Equal(http.StatusBadRequest, code)
	})

	s.Run("non JSON content type", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/composite", `{"productId":1}`)
		req.Header.Set("Content-Type", "text/plain")
		code, _ := s.do(req)
		s.Equal(http.StatusUnsupportedMediaType, code)
	})

	s.Run("dispatch rejected", func() {
		s.service.EXPECT().CreateAggregate(gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeDispatchRejected, "event for key 1 rejected: dispatch queue full"))
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/composite", AggregateRequest{ProductID: 1}))
		testutil.AssertStatusAndMessage(s.T(), rr, http.StatusServiceUnavailable, "event for key 1 rejected: dispatch queue full")
	})

	s.Run("invalid product id", func() {
		s.service.EXPECT().CreateAggregate(gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeInvalidInput, "Invalid productId: 0"))
		code, _ := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/composite", AggregateRequest{}))
		s.Equal(http.StatusUnprocessableEntity, code)
	})
}

func (s *CompositeHandlerSuite) TestDeleteAggregate() {
	s.Run("accepted", func() {
		s.service.EXPECT().DeleteAggregate(gomock.Any(), 1).Return(nil)
		code, body := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/composite/1"))
		s.Equal(http.StatusAccepted, code)
		s.Empty(body)
	})

	s.Run("non-integer id", func() {
		code, _ := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/composite/x"))
		s.Equal(http.StatusBadRequest, code)
	})

	s.Run("invalid id", func() {
		s.service.EXPECT().DeleteAggregate(gomock.Any(), -1).Return(dErrors.New(dErrors.CodeInvalidInput, "Invalid productId: -1"))
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/composite/-1"))
		testutil.AssertStatusAndMessage(s.T(), rr, http.StatusUnprocessableEntity, "Invalid productId: -1")
	})
}
