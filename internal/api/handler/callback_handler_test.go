package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loanspur/paymentvalut-sub005/internal/inbound"
	"github.com/loanspur/paymentvalut-sub005/internal/reconcile"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) IngestResult(ctx context.Context, payload []byte) error {
	return m.Called(ctx, payload).Error(0)
}

func (m *MockReconciler) IngestTimeout(ctx context.Context, payload []byte) error {
	return m.Called(ctx, payload).Error(0)
}

type MockInboundProcessor struct {
	mock.Mock
}

func (m *MockInboundProcessor) Process(ctx context.Context, n *inbound.Notification) *inbound.Ack {
	args := m.Called(ctx, n)
	return args.Get(0).(*inbound.Ack)
}

func TestCallbackHandler_Result(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := testHandlerLogger()
	payload := []byte(`{"Result":{"ResultCode":0,"ConversationID":"AG_1"}}`)

	t.Run("AcknowledgesIngestedCallback", func(t *testing.T) {
		reconciler := new(MockReconciler)
		reconciler.On("IngestResult", mock.Anything, payload).Return(nil)
		h := NewCallbackHandler(logger, reconciler)

		router := gin.New()
		router.POST("/callbacks/result", h.Result)

		req, _ := http.NewRequest(http.MethodPost, "/callbacks/result", bytes.NewBuffer(payload))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var ack map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
		assert.Equal(t, float64(0), ack["ResultCode"])
		reconciler.AssertExpectations(t)
	})

	t.Run("AcknowledgesMalformedCallback", func(t *testing.T) {
		reconciler := new(MockReconciler)
		reconciler.On("IngestResult", mock.Anything, mock.Anything).
			Return(reconcile.ErrMalformedCallback)
		h := NewCallbackHandler(logger, reconciler)

		router := gin.New()
		router.POST("/callbacks/result", h.Result)

		req, _ := http.NewRequest(http.MethodPost, "/callbacks/result", bytes.NewBufferString("not json"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		// Redelivering the same garbage helps nobody
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("StorageErrorAsksForRedelivery", func(t *testing.T) {
		reconciler := new(MockReconciler)
		reconciler.On("IngestResult", mock.Anything, mock.Anything).
			Return(errors.New("connection refused"))
		h := NewCallbackHandler(logger, reconciler)

		router := gin.New()
		router.POST("/callbacks/result", h.Result)

		req, _ := http.NewRequest(http.MethodPost, "/callbacks/result", bytes.NewBuffer(payload))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestCallbackHandler_Timeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := testHandlerLogger()
	payload := []byte(`{"Result":{"ConversationID":"AG_1"}}`)

	reconciler := new(MockReconciler)
	reconciler.On("IngestTimeout", mock.Anything, payload).Return(nil)
	h := NewCallbackHandler(logger, reconciler)

	router := gin.New()
	router.POST("/callbacks/timeout", h.Timeout)

	req, _ := http.NewRequest(http.MethodPost, "/callbacks/timeout", bytes.NewBuffer(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	reconciler.AssertExpectations(t)
}

func TestInboundHandler_Notify(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := testHandlerLogger()

	t.Run("ReturnsProcessorAck", func(t *testing.T) {
		processor := new(MockInboundProcessor)
		processor.On("Process", mock.Anything, mock.MatchedBy(func(n *inbound.Notification) bool {
			return n.TransID == "SFC12XYZ" && n.TransAmount == "2500.00"
		})).Return(&inbound.Ack{ResultCode: inbound.AckAccepted, ResultDesc: "accepted"})
		h := NewInboundHandler(logger, processor)

		router := gin.New()
		router.POST("/c2b/notifications", h.Notify)

		body := `{"TransID":"SFC12XYZ","TransAmount":"2500.00","BusinessShortCode":"600986","BillRefNumber":"774451#UMOJA"}`
		req, _ := http.NewRequest(http.MethodPost, "/c2b/notifications", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var ack inbound.Ack
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
		assert.Equal(t, inbound.AckAccepted, ack.ResultCode)
		processor.AssertExpectations(t)
	})

	t.Run("RejectsUnparseableBody", func(t *testing.T) {
		processor := new(MockInboundProcessor)
		h := NewInboundHandler(logger, processor)

		router := gin.New()
		router.POST("/c2b/notifications", h.Notify)

		req, _ := http.NewRequest(http.MethodPost, "/c2b/notifications", bytes.NewBufferString(`{`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var ack inbound.Ack
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
		assert.Equal(t, inbound.AckRejected, ack.ResultCode)
		processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
	})
}
