package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/webhook"
	"github.com/flexprice/billingcore/internal/httpclient"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/flexprice/billingcore/internal/pubsub/memory"
	pubsubRouter "github.com/flexprice/billingcore/internal/pubsub/router"
	"github.com/flexprice/billingcore/internal/testutil"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/webhook/handler"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/stretchr/testify/suite"
)

// base64 of a 32 byte key
const testSecret = "whsec_MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

type HandlerSuite struct {
	suite.Suite
	ctx   context.Context
	cfg   *config.Configuration
	store *testutil.InMemoryWebhookStore
	ps    pubsub.PubSub
}

func TestHandler(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = types.WithTenant(context.Background(), "tenant_a")
	s.cfg = config.GetDefaultConfig()
	s.cfg.Webhook.MaxRetries = 2
	s.cfg.Webhook.InitialInterval = time.Millisecond
	s.store = testutil.NewInMemoryWebhookStore()
	s.ps = memory.NewPubSub(logger.NewNoopLogger())
}

func (s *HandlerSuite) addEndpoint(url string, excluded ...string) {
	ep := &webhook.Endpoint{
		ID:             "whep_1",
		URL:            url,
		Secret:         testSecret,
		Enabled:        true,
		ExcludedEvents: types.Metadata{},
		BaseModel:      types.GetDefaultBaseModel(s.ctx),
	}
	for _, e := range excluded {
		ep.ExcludedEvents[e] = "true"
	}
	s.Require().NoError(s.store.CreateEndpoint(s.ctx, ep))
}

func (s *HandlerSuite) newHandler() handler.Handler {
	return handler.NewHandler(s.ps, s.cfg, s.store, httpclient.NewDefaultClient(time.Second), logger.NewNoopLogger(), nil)
}

func (s *HandlerSuite) event() *types.WebhookEvent {
	return &types.WebhookEvent{
		ID:        "webhook_evt_1",
		EventName: types.WebhookEventInvoicePaid,
		TenantID:  "tenant_a",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Payload:   json.RawMessage(`{"invoice_id":"inv_1"}`),
	}
}

func (s *HandlerSuite) TestDeliverSignsAndLogs() {
	var received http.Header
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	s.addEndpoint(srv.URL)

	s.Require().NoError(s.newHandler().Deliver(s.ctx, s.event()))

	wh, err := svix.NewWebhook(testSecret)
	s.Require().NoError(err)
	s.NoError(wh.Verify(body, received))

	var env map[string]any
	s.Require().NoError(json.Unmarshal(body, &env))
	s.Equal(types.WebhookEventInvoicePaid, env["event"])
	s.Equal(map[string]any{"invoice_id": "inv_1"}, env["data"])

	logs, err := s.store.ListLogs(s.ctx, "webhook_evt_1")
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.True(logs[0].Success)
	s.Equal(1, logs[0].AttemptCount)
	s.Equal(http.StatusOK, logs[0].StatusCode)
}

func (s *HandlerSuite) TestExcludedEventIsSkipped() {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()
	s.addEndpoint(srv.URL, types.WebhookEventInvoicePaid)

	s.Require().NoError(s.newHandler().Deliver(s.ctx, s.event()))
	s.EqualValues(0, atomic.LoadInt32(&hits))
}

func (s *HandlerSuite) TestNoEndpointIsNoop() {
	s.Require().NoError(s.newHandler().Deliver(s.ctx, s.event()))
	logs, err := s.store.ListLogs(s.ctx, "webhook_evt_1")
	s.Require().NoError(err)
	s.Empty(logs)
}

func (s *HandlerSuite) TestFailingEndpointIsRetriedThenPoisoned() {
	s.assertRetriedThenPoisoned(http.StatusInternalServerError)
}

func (s *HandlerSuite) TestClientErrorIsRetriedThenPoisoned() {
	s.assertRetriedThenPoisoned(http.StatusBadRequest)
}

func (s *HandlerSuite) assertRetriedThenPoisoned(status int) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()
	s.addEndpoint(srv.URL)

	poisoned, err := s.ps.Subscribe(context.Background(), pubsubRouter.PoisonTopic)
	s.Require().NoError(err)

	r, err := pubsubRouter.NewRouter(s.ps, logger.NewNoopLogger(), nil, nil)
	s.Require().NoError(err)
	s.newHandler().RegisterHandler(r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()
	defer r.Close()
	<-r.Running()

	payload, err := json.Marshal(s.event())
	s.Require().NoError(err)
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(pubsub.MetadataTenantID, "tenant_a")
	s.Require().NoError(s.ps.Publish(s.ctx, s.cfg.Webhook.Topic, msg))

	select {
	case m := <-poisoned:
		m.Ack()
	case <-time.After(5 * time.Second):
		s.FailNow("message never reached the poison queue")
	}

	s.EqualValues(3, atomic.LoadInt32(&hits))
	logs, err := s.store.ListLogs(s.ctx, "webhook_evt_1")
	s.Require().NoError(err)
	s.Require().Len(logs, 3)
	for i, l := range logs {
		s.False(l.Success)
		s.Equal(i+1, l.AttemptCount)
		s.Equal(status, l.StatusCode)
		s.Equal("boom", l.ResponseBody)
	}
}
