package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// EnqueuedJob is a job captured by RecordingQueue
type EnqueuedJob struct {
	TenantID string
	Topic    string
	Job      jobs.Job
}

// RecordingQueue implements jobs.Queue by recording every job
type RecordingQueue struct {
	mu   sync.Mutex
	jobs []EnqueuedJob
}

func NewRecordingQueue() *RecordingQueue {
	return &RecordingQueue{}
}

func (q *RecordingQueue) Enqueue(ctx context.Context, topic string, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, EnqueuedJob{TenantID: types.GetTenantID(ctx), Topic: topic, Job: job})
	return nil
}

// Jobs returns the jobs enqueued on topic
func (q *RecordingQueue) Jobs(topic string) []jobs.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return lo.FilterMap(q.jobs, func(j EnqueuedJob, _ int) (jobs.Job, bool) {
		return j.Job, j.Topic == topic
	})
}

func (q *RecordingQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
}

// RecordingWebhookPublisher captures published webhook events
type RecordingWebhookPublisher struct {
	mu     sync.Mutex
	events []*types.WebhookEvent
}

func NewRecordingWebhookPublisher() *RecordingWebhookPublisher {
	return &RecordingWebhookPublisher{}
}

func (p *RecordingWebhookPublisher) PublishWebhook(ctx context.Context, event *types.WebhookEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingWebhookPublisher) Close() error { return nil }

// Names returns the published event names in order
func (p *RecordingWebhookPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo.Map(p.events, func(e *types.WebhookEvent, _ int) string { return e.EventName })
}

func (p *RecordingWebhookPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// RecordingNotifier captures queued notifications
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []*interfaces.Notification
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) Send(ctx context.Context, msg *interfaces.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

// Templates returns the templates sent, in order
func (n *RecordingNotifier) Templates() []types.NotificationTemplate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return lo.Map(n.sent, func(m *interfaces.Notification, _ int) types.NotificationTemplate { return m.Template })
}

func (n *RecordingNotifier) Sent() []*interfaces.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*interfaces.Notification(nil), n.sent...)
}

// StaticRenderer renders every document as the same bytes
type StaticRenderer struct {
	Content []byte
}

func (r *StaticRenderer) Render(ctx context.Context, snapshot interfaces.DocumentSnapshot) ([]byte, error) {
	return r.Content, nil
}

// MockPaymentProvider is a testify mock of interfaces.PaymentProvider
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) Charge(ctx context.Context, amount decimal.Decimal, currency, customerRef string, metadata map[string]string) (*interfaces.ChargeResult, error) {
	args := m.Called(ctx, amount, currency, customerRef, metadata)
	res, _ := args.Get(0).(*interfaces.ChargeResult)
	return res, args.Error(1)
}

func (m *MockPaymentProvider) ChargeSavedMethod(ctx context.Context, methodRef string, amount decimal.Decimal, currency string, metadata map[string]string) (*interfaces.ChargeResult, error) {
	args := m.Called(ctx, methodRef, amount, currency, metadata)
	res, _ := args.Get(0).(*interfaces.ChargeResult)
	return res, args.Error(1)
}

func (m *MockPaymentProvider) Refund(ctx context.Context, transactionRef string, amount *decimal.Decimal, currency string) (*interfaces.RefundResult, error) {
	args := m.Called(ctx, transactionRef, amount, currency)
	res, _ := args.Get(0).(*interfaces.RefundResult)
	return res, args.Error(1)
}

func (m *MockPaymentProvider) VerifyWebhook(ctx context.Context, payload []byte, signature string) (*interfaces.ProviderWebhookEvent, error) {
	args := m.Called(ctx, payload, signature)
	res, _ := args.Get(0).(*interfaces.ProviderWebhookEvent)
	return res, args.Error(1)
}

// StaticProviderResolver resolves every tenant to Provider, or fails with Err
type StaticProviderResolver struct {
	Provider interfaces.PaymentProvider
	Err      error
}

func (r *StaticProviderResolver) Resolve(ctx context.Context) (interfaces.PaymentProvider, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Provider, nil
}
