package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/and161185/promptvault/internal/metrics"
	"github.com/and161185/promptvault/internal/model"
)

type countingMetrics struct {
	metrics.Nop

	mu        sync.Mutex
	mutations map[string]int
	skipped   int
	failed    map[string]int
	bootstrap []string
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{mutations: map[string]int{}, failed: map[string]int{}}
}

func (m *countingMetrics) RecordMutation(op, outcome string) {
	m.mu.Lock()
	m.mutations[op+"/"+outcome]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordRefreshFailed(slice string) {
	m.mu.Lock()
	m.failed[slice]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordHydrationSkipped() {
	m.mu.Lock()
	m.skipped++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordBootstrap(stage string) {
	m.mu.Lock()
	m.bootstrap = append(m.bootstrap, stage)
	m.mu.Unlock()
}

func (m *countingMetrics) mutation(op, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutations[op+"/"+outcome]
}

type harness struct {
	client  *fakeClient
	session *fakeSession
	ob      *scriptedOnboarding
	metrics *countingMetrics
	mp      *Marketplace
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{session: &fakeSession{}, ob: &scriptedOnboarding{}, metrics: newCountingMetrics()}
	h.client = newFakeClient(h.session.Current)
	h.mp = NewMarketplace(Deps{
		Client:             h.client,
		Session:            h.session,
		Onboarding:         h.ob,
		HydrateConcurrency: 2,
		Metrics:            h.metrics,
	})
	return h
}

// loginAs switches the session to who, who already having a named profile.
func (h *harness) loginAs(t *testing.T, who model.Identity) {
	t.Helper()
	h.client.seedProfile(model.Profile{Identity: who, DisplayName: string(who)})
	h.session.mu.Lock()
	h.session.next = who
	h.session.mu.Unlock()
	got, err := h.mp.Login(context.Background())
	if err != nil || got != who {
		t.Fatalf("login as %s: got %s, %v", who, got, err)
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
