package tunnel

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/user/dnstun/internal/permission"
)

type consentPlatform struct {
	granted  bool
	requests []permission.Token
}

func (p *consentPlatform) Granted() bool { return p.granted }

func (p *consentPlatform) Request(token permission.Token) error {
	p.requests = append(p.requests, token)
	return nil
}

type fakeHandle struct {
	name     string
	spec     Spec
	closed   int
	closeErr error
}

func (h *fakeHandle) Name() string { return h.name }

func (h *fakeHandle) Close() error {
	h.closed++
	return h.closeErr
}

type fakeEstablisher struct {
	handles  []*fakeHandle
	failWith error
	closeErr error
}

func (f *fakeEstablisher) Establish(spec Spec) (Handle, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, h := range f.handles {
		if h.closed == 0 {
			return nil, errors.New("interface busy")
		}
	}
	h := &fakeHandle{name: "dnstun0", spec: spec, closeErr: f.closeErr}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeEstablisher) open() int {
	n := 0
	for _, h := range f.handles {
		if h.closed == 0 {
			n++
		}
	}
	return n
}

type recorder struct {
	steps []string
}

func (r *recorder) hook(from, to State) {
	r.steps = append(r.steps, string(from)+">"+string(to))
}

type result struct {
	calls int
	err   error
}

func (r *result) done(err error) {
	r.calls++
	r.err = err
}

func newTestManager(granted bool) (*Manager, *consentPlatform, *fakeEstablisher, *recorder) {
	platform := &consentPlatform{granted: granted}
	est := &fakeEstablisher{}
	rec := &recorder{}
	m := NewManager(permission.NewGate(platform), est, Options{OnTransition: rec.hook})
	return m, platform, est, rec
}

func TestStopOnIdleIsNoop(t *testing.T) {
	m, _, _, rec := newTestManager(true)
	m.Stop()
	m.Stop()
	if m.State() != StateIdle {
		t.Fatalf("state = %s, want idle", m.State())
	}
	if len(rec.steps) != 0 {
		t.Fatalf("unexpected transitions: %v", rec.steps)
	}
}

func TestStartWithGrantedPermission(t *testing.T) {
	m, platform, est, rec := newTestManager(true)
	var res result
	m.Start(Config{PrimaryDNS: "1.1.1.1", SecondaryDNS: "1.0.0.1"}, res.done)

	if res.calls != 1 || res.err != nil {
		t.Fatalf("done = %d calls, err %v", res.calls, res.err)
	}
	if len(platform.requests) != 0 {
		t.Fatalf("no consent request expected")
	}
	want := []string{"idle>permission_pending", "permission_pending>establishing", "establishing>active"}
	if diff := cmp.Diff(want, rec.steps); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
	spec := est.handles[0].spec
	if spec.Address != netip.MustParsePrefix("10.0.0.2/30") {
		t.Fatalf("address = %s", spec.Address)
	}
	if spec.DNS != [2]netip.Addr{netip.MustParseAddr("1.1.1.1"), netip.MustParseAddr("1.0.0.1")} {
		t.Fatalf("dns = %v", spec.DNS)
	}
	if !spec.NonBlocking || spec.Session != DefaultSessionName || spec.MTU != DefaultMTU {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	s := m.Session()
	if s.State != StateActive || s.Interface != "dnstun0" || s.Config.PrimaryDNS != "1.1.1.1" {
		t.Fatalf("unexpected session: %+v", s)
	}
}

func TestStartAppliesDefaultResolvers(t *testing.T) {
	m, _, est, _ := newTestManager(true)
	m.Start(Config{}, nil)

	want := [2]netip.Addr{netip.MustParseAddr("8.8.8.8"), netip.MustParseAddr("8.8.4.4")}
	if est.handles[0].spec.DNS != want {
		t.Fatalf("dns = %v, want %v", est.handles[0].spec.DNS, want)
	}
}

func TestStartTwiceReconfiguresOnce(t *testing.T) {
	m, _, est, rec := newTestManager(true)
	m.Start(Config{PrimaryDNS: "1.1.1.1", SecondaryDNS: "1.0.0.1"}, nil)
	rec.steps = nil

	var res result
	m.Start(Config{PrimaryDNS: "9.9.9.9", SecondaryDNS: "149.112.112.112"}, res.done)
	if res.err != nil {
		t.Fatalf("reconfigure: %v", res.err)
	}

	want := []string{
		"active>stopping", "stopping>idle",
		"idle>permission_pending", "permission_pending>establishing", "establishing>active",
	}
	if diff := cmp.Diff(want, rec.steps); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
	if len(est.handles) != 2 || est.handles[0].closed != 1 || est.open() != 1 {
		t.Fatalf("expected exactly one teardown and one live handle, handles=%d open=%d", len(est.handles), est.open())
	}
	if got := m.Session().Config.PrimaryDNS; got != "9.9.9.9" {
		t.Fatalf("primary = %s, want 9.9.9.9", got)
	}
}

func TestStartRequestsPermissionThenEstablishesOnGrant(t *testing.T) {
	m, platform, est, _ := newTestManager(false)
	var res result
	m.Start(Config{PrimaryDNS: "1.1.1.1", SecondaryDNS: "1.0.0.1"}, res.done)

	if m.State() != StatePermissionPending {
		t.Fatalf("state = %s, want permission_pending", m.State())
	}
	if res.calls != 0 {
		t.Fatalf("done must wait for the permission result")
	}
	if len(platform.requests) != 1 {
		t.Fatalf("expected one consent request, got %d", len(platform.requests))
	}

	m.HandlePermissionResult(platform.requests[0], true)
	if res.calls != 1 || res.err != nil {
		t.Fatalf("done = %d calls, err %v", res.calls, res.err)
	}
	if m.State() != StateActive {
		t.Fatalf("state = %s, want active", m.State())
	}
	spec := est.handles[0].spec
	if spec.Address.String() != "10.0.0.2/30" || spec.DNS[0].String() != "1.1.1.1" || spec.DNS[1].String() != "1.0.0.1" {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	if m.pending != nil {
		t.Fatalf("pending request must be cleared")
	}
}

func TestPermissionDenialReturnsToIdle(t *testing.T) {
	m, platform, est, rec := newTestManager(false)
	var res result
	m.Start(Config{}, res.done)
	m.HandlePermissionResult(platform.requests[0], false)

	if m.State() != StateIdle {
		t.Fatalf("state = %s, want idle", m.State())
	}
	if KindOf(res.err) != KindPermissionDenied || !errors.Is(res.err, permission.ErrDenied) {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if len(est.handles) != 0 {
		t.Fatalf("no interface may be created on denial")
	}
	want := []string{"idle>permission_pending", "permission_pending>idle"}
	if diff := cmp.Diff(want, rec.steps); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
	if m.pending != nil {
		t.Fatalf("pending request must be cleared")
	}
}

func TestSecondStartWhilePendingIsRejected(t *testing.T) {
	m, platform, _, _ := newTestManager(false)
	var first, second result
	m.Start(Config{PrimaryDNS: "1.1.1.1"}, first.done)
	m.Start(Config{PrimaryDNS: "9.9.9.9"}, second.done)

	if KindOf(second.err) != KindPermissionRequired || !errors.Is(second.err, permission.ErrRequestAlreadyPending) {
		t.Fatalf("unexpected second error: %v", second.err)
	}
	if len(platform.requests) != 1 {
		t.Fatalf("expected a single consent request")
	}

	m.HandlePermissionResult(platform.requests[0], true)
	if first.err != nil || m.Session().Config.PrimaryDNS != "1.1.1.1" {
		t.Fatalf("first start should win: err=%v cfg=%+v", first.err, m.Session().Config)
	}
}

func TestEstablishFailureLeavesIdle(t *testing.T) {
	m, _, est, rec := newTestManager(true)
	est.failWith = errors.New("device or resource busy")
	var res result
	m.Start(Config{}, res.done)

	if m.State() != StateIdle {
		t.Fatalf("state = %s, want idle", m.State())
	}
	if KindOf(res.err) != KindEstablishFailed {
		t.Fatalf("unexpected error: %v", res.err)
	}
	want := []string{"idle>permission_pending", "permission_pending>establishing", "establishing>idle"}
	if diff := cmp.Diff(want, rec.steps); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformedAddressFailsEstablish(t *testing.T) {
	m, _, est, _ := newTestManager(true)
	var res result
	m.Start(Config{PrimaryDNS: "1.1.1", SecondaryDNS: "1.0.0.1"}, res.done)

	var se *StartError
	if !errors.As(res.err, &se) || se.Kind != KindEstablishFailed || se.Reason != "invalid resolver address" {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if len(est.handles) != 0 || m.State() != StateIdle {
		t.Fatalf("expected idle with no interface")
	}
}

func TestStopSwallowsReleaseError(t *testing.T) {
	m, _, est, _ := newTestManager(true)
	est.closeErr = errors.New("ebusy")
	m.Start(Config{}, nil)
	m.Stop()

	if m.State() != StateIdle {
		t.Fatalf("state = %s, want idle", m.State())
	}
	if est.handles[0].closed != 1 {
		t.Fatalf("handle must be released once")
	}
	if s := m.Session(); s.Interface != "" || s.Config != (Config{}) {
		t.Fatalf("session not cleared: %+v", s)
	}
}

func TestStopWhilePendingAbortsStart(t *testing.T) {
	m, platform, est, _ := newTestManager(false)
	var res result
	m.Start(Config{}, res.done)
	m.Stop()

	if m.State() != StateIdle {
		t.Fatalf("state = %s, want idle", m.State())
	}
	if KindOf(res.err) != KindAborted || !errors.Is(res.err, ErrStartAborted) {
		t.Fatalf("unexpected error: %v", res.err)
	}

	// The late answer clears the gate but must not establish anything.
	m.HandlePermissionResult(platform.requests[0], true)
	if m.State() != StateIdle || len(est.handles) != 0 {
		t.Fatalf("late grant must be ignored")
	}
	if res.calls != 1 {
		t.Fatalf("done called %d times", res.calls)
	}
}

func TestStartAfterStopWhilePendingIssuesFreshRequest(t *testing.T) {
	m, platform, est, _ := newTestManager(false)
	var first, second result
	m.Start(Config{}, first.done)
	m.Stop()

	m.Start(Config{PrimaryDNS: "1.1.1.1", SecondaryDNS: "1.0.0.1"}, second.done)
	if second.calls != 0 {
		t.Fatalf("second start finished early: %v", second.err)
	}
	if m.State() != StatePermissionPending || len(platform.requests) != 2 {
		t.Fatalf("state = %s requests = %v, want a fresh request", m.State(), platform.requests)
	}

	m.HandlePermissionResult(platform.requests[0], true)
	if m.State() != StatePermissionPending {
		t.Fatalf("stale answer changed state to %s", m.State())
	}
	m.HandlePermissionResult(platform.requests[1], true)
	if second.calls != 1 || second.err != nil || m.State() != StateActive || est.open() != 1 {
		t.Fatalf("second start: calls=%d err=%v state=%s", second.calls, second.err, m.State())
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]State{
		{StateIdle, StatePermissionPending},
		{StatePermissionPending, StateEstablishing},
		{StatePermissionPending, StateIdle},
		{StateEstablishing, StateActive},
		{StateEstablishing, StateIdle},
		{StateActive, StateStopping},
		{StateStopping, StateIdle},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s should be allowed", tr[0], tr[1])
		}
	}
	for _, tr := range [][2]State{
		{StateIdle, StateActive},
		{StateIdle, StateEstablishing},
		{StateActive, StateIdle},
		{StatePermissionPending, StateActive},
		{StateStopping, StateActive},
	} {
		if CanTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s must be rejected", tr[0], tr[1])
		}
	}
}
