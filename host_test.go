package subsys

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// fakeSubsystem records lifecycle calls into a shared journal
type fakeSubsystem struct {
	name    string
	id      uuid.UUID
	journal *journal

	configureResult Result
	startResult     Result
	stopResult      Result
	blockStop       bool

	gotProps Properties
}

type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(call string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, call)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

func newFake(j *journal, name string) *fakeSubsystem {
	return &fakeSubsystem{name: name, id: uuid.New(), journal: j}
}

func (f *fakeSubsystem) Name() string  { return f.name }
func (f *fakeSubsystem) ID() uuid.UUID { return f.id }

func (f *fakeSubsystem) Attributes() Attributes {
	return NewAttributes(Identity{ID: f.id, Name: f.name}, nil)
}

func (f *fakeSubsystem) Configure(_ context.Context, cfg Config) Result {
	cfg.MustValidate(f.name)
	f.gotProps = cfg.Properties
	f.journal.add("configure " + f.name)
	return f.configureResult
}

func (f *fakeSubsystem) Start(context.Context) Result {
	f.journal.add("start " + f.name)
	return f.startResult
}

func (f *fakeSubsystem) Stop(ctx context.Context) Result {
	f.journal.add("stop " + f.name)
	if f.blockStop {
		<-ctx.Done()
		return NotOK("fake.stop", "fake.err.timeout")
	}
	return f.stopResult
}

var _ Subsystem = (*fakeSubsystem)(nil)

type HostSuite struct {
	suite.Suite

	journal *journal
	reg     *prometheus.Registry
	host    *Host
}

func TestHostSuite(t *testing.T) {
	suite.Run(t, new(HostSuite))
}

func (s *HostSuite) SetupTest() {
	s.journal = &journal{}
	s.reg = prometheus.NewRegistry()
	s.host = NewHost(NewDirectory(), Properties{"port": "8080"}, WithRegisterer(s.reg))
}

func (s *HostSuite) register(names ...string) []*fakeSubsystem {
	fakes := make([]*fakeSubsystem, 0, len(names))
	for _, name := range names {
		f := newFake(s.journal, name)
		s.Require().NoError(s.host.Register(f))
		fakes = append(fakes, f)
	}
	return fakes
}

func (s *HostSuite) TestRegisterRejectsDuplicates() {
	a := s.register("a")[0]

	err := s.host.Register(newFake(s.journal, "a"))
	s.ErrorIs(err, ErrDuplicateName)

	twin := newFake(s.journal, "b")
	twin.id = a.id
	s.ErrorIs(s.host.Register(twin), ErrDuplicateID)

	s.Error(s.host.Register(newFake(s.journal, "")))
	s.Len(s.host.Subsystems(), 1)
}

func (s *HostSuite) TestLifecycleOrder() {
	fakes := s.register("a", "b", "c")
	ctx := context.Background()

	s.Require().NoError(s.host.Start(ctx))
	s.NoError(s.host.Healthy())

	for _, f := range fakes {
		s.Equal("8080", f.gotProps.GetString("port", ""))
		state, ok := s.host.State(f.name)
		s.True(ok)
		s.Equal(StateStarted, state)
	}

	s.Require().NoError(s.host.Stop(ctx))

	s.Equal([]string{
		"configure a", "configure b", "configure c",
		"start a", "start b", "start c",
		"stop c", "stop b", "stop a",
	}, s.journal.list())

	state, _ := s.host.State("b")
	s.Equal(StateStopped, state)
	s.ErrorIs(s.host.Healthy(), ErrNotStarted)
}

func (s *HostSuite) TestPropertiesAreNotShared() {
	fakes := s.register("a", "b")
	s.Require().NoError(s.host.Start(context.Background()))

	fakes[0].gotProps["port"] = "1"
	s.Equal("8080", fakes[1].gotProps.GetString("port", ""))
}

func (s *HostSuite) TestConfigureFailureHaltsStart() {
	fakes := s.register("a", "b", "c")
	fakes[1].configureResult = NotOK("b.configure", "b.err.onConfig")

	err := s.host.Start(context.Background())

	var opErr *OpError
	s.Require().ErrorAs(err, &opErr)
	s.Equal(PhaseConfigure, opErr.Op)
	s.Equal("b", opErr.Subsystem)
	s.ErrorIs(err, ErrNotOK)

	s.Equal([]string{"configure a", "configure b"}, s.journal.list())

	state, _ := s.host.State("b")
	s.Equal(StateUnconfigured, state)
}

func (s *HostSuite) TestStartFailureStopsStartedInReverse() {
	fakes := s.register("a", "b", "c")
	fakes[1].startResult = NotOK("b.start", "b.err.onStart")

	err := s.host.Start(context.Background())

	var opErr *OpError
	s.Require().ErrorAs(err, &opErr)
	s.Equal(PhaseStart, opErr.Op)
	s.Equal("b", opErr.Subsystem)

	s.Equal([]string{
		"configure a", "configure b", "configure c",
		"start a", "start b",
		"stop b", "stop a",
	}, s.journal.list())

	s.ErrorIs(s.host.Start(context.Background()), ErrHostStarted)
}

func (s *HostSuite) TestStopCollectsFailures() {
	fakes := s.register("a", "b", "c")
	fakes[0].stopResult = NotOK("a.stop", "a.err.onStop")
	fakes[2].stopResult = NotOK("c.stop", "c.err.onStop")

	s.Require().NoError(s.host.Start(context.Background()))
	err := s.host.Stop(context.Background())

	var merr *MultiError
	s.Require().ErrorAs(err, &merr)
	s.Len(merr.Errors, 2)
	s.ErrorIs(err, ErrNotOK)
	s.Contains(s.journal.list(), "stop b")

	s.NoError(s.host.Stop(context.Background()))
}

func (s *HostSuite) TestStopTimeout() {
	s.host = NewHost(NewDirectory(), nil, WithStopTimeout(20*time.Millisecond))
	fakes := s.register("slow")
	fakes[0].blockStop = true

	s.Require().NoError(s.host.Start(context.Background()))

	begin := time.Now()
	err := s.host.Stop(context.Background())
	s.Error(err)
	s.Less(time.Since(begin), 5*time.Second)
}

func (s *HostSuite) TestRun() {
	s.register("a", "b")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.host.Run(ctx) }()

	s.Eventually(func() bool { return s.host.Healthy() == nil }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("Run did not return after cancel")
	}
	s.Equal("stop a", s.journal.list()[len(s.journal.list())-1])
}

func (s *HostSuite) TestRegisterAfterStart() {
	s.register("a")
	s.Require().NoError(s.host.Start(context.Background()))
	s.ErrorIs(s.host.Register(newFake(s.journal, "late")), ErrHostStarted)
}

func (s *HostSuite) TestMetrics() {
	fakes := s.register("a", "b")
	fakes[1].stopResult = NotOK("b.stop", "b.err.onStop")

	s.Require().NoError(s.host.Start(context.Background()))
	s.Equal(float64(StateStarted), testutil.ToFloat64(s.host.metrics.state.WithLabelValues("a")))

	_ = s.host.Stop(context.Background())

	s.Equal(1.0, testutil.ToFloat64(s.host.metrics.phases.WithLabelValues("a", "start", "OK")))
	s.Equal(1.0, testutil.ToFloat64(s.host.metrics.phases.WithLabelValues("b", "stop", "NOT_OK")))
	s.Equal(float64(StateStopped), testutil.ToFloat64(s.host.metrics.state.WithLabelValues("b")))
	s.Equal(6, testutil.CollectAndCount(s.host.metrics.duration))
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]string {
	attrs := make(map[attribute.Key]string)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	return attrs
}

func (s *HostSuite) tracedHost() *tracetest.SpanRecorder {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	s.T().Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s.host = NewHost(NewDirectory(), nil, WithTracer(tp.Tracer(TracerName)))
	return rec
}

func (s *HostSuite) TestTracingSpans() {
	rec := s.tracedHost()
	a := s.register("a")[0]

	s.Require().NoError(s.host.Start(context.Background()))
	s.Require().NoError(s.host.Stop(context.Background()))

	spans := rec.Ended()
	s.Require().Len(spans, 3)

	for i, name := range []string{"subsys.configure", "subsys.start", "subsys.stop"} {
		span := spans[i]
		s.Equal(name, span.Name())
		s.Equal(codes.Unset, span.Status().Code)

		attrs := spanAttrs(span)
		s.Equal("a", attrs["subsys.name"])
		s.Equal(a.id.String(), attrs["subsys.id"])
		s.Equal("OK", attrs["subsys.status"])
		s.NotContains(attrs, attribute.Key("subsys.code"))
	}
}

func (s *HostSuite) TestTracingFailedStart() {
	rec := s.tracedHost()
	fakes := s.register("a", "b")
	fakes[1].startResult = NotOK("b.start", "b.err.onStart")

	s.Require().Error(s.host.Start(context.Background()))

	var names []string
	var failed sdktrace.ReadOnlySpan
	for _, span := range rec.Ended() {
		names = append(names, span.Name()+" "+spanAttrs(span)["subsys.name"])
		if span.Status().Code == codes.Error {
			failed = span
		}
	}
	s.Equal([]string{
		"subsys.configure a", "subsys.configure b",
		"subsys.start a", "subsys.start b",
		"subsys.stop b", "subsys.stop a",
	}, names)

	s.Require().NotNil(failed)
	s.Equal("subsys.start", failed.Name())
	attrs := spanAttrs(failed)
	s.Equal("b", attrs["subsys.name"])
	s.Equal("NOT_OK", attrs["subsys.status"])
	s.Equal("b.start", attrs["subsys.code"])
	s.Contains(failed.Status().Description, "b.err.onStart")
}

func TestHostWithoutNameServerPanics(t *testing.T) {
	h := NewHost(nil, nil)
	if err := h.Register(newFake(&journal{}, "a")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	defer func() {
		r := recover()
		var perr *PreconditionError
		if err, ok := r.(error); !ok || !errors.As(err, &perr) {
			t.Fatalf("recovered %v, want *PreconditionError", r)
		}
	}()
	_ = h.Start(context.Background())
}
