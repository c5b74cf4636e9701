package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/link-coach/internal/coach"
	"github.com/ashureev/link-coach/internal/domain"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeGenerator struct {
	calls  atomic.Int32
	report domain.Report
	err    error
	gate   chan struct{}
}

func (f *fakeGenerator) GenerateReport(_ context.Context, userID, leadershipType string, _ json.RawMessage) (domain.Report, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return domain.Report{}, f.err
	}
	r := f.report
	r.UserID = userID
	r.LeadershipType = leadershipType
	return r, nil
}

var session = domain.Session{Token: "t", UserID: "u1", LeadershipType: "개별비전형"}

func wait(t *testing.T, a *Acquisition) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := a.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return s
}

func TestAcquisitionReady(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{report: domain.Report{ReportID: "report_1", Interpretation: "본문"}}
	readyCh := make(chan domain.Report, 1)
	a := New(gen, WithLogger(quietLogger), OnReady(func(r domain.Report) { readyCh <- r }))

	if s := a.State(); s.Status != StatusLoading {
		t.Fatalf("expected loading before start, got %s", s.Status)
	}
	if !a.Start(context.Background(), session) {
		t.Fatal("first Start must trigger the fetch")
	}

	s := wait(t, a)
	if s.Status != StatusReady || s.Report == nil || s.Report.ReportID != "report_1" {
		t.Fatalf("unexpected state %+v", s)
	}
	if r := <-readyCh; r.UserID != "u1" {
		t.Fatalf("OnReady got %+v", r)
	}
}

func TestAcquisitionRunsOnce(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{report: domain.Report{ReportID: "r"}}
	a := New(gen, WithLogger(quietLogger))

	a.Start(context.Background(), session)
	if a.Start(context.Background(), session) {
		t.Fatal("second Start must be a no-op")
	}
	wait(t, a)
	if a.Start(context.Background(), session) {
		t.Fatal("Start after resolution must be a no-op")
	}
	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("expected one backend call, got %d", got)
	}
}

func TestAcquisitionErrorMessage(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{err: coach.NewGenerationError("failed to generate report", errors.New("HTTP 502: <html>gateway</html>"))}
	a := New(gen, WithLogger(quietLogger))
	a.Start(context.Background(), session)

	s := wait(t, a)
	if s.Status != StatusError {
		t.Fatalf("expected error state, got %s", s.Status)
	}
	if want := "리포트 생성에 실패했습니다: failed to generate report"; s.Error != want {
		t.Fatalf("error = %q, want %q", s.Error, want)
	}
	if s.Report != nil {
		t.Fatal("error state must not carry a report")
	}
}

func TestAcquisitionDiscardsAfterClose(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{report: domain.Report{ReportID: "r"}, gate: make(chan struct{})}
	a := New(gen, WithLogger(quietLogger))
	a.Start(context.Background(), session)

	a.Close()
	close(gen.gate)
	s := wait(t, a)
	if s.Status != StatusLoading {
		t.Fatalf("closed acquisition must not change state, got %s", s.Status)
	}
}
