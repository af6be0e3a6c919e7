package engine

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/miradorstack/mirador-sentinel/internal/ledger"
	"github.com/miradorstack/mirador-sentinel/internal/models"
)

type fakeLedger struct {
	mu      sync.Mutex
	rows    []models.FeedbackRecord
	episode []string
	err     error
}

func (f *fakeLedger) Append(episodeID string, rec models.FeedbackRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rec)
	f.episode = append(f.episode, episodeID)
	return nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func newTestEngine(l Ledger) (*Engine, *fakeScheduler) {
	sched := &fakeScheduler{}
	e := New(nil, l, Config{FeedbackWindow: 15 * time.Second},
		WithAfterFunc(sched.AfterFunc),
		WithClock(func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }))
	return e, sched
}

func sample(confidence float64) models.MetricsSample {
	return models.MetricsSample{
		CPU:         confidence,
		Confidence:  confidence,
		AnomalyFlag: models.Classify(confidence) == models.BandHigh,
		Reasons:     []string{"cpu spike"},
	}
}

func TestScenarioSingleEpisode(t *testing.T) {
	e, sched := newTestEngine(&fakeLedger{})

	confidences := []float64{10, 45, 70, 75, 30}
	want := []models.AlertBand{models.BandNormal, models.BandSuspicious, models.BandHigh, models.BandHigh, models.BandNormal}
	var episodeID string

	for i, c := range confidences {
		d := e.Observe(sample(c))
		if d.Band != want[i] {
			t.Fatalf("tick %d: band %s, want %s", i+1, d.Band, want[i])
		}
		switch i {
		case 2:
			if !d.FeedbackEnabled || d.EpisodeID == "" {
				t.Fatalf("tick 3 must open an episode with feedback enabled: %+v", d)
			}
			episodeID = d.EpisodeID
		case 3:
			if !d.FeedbackEnabled || d.EpisodeID != episodeID {
				t.Fatalf("tick 4 must continue the same open episode: %+v", d)
			}
		default:
			if d.FeedbackEnabled || d.EpisodeID != "" {
				t.Fatalf("tick %d must not offer feedback: %+v", i+1, d)
			}
		}
	}

	if sched.count() != 1 {
		t.Fatalf("expected exactly one feedback window armed, got %d", sched.count())
	}
	if !sched.timer(0).stopped {
		t.Fatalf("expected window timer cancelled when the episode closed")
	}
	if e.FeedbackWindowArmed() {
		t.Fatalf("no window should be armed after returning to normal")
	}
}

func TestHighTicksDoNotResetTimer(t *testing.T) {
	e, sched := newTestEngine(nil)
	for i := 0; i < 5; i++ {
		e.Observe(sample(90))
	}
	if sched.count() != 1 {
		t.Fatalf("intermediate high ticks must not re-arm, got %d arms", sched.count())
	}
	if sched.timer(0).d != 15*time.Second {
		t.Fatalf("unexpected window duration %v", sched.timer(0).d)
	}
}

func TestBoundaryConfidences(t *testing.T) {
	e, _ := newTestEngine(nil)
	if d := e.Observe(sample(60.0)); d.Band != models.BandHigh {
		t.Fatalf("60 must be high, got %s", d.Band)
	}
	if d := e.Observe(sample(59.999)); d.Band != models.BandSuspicious {
		t.Fatalf("59.999 must be suspicious, got %s", d.Band)
	}
	if d := e.Observe(sample(40)); d.Band != models.BandSuspicious {
		t.Fatalf("40 must be suspicious, got %s", d.Band)
	}
}

func TestSubmitOncePerEpisode(t *testing.T) {
	l := &fakeLedger{}
	e, _ := newTestEngine(l)

	e.Observe(sample(80))
	accepted, err := e.TrySubmit(models.LabelTrue)
	if err != nil || !accepted {
		t.Fatalf("first submission: accepted=%v err=%v", accepted, err)
	}
	accepted, err = e.TrySubmit(models.LabelFalse)
	if err != nil || accepted {
		t.Fatalf("second submission must be rejected: accepted=%v err=%v", accepted, err)
	}
	if l.count() != 1 {
		t.Fatalf("expected one ledger row, got %d", l.count())
	}

	d := e.Observe(sample(85))
	if d.Band != models.BandHigh || d.FeedbackEnabled {
		t.Fatalf("feedback must stay locked for the rest of the episode: %+v", d)
	}
	if accepted, _ := e.TrySubmit(models.LabelTrue); accepted {
		t.Fatalf("submission later in the same episode must be rejected")
	}
	if l.count() != 1 {
		t.Fatalf("expected one ledger row, got %d", l.count())
	}
}

func TestSubmittedRowUsesEpisodeSample(t *testing.T) {
	l := &fakeLedger{}
	e, _ := newTestEngine(l)

	e.Observe(sample(70))
	e.Observe(sample(95))
	if _, err := e.TrySubmit(models.LabelFalse); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec := l.rows[0]
	if rec.Sample.Confidence != 95 || !rec.PredictedAnomaly || rec.UserLabel != models.LabelFalse {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.Timestamp.Equal(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", rec.Timestamp)
	}
}

func TestConcurrentSubmissionsWriteOneRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback_log.csv")
	e, _ := newTestEngine(ledger.New(path, nil))
	e.Observe(sample(77))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := e.TrySubmit(models.LabelFromBool(i%2 == 0))
			if err != nil {
				t.Errorf("submit: %v", err)
			}
			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one accepted submission, got %d", accepted)
	}
	records, err := ledger.ReadAll(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(records))
	}
}

func TestNewEpisodeResetsLatch(t *testing.T) {
	l := &fakeLedger{}
	e, sched := newTestEngine(l)

	first := e.Observe(sample(70))
	if ok, _ := e.TrySubmit(models.LabelTrue); !ok {
		t.Fatalf("expected first episode submission to be accepted")
	}
	e.Observe(sample(45))
	second := e.Observe(sample(65))

	if second.EpisodeID == first.EpisodeID {
		t.Fatalf("expected a fresh episode")
	}
	if !second.FeedbackEnabled {
		t.Fatalf("new episode must re-enable feedback")
	}
	if sched.count() != 2 {
		t.Fatalf("expected a fresh window per episode, got %d arms", sched.count())
	}
	if ok, _ := e.TrySubmit(models.LabelFalse); !ok {
		t.Fatalf("expected second episode submission to be accepted")
	}
	if l.count() != 2 || l.episode[0] == l.episode[1] {
		t.Fatalf("expected one row per episode, got %v", l.episode)
	}
}

func TestNewEpisodeAfterUnansweredEpisode(t *testing.T) {
	e, sched := newTestEngine(nil)

	e.Observe(sample(70))
	e.Observe(sample(20))
	d := e.Observe(sample(71))

	if !d.FeedbackEnabled {
		t.Fatalf("re-entering high must open a fresh window")
	}
	if sched.count() != 2 {
		t.Fatalf("expected two arms, got %d", sched.count())
	}
	if !sched.timer(0).stopped {
		t.Fatalf("first window must be cancelled when its episode closed")
	}
}

func TestSingleTickExcursionIsAnEpisode(t *testing.T) {
	e, sched := newTestEngine(nil)
	e.Observe(sample(10))
	d := e.Observe(sample(99))
	e.Observe(sample(10))

	if d.EpisodeID == "" || !d.FeedbackEnabled {
		t.Fatalf("single high tick must start an episode: %+v", d)
	}
	if sched.count() != 1 || !sched.timer(0).stopped {
		t.Fatalf("expected one armed then cancelled window")
	}
	if ok, _ := e.TrySubmit(models.LabelTrue); ok {
		t.Fatalf("submission after the episode closed must be rejected")
	}
}

func TestTimerExpiryClosesWindowWithoutLatch(t *testing.T) {
	l := &fakeLedger{}
	e, sched := newTestEngine(l)

	e.Observe(sample(80))
	sched.fire(0)

	if l.count() != 0 {
		t.Fatalf("expiry must not write a ledger row")
	}
	if d := e.Decision(); d.FeedbackEnabled {
		t.Fatalf("expiry must disable feedback immediately: %+v", d)
	}
	if ok, err := e.TrySubmit(models.LabelTrue); ok || err != nil {
		t.Fatalf("late submission must be rejected silently: ok=%v err=%v", ok, err)
	}
	if d := e.Observe(sample(82)); d.FeedbackEnabled {
		t.Fatalf("window must stay closed for the rest of the episode: %+v", d)
	}
	if sched.count() != 1 {
		t.Fatalf("continuation ticks must not re-arm after expiry")
	}
	if l.count() != 0 {
		t.Fatalf("expected no ledger rows, got %d", l.count())
	}

	// The latch was never set, so the next episode behaves normally.
	e.Observe(sample(30))
	if d := e.Observe(sample(90)); !d.FeedbackEnabled {
		t.Fatalf("next episode must offer feedback")
	}
}

func TestSubmissionBeatsTimer(t *testing.T) {
	l := &fakeLedger{}
	e, sched := newTestEngine(l)

	e.Observe(sample(80))
	if ok, _ := e.TrySubmit(models.LabelTrue); !ok {
		t.Fatalf("expected submission to win")
	}
	// The timer callback was already in flight when the submission landed.
	sched.fire(0)

	if l.count() != 1 {
		t.Fatalf("expected one row, got %d", l.count())
	}
	if d := e.Observe(sample(80)); d.FeedbackEnabled {
		t.Fatalf("feedback must remain locked")
	}
}

func TestStaleTimerFromPreviousEpisodeIgnored(t *testing.T) {
	e, sched := newTestEngine(nil)

	e.Observe(sample(80))
	e.Observe(sample(10))
	e.Observe(sample(80))

	sched.fire(0)
	if d := e.Decision(); !d.FeedbackEnabled {
		t.Fatalf("stale expiry from the first episode closed the second window")
	}
	sched.fire(1)
	if d := e.Decision(); d.FeedbackEnabled {
		t.Fatalf("live expiry must close the window")
	}
}

func TestOnTimerExpiryEntryPoint(t *testing.T) {
	e, _ := newTestEngine(nil)

	e.OnTimerExpiry()
	e.Observe(sample(80))
	e.OnTimerExpiry()
	if ok, _ := e.TrySubmit(models.LabelTrue); ok {
		t.Fatalf("expected submission after expiry to be rejected")
	}
	if e.FeedbackWindowArmed() {
		t.Fatalf("expected no armed window after expiry")
	}
}

func TestSubmitOutsideHighRejected(t *testing.T) {
	l := &fakeLedger{}
	e, _ := newTestEngine(l)

	if ok, _ := e.TrySubmit(models.LabelTrue); ok {
		t.Fatalf("submission before any sample must be rejected")
	}
	e.Observe(sample(50))
	if ok, _ := e.TrySubmit(models.LabelTrue); ok {
		t.Fatalf("submission in suspicious band must be rejected")
	}
	if l.count() != 0 {
		t.Fatalf("expected no ledger rows")
	}
}

func TestLedgerFailureStillLatches(t *testing.T) {
	l := &fakeLedger{err: ledger.ErrWriteFailed}
	e, _ := newTestEngine(l)

	e.Observe(sample(88))
	ok, err := e.TrySubmit(models.LabelTrue)
	if !ok {
		t.Fatalf("submission must be accepted even when the write fails")
	}
	if !errors.Is(err, ledger.ErrWriteFailed) {
		t.Fatalf("expected write failure to surface, got %v", err)
	}
	l.err = nil
	if ok, _ := e.TrySubmit(models.LabelTrue); ok {
		t.Fatalf("latch must hold after a failed write")
	}
	if l.count() != 0 {
		t.Fatalf("no row must be written after the latch was set")
	}
}

func TestDecisionSourceAndMessage(t *testing.T) {
	e, _ := newTestEngine(nil)

	s := sample(72.5)
	s.MLFlag = true
	d := e.Observe(s)
	if d.Source != sourceML || d.Message != "Anomaly detected (confidence 72.5%)" {
		t.Fatalf("unexpected high decision %+v", d)
	}
	if len(d.Reasons) != 1 || d.Reasons[0] != "cpu spike" {
		t.Fatalf("unexpected reasons %v", d.Reasons)
	}

	d = e.Observe(sample(45))
	if d.Message != "Suspicious activity (confidence 45.0%)" || d.Source != "" {
		t.Fatalf("unexpected suspicious decision %+v", d)
	}
	if d = e.Observe(sample(5)); d.Message != normalMessage {
		t.Fatalf("unexpected normal decision %+v", d)
	}
}

func TestRealTimerExpiry(t *testing.T) {
	e := New(nil, nil, Config{FeedbackWindow: 20 * time.Millisecond})
	e.Observe(sample(90))

	deadline := time.Now().Add(2 * time.Second)
	for e.Decision().FeedbackEnabled {
		if time.Now().After(deadline) {
			t.Fatalf("feedback window never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if ok, _ := e.TrySubmit(models.LabelTrue); ok {
		t.Fatalf("submission after expiry must be rejected")
	}
}
