package progression

import (
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"github.com/ecoloop/ecoloop/internal/clock"
	"github.com/ecoloop/ecoloop/internal/playback"
	"github.com/ecoloop/ecoloop/internal/quiz"
)

func TestController_CorrectAdvances(t *testing.T) {
	c := New(5)

	got := c.Handle(SegmentComplete{})
	if want := []Effect{ShowQuiz{Segment: 0}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("effects = %#v, want %#v", got, want)
	}
	if c.State() != StateQuizPending {
		t.Errorf("State = %v, want quizPending", c.State())
	}

	c.Handle(QuizSubmitted{Correct: true})
	if c.State() != StateCorrectWait {
		t.Errorf("State = %v, want correctWait", c.State())
	}

	got = c.Handle(QuizCorrect{})
	want := []Effect{HideQuiz{}, ResumePlayback{Segment: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("effects = %#v, want %#v", got, want)
	}
	if c.Index() != 1 || c.State() != StatePlaying {
		t.Errorf("Index = %d State = %v, want 1 playing", c.Index(), c.State())
	}
}

func TestController_IncorrectReplays(t *testing.T) {
	c := New(5)
	c.Handle(SegmentComplete{})
	c.Handle(QuizSubmitted{Correct: false})
	if c.State() != StateIncorrectWait {
		t.Fatalf("State = %v, want incorrectWait", c.State())
	}

	got := c.Handle(QuizIncorrect{})
	want := []Effect{
		HideQuiz{},
		RestartSegment{Segment: 0},
		ScheduleRestartReset{After: 500 * time.Millisecond},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("effects = %#v, want %#v", got, want)
	}
	if c.Index() != 0 {
		t.Errorf("Index = %d, want 0", c.Index())
	}
	if !c.Restarting() {
		t.Error("expected restarting after incorrect answer")
	}

	c.Handle(RestartSettled{})
	if c.Restarting() {
		t.Error("RestartSettled should clear the restart flag")
	}

	// A second failure replays again.
	c.Handle(SegmentComplete{})
	c.Handle(QuizSubmitted{Correct: false})
	if effects := c.Handle(QuizIncorrect{}); len(effects) != 3 {
		t.Errorf("second replay effects = %#v", effects)
	}
	if !c.Restarting() || c.Index() != 0 {
		t.Errorf("Restarting = %v Index = %d", c.Restarting(), c.Index())
	}
}

func TestController_IgnoresOutOfOrderEvents(t *testing.T) {
	tests := []struct {
		name  string
		setup []Event
		ev    Event
	}{
		{"correct without quiz", nil, QuizCorrect{}},
		{"incorrect without quiz", nil, QuizIncorrect{}},
		{"submit without quiz", nil, QuizSubmitted{Correct: true}},
		{"boundary while quiz pending", []Event{SegmentComplete{}}, SegmentComplete{}},
		{"incorrect after correct verdict", []Event{SegmentComplete{}, QuizSubmitted{Correct: true}}, QuizIncorrect{}},
		{"correct after incorrect verdict", []Event{SegmentComplete{}, QuizSubmitted{Correct: false}}, QuizCorrect{}},
		{"video complete before last segment", nil, VideoComplete{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(5)
			for _, ev := range tt.setup {
				c.Handle(ev)
			}
			before := c.State()
			if got := c.Handle(tt.ev); got != nil {
				t.Errorf("effects = %#v, want nil", got)
			}
			if c.State() != before || c.Index() != 0 {
				t.Errorf("state changed to %v index %d", c.State(), c.Index())
			}
		})
	}
}

func TestController_LastSegment(t *testing.T) {
	c := New(5)
	for i := 0; i < 4; i++ {
		c.Handle(SegmentComplete{})
		c.Handle(QuizSubmitted{Correct: true})
		c.Handle(QuizCorrect{})
	}
	if c.Index() != 4 {
		t.Fatalf("Index = %d, want 4", c.Index())
	}

	got := c.Handle(VideoComplete{})
	if want := []Effect{VideoDone{}}; !reflect.DeepEqual(got, want) {
		t.Errorf("effects = %#v, want %#v", got, want)
	}
	if c.State() != StateAllSegmentsDone || !c.Done() {
		t.Errorf("State = %v Done = %v", c.State(), c.Done())
	}
	if got := c.Handle(VideoComplete{}); got != nil {
		t.Errorf("VideoDone must be emitted once, got %#v", got)
	}
}

func TestController_QuizOnLastSegment(t *testing.T) {
	c := New(2)
	c.Handle(SegmentComplete{})
	c.Handle(QuizSubmitted{Correct: true})
	c.Handle(QuizCorrect{})

	c.Handle(SegmentComplete{})
	c.Handle(QuizSubmitted{Correct: true})
	got := c.Handle(QuizCorrect{})
	if want := []Effect{HideQuiz{}}; !reflect.DeepEqual(got, want) {
		t.Errorf("effects = %#v, want %#v", got, want)
	}
	if c.State() != StateAllSegmentsDone || c.Index() != 1 {
		t.Errorf("State = %v Index = %d", c.State(), c.Index())
	}
	if got := c.Handle(VideoComplete{}); len(got) != 1 {
		t.Errorf("VideoComplete effects = %#v, want VideoDone", got)
	}
}

func TestController_IndexMonotoneAndBounded(t *testing.T) {
	events := []Event{
		SegmentComplete{}, QuizSubmitted{Correct: true}, QuizSubmitted{Correct: false},
		QuizCorrect{}, QuizIncorrect{}, RestartSettled{}, VideoComplete{},
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for run := 0; run < 50; run++ {
		c := New(5)
		prev := 0
		for step := 0; step < 500; step++ {
			c.Handle(events[rng.IntN(len(events))])
			if c.Index() < prev {
				t.Fatalf("run %d step %d: index decreased %d -> %d", run, step, prev, c.Index())
			}
			if c.Index() > 4 {
				t.Fatalf("run %d step %d: index %d out of bounds", run, step, c.Index())
			}
			prev = c.Index()
		}
	}
}

func TestState_String(t *testing.T) {
	if StateIncorrectWait.String() != "incorrectWait" {
		t.Errorf("String = %q", StateIncorrectWait.String())
	}
	if State(42).String() != "State(42)" {
		t.Errorf("String = %q", State(42).String())
	}
}

func scenarioQuestions() []quiz.Question {
	qs := make([]quiz.Question, 5)
	for i := range qs {
		qs[i] = quiz.Question{
			ID:           i + 1,
			Text:         "Which habit supports sustainability?",
			Options:      quiz.Options{"Wasting food", "Using reusable bags", "Burning trash"},
			CorrectIndex: 1,
		}
	}
	return qs
}

func newScenario(t *testing.T) (*Runner, *playback.SimulatedMedia, *clock.Fake) {
	t.Helper()
	media := playback.NewSimulatedMedia(300, false)
	if err := media.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	clk := clock.NewFake(time.Unix(1000, 0))
	gate := playback.NewGate(media, 300, 5)
	return NewRunner(gate, scenarioQuestions(), clk, nil), media, clk
}

func watch(r *Runner, m *playback.SimulatedMedia, seconds float64) []Effect {
	var all []Effect
	for step := 0.0; step < seconds; step += 0.25 {
		ended := m.Advance(0.25)
		all = append(all, r.OnTimeUpdate(m.Position())...)
		if ended {
			all = append(all, r.OnEnded()...)
		}
	}
	return all
}

func answer(t *testing.T, r *Runner, clk *clock.Fake, option int) []Effect {
	t.Helper()
	if err := r.Select(option); err != nil {
		t.Fatalf("Select: %v", err)
	}
	v, err := r.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if early := r.Resolve(); early != nil {
		t.Fatalf("resolved before delay: %#v", early)
	}
	clk.Advance(v.Delay)
	return r.Resolve()
}

func TestRunner_FiveMinuteScenario(t *testing.T) {
	r, media, clk := newScenario(t)

	if effects := watch(r, media, 59); len(effects) != 0 {
		t.Fatalf("effects before 60s = %#v", effects)
	}
	effects := watch(r, media, 1)
	if !reflect.DeepEqual(effects, []Effect{ShowQuiz{Segment: 0}}) {
		t.Fatalf("effects at 60s = %#v, want ShowQuiz(0)", effects)
	}
	if !media.Paused() || r.Challenge() == nil {
		t.Fatal("expected paused media with a quiz open")
	}

	// Wrong answer: replay segment 0.
	effects = answer(t, r, clk, 0)
	if len(effects) != 3 {
		t.Fatalf("incorrect effects = %#v", effects)
	}
	if media.Position() != 0 || media.Paused() {
		t.Errorf("position = %v paused = %v, want 0 playing", media.Position(), media.Paused())
	}
	if r.Controller().Index() != 0 || !r.Controller().Restarting() {
		t.Errorf("Index = %d Restarting = %v", r.Controller().Index(), r.Controller().Restarting())
	}
	if r.Challenge() != nil {
		t.Error("quiz should be hidden after the verdict")
	}
	r.RestartSettled()

	// Watch again and answer correctly.
	effects = watch(r, media, 60)
	if !reflect.DeepEqual(effects, []Effect{ShowQuiz{Segment: 0}}) {
		t.Fatalf("effects on replay = %#v", effects)
	}
	effects = answer(t, r, clk, 1)
	if !reflect.DeepEqual(effects, []Effect{HideQuiz{}, ResumePlayback{Segment: 1}}) {
		t.Fatalf("correct effects = %#v", effects)
	}
	if r.Controller().Index() != 1 || r.Gate().Index() != 1 {
		t.Errorf("controller index %d gate index %d, want 1", r.Controller().Index(), r.Gate().Index())
	}
	if media.Paused() {
		t.Error("playback should resume after a correct answer")
	}
}

func TestRunner_LastSegmentEndsVideo(t *testing.T) {
	r, media, clk := newScenario(t)
	for seg := 0; seg < 4; seg++ {
		effects := watch(r, media, 60)
		if len(effects) != 1 {
			t.Fatalf("segment %d: effects = %#v", seg, effects)
		}
		answer(t, r, clk, 1)
	}
	if r.Controller().Index() != 4 {
		t.Fatalf("Index = %d, want 4", r.Controller().Index())
	}

	effects := watch(r, media, 60)
	if !reflect.DeepEqual(effects, []Effect{VideoDone{}}) {
		t.Fatalf("effects = %#v, want VideoDone", effects)
	}
	if r.Gate().Progress() != 100 {
		t.Errorf("Progress = %v, want 100", r.Gate().Progress())
	}
}

func TestRunner_SeekAheadSnapsBack(t *testing.T) {
	r, media, _ := newScenario(t)
	media.Seek(200)
	if effects := r.OnTimeUpdate(media.Position()); effects != nil {
		t.Errorf("effects = %#v, want none", effects)
	}
	if got, want := media.Position(), 60-playback.SnapEpsilon; got != want {
		t.Errorf("position = %v, want %v", got, want)
	}
	if effects := watch(r, media, 0.25); !reflect.DeepEqual(effects, []Effect{ShowQuiz{Segment: 0}}) {
		t.Errorf("effects after snap = %#v, want ShowQuiz(0)", effects)
	}
}

func TestRunner_PlaceholderWhenQuestionMissing(t *testing.T) {
	media := playback.NewSimulatedMedia(100, false)
	_ = media.Play()
	clk := clock.NewFake(time.Unix(0, 0))
	r := NewRunner(playback.NewGate(media, 100, 5), nil, clk, nil)

	watch(r, media, 20)
	ch := r.Challenge()
	if ch == nil || !ch.Question().IsPlaceholder() {
		t.Fatal("expected placeholder question")
	}
	effects := answer(t, r, clk, 0)
	if !reflect.DeepEqual(effects, []Effect{HideQuiz{}, ResumePlayback{Segment: 1}}) {
		t.Errorf("effects = %#v", effects)
	}
}
