package plan

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/lessontutor/internal/domain"
)

func samplePlan() Plan {
	return Plan{
		Title: "Photosynthesis",
		Topics: []Topic{
			{ID: 1, Title: "Light", Subtopics: []Subtopic{
				{ID: 1, Title: "Photons", MicroSections: []string{"m1", "m2"}},
				{ID: 2, Title: "Chlorophyll", MicroSections: []string{"m3"}},
			}},
			{ID: 2, Title: "Sugar", Subtopics: []Subtopic{
				{ID: 1, Title: "Calvin cycle", MicroSections: []string{"m4"}},
			}},
		},
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	p := samplePlan()
	data, err := Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode("photosynthesis", data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != p.Title || len(got.Topics) != 2 {
		t.Fatalf("unexpected plan %+v", got)
	}
	if got.Topics[0].Subtopics[0].MicroSections[1] != "m2" {
		t.Error("micro-sections lost")
	}
}

func TestDecode_JSONFieldNames(t *testing.T) {
	data := []byte(`{"title":"T","topics":[{"topic_id":7,"title":"A","subtopics":[{"sub_id":3,"title":"B","micro_sections":["x"]}]}]}`)
	p, err := Decode("t", data)
	if err != nil {
		t.Fatal(err)
	}
	if p.Topics[0].ID != 7 || p.Topics[0].Subtopics[0].ID != 3 {
		t.Errorf("ids not decoded: %+v", p.Topics[0])
	}
}

func TestDecode_LegacySections(t *testing.T) {
	data := []byte(`{
		"title": "Old lesson",
		"sections": [
			{"title": "Intro", "teaching_text": "hello"},
			{"title": "Empty"},
			{"content": "from content"}
		]
	}`)

	p, err := Decode("old_lesson", data)
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Old lesson" || len(p.Topics) != 1 {
		t.Fatalf("unexpected plan %+v", p)
	}
	topic := p.Topics[0]
	if topic.ID != 1 || topic.Title != "Old lesson" {
		t.Errorf("unexpected topic %+v", topic)
	}
	if len(topic.Subtopics) != 2 {
		t.Fatalf("sections without text must be skipped, got %+v", topic.Subtopics)
	}
	if topic.Subtopics[0].MicroSections[0] != "hello" {
		t.Errorf("teaching_text not used: %+v", topic.Subtopics[0])
	}
	if topic.Subtopics[1].Title != "Part 3" || topic.Subtopics[1].MicroSections[0] != "from content" {
		t.Errorf("content fallback or default title wrong: %+v", topic.Subtopics[1])
	}
}

func TestDecode_LegacyWithoutTitle(t *testing.T) {
	p, err := Decode("lesson_x", []byte(`{"sections":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "lesson_x" || p.Topics[0].Title != "Lesson" {
		t.Errorf("unexpected titles: %q / %q", p.Title, p.Topics[0].Title)
	}
	if got := p.Topics[0].Subtopics[0].Title; got != MainIdeasTitle {
		t.Errorf("empty legacy plan should normalize to %q, got %q", MainIdeasTitle, got)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode("x", []byte(`not json`)); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Decode("x", []byte(`{"title":"no body"}`)); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestNormalize_FillsEmptyLevels(t *testing.T) {
	p := Plan{Title: "x", Topics: []Topic{
		{Title: "A"},
		{Title: "B", Subtopics: []Subtopic{{Title: "B1"}}},
	}}
	p.Normalize()

	if p.Topics[0].ID != 1 || p.Topics[1].ID != 2 {
		t.Errorf("topic ids not assigned: %+v", p.Topics)
	}
	if p.Topics[0].Subtopics[0].Title != MainIdeasTitle {
		t.Errorf("missing subtopic fallback: %+v", p.Topics[0])
	}
	if p.Topics[1].Subtopics[0].MicroSections[0] != PlaceholderMicro {
		t.Errorf("missing micro fallback: %+v", p.Topics[1])
	}

	empty := Plan{}
	empty.Normalize()
	if _, _, micros := empty.Size(); micros != 1 || empty.Topics[0].Title != OverviewTitle {
		t.Errorf("empty plan normalized to %+v", empty)
	}
}

func TestAdvance_WalksEveryMicroSection(t *testing.T) {
	p := samplePlan()

	var (
		c     Cursor
		seen  []string
		steps []Step
	)
	_, _, m, ok := p.At(c)
	if !ok {
		t.Fatal("zero cursor must point at the first micro-section")
	}
	seen = append(seen, m)

	for {
		var step Step
		c, step = p.Advance(c)
		steps = append(steps, step)
		if step == StepDone {
			break
		}
		_, _, m, ok := p.At(c)
		if !ok {
			t.Fatalf("cursor %+v is not addressable", c)
		}
		seen = append(seen, m)
	}

	if got := len(seen); got != 4 {
		t.Fatalf("visited %d micro-sections, want 4: %v", got, seen)
	}
	for i, want := range []string{"m1", "m2", "m3", "m4"} {
		if seen[i] != want {
			t.Errorf("position %d = %q, want %q", i, seen[i], want)
		}
	}
	wantSteps := []Step{StepMicro, StepSubtopic, StepTopic, StepDone}
	for i := range wantSteps {
		if steps[i] != wantSteps[i] {
			t.Errorf("step %d = %v, want %v", i, steps[i], wantSteps[i])
		}
	}
}

func TestAdvance_DoneIsAbsorbing(t *testing.T) {
	p := samplePlan()
	c := Cursor{Topic: len(p.Topics)}
	for i := 0; i < 3; i++ {
		next, step := p.Advance(c)
		if step != StepDone || next != c {
			t.Fatalf("call %d: got %+v %v", i, next, step)
		}
	}
	if !p.Exhausted(c) {
		t.Error("expected exhausted cursor")
	}
	if _, _, _, ok := p.At(c); ok {
		t.Error("exhausted cursor must not resolve")
	}
}

func TestLast(t *testing.T) {
	p := samplePlan()
	if got := p.Last(); got != (Cursor{Topic: 1, Sub: 0, Micro: 0}) {
		t.Errorf("Last() = %+v", got)
	}
}
