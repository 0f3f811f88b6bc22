package plan

// Cursor points at one micro-section. The zero value is the first one.
type Cursor struct {
	Topic int `json:"topic"`
	Sub   int `json:"sub"`
	Micro int `json:"micro"`
}

// Step describes what an Advance crossed.
type Step int

const (
	// StepMicro moved to the next micro-section of the same subtopic.
	StepMicro Step = iota
	// StepSubtopic moved to the first micro-section of the next subtopic.
	StepSubtopic
	// StepTopic moved to the first micro-section of the next topic.
	StepTopic
	// StepDone means the plan is exhausted.
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepMicro:
		return "micro"
	case StepSubtopic:
		return "subtopic"
	case StepTopic:
		return "topic"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// Exhausted reports whether c points past the last topic.
func (p Plan) Exhausted(c Cursor) bool {
	return c.Topic >= len(p.Topics)
}

// At returns the topic, subtopic and micro-section under c. ok is false when
// c does not point at an existing micro-section.
func (p Plan) At(c Cursor) (t Topic, s Subtopic, micro string, ok bool) {
	if c.Topic < 0 || c.Topic >= len(p.Topics) {
		return Topic{}, Subtopic{}, "", false
	}
	t = p.Topics[c.Topic]
	if c.Sub < 0 || c.Sub >= len(t.Subtopics) {
		return t, Subtopic{}, "", false
	}
	s = t.Subtopics[c.Sub]
	if c.Micro < 0 || c.Micro >= len(s.MicroSections) {
		return t, s, "", false
	}
	return t, s, s.MicroSections[c.Micro], true
}

// Last returns the cursor of the final micro-section. The plan must be normalized.
func (p Plan) Last() Cursor {
	if len(p.Topics) == 0 {
		return Cursor{}
	}
	ti := len(p.Topics) - 1
	subs := p.Topics[ti].Subtopics
	if len(subs) == 0 {
		return Cursor{Topic: ti}
	}
	si := len(subs) - 1
	return Cursor{Topic: ti, Sub: si, Micro: max(len(subs[si].MicroSections)-1, 0)}
}

// Advance moves c one micro-section forward, rolling over subtopic and topic
// boundaries. Once exhausted the cursor stays put and StepDone is returned on
// every call.
func (p Plan) Advance(c Cursor) (Cursor, Step) {
	if p.Exhausted(c) {
		return c, StepDone
	}

	t := p.Topics[c.Topic]
	if c.Sub < len(t.Subtopics) && c.Micro+1 < len(t.Subtopics[c.Sub].MicroSections) {
		return Cursor{Topic: c.Topic, Sub: c.Sub, Micro: c.Micro + 1}, StepMicro
	}
	if c.Sub+1 < len(t.Subtopics) {
		return Cursor{Topic: c.Topic, Sub: c.Sub + 1}, StepSubtopic
	}
	if c.Topic+1 < len(p.Topics) {
		return Cursor{Topic: c.Topic + 1}, StepTopic
	}
	return Cursor{Topic: len(p.Topics)}, StepDone
}
