package flow

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// rawStep is the configuration form of a step. Which fields are
// relevant depends on Type.
type rawStep struct {
	Type           string     `yaml:"type"`
	Selector       string     `yaml:"selector,omitempty"`
	Selectors      []string   `yaml:"selectors,omitempty"`
	Text           string     `yaml:"text,omitempty"`
	Includes       []string   `yaml:"includes,omitempty"`
	TimeoutMS      int        `yaml:"timeout_ms,omitempty"`
	MS             int        `yaml:"ms,omitempty"`
	Success        bool       `yaml:"success,omitempty"`
	Message        string     `yaml:"message,omitempty"`
	SuccessMessage string     `yaml:"success_message,omitempty"`
	FailMessage    string     `yaml:"fail_message,omitempty"`
	Condition      *Condition `yaml:"condition,omitempty"`
	IfTrue         Steps      `yaml:"if_true,omitempty"`
	IfFalse        Steps      `yaml:"if_false,omitempty"`
}

func (r rawStep) toStep() (Step, error) {
	switch r.Type {
	case KindEnsureNotText:
		return EnsureNotText{Selector: r.Selector, Text: r.Text, FailMessage: r.FailMessage}, nil
	case KindWait:
		return Wait{Selector: r.Selector, TimeoutMS: r.TimeoutMS}, nil
	case KindDelay:
		return Delay{MS: r.MS}, nil
	case KindClickFirst:
		return ClickFirst{Selectors: r.Selectors, FailMessage: r.FailMessage}, nil
	case KindCheckText:
		return CheckText{Selector: r.Selector, Includes: r.Includes, SuccessMessage: r.SuccessMessage, FailMessage: r.FailMessage}, nil
	case KindBranch:
		if r.Condition == nil {
			return nil, errors.New("branch step without condition")
		}
		return Branch{Condition: *r.Condition, IfTrue: r.IfTrue, IfFalse: r.IfFalse}, nil
	case KindResult:
		return Result{Success: r.Success, Message: r.Message}, nil
	case "":
		return nil, errors.New("step without type")
	default:
		return nil, fmt.Errorf("unknown step type %q", r.Type)
	}
}

func fromStep(s Step) rawStep {
	switch st := s.(type) {
	case EnsureNotText:
		return rawStep{Type: KindEnsureNotText, Selector: st.Selector, Text: st.Text, FailMessage: st.FailMessage}
	case Wait:
		return rawStep{Type: KindWait, Selector: st.Selector, TimeoutMS: st.TimeoutMS}
	case Delay:
		return rawStep{Type: KindDelay, MS: st.MS}
	case ClickFirst:
		return rawStep{Type: KindClickFirst, Selectors: st.Selectors, FailMessage: st.FailMessage}
	case CheckText:
		return rawStep{Type: KindCheckText, Selector: st.Selector, Includes: st.Includes, SuccessMessage: st.SuccessMessage, FailMessage: st.FailMessage}
	case Branch:
		c := st.Condition
		return rawStep{Type: KindBranch, Condition: &c, IfTrue: st.IfTrue, IfFalse: st.IfFalse}
	case Result:
		return rawStep{Type: KindResult, Success: st.Success, Message: st.Message}
	}
	return rawStep{}
}

// UnmarshalYAML decodes a sequence of steps, each a mapping with a type key.
func (s *Steps) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: steps must be a list", value.Line)
	}
	steps := make(Steps, 0, len(value.Content))
	for _, n := range value.Content {
		var r rawStep
		if err := n.Decode(&r); err != nil {
			return err
		}
		step, err := r.toStep()
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		steps = append(steps, step)
	}
	*s = steps
	return nil
}

func (s Steps) MarshalYAML() (any, error) {
	raw := make([]rawStep, 0, len(s))
	for _, st := range s {
		raw = append(raw, fromStep(st))
	}
	return raw, nil
}
