package flow

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const stepsYAML = `
- type: ensure-not-text
  text: 需要先登录
  fail_message: not logged in
- type: wait
  selector: '#Main input[type="button"]'
  timeout_ms: 8000
- type: click-first
  selectors: ['#Main input[type="button"]', button]
- type: delay
  ms: 1200
- type: branch
  condition:
    type: text-includes
    selector: '#Main'
    text: 已领取
    negate: true
  if_true:
    - type: check-text
      includes: [签到成功, 已签到]
      success_message: ok
      fail_message: check manually
  if_false: []
- type: result
  success: true
  message: done
`

func TestUnmarshalSteps(t *testing.T) {
	var steps Steps
	if err := yaml.Unmarshal([]byte(stepsYAML), &steps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(steps))
	}
	if s, ok := steps[0].(EnsureNotText); !ok || s.Text != "需要先登录" || s.FailMessage != "not logged in" {
		t.Fatalf("unexpected step 0: %#v", steps[0])
	}
	if s, ok := steps[1].(Wait); !ok || s.Selector != `#Main input[type="button"]` || s.TimeoutMS != 8000 {
		t.Fatalf("unexpected step 1: %#v", steps[1])
	}
	if s, ok := steps[2].(ClickFirst); !ok || len(s.Selectors) != 2 || s.Selectors[1] != "button" {
		t.Fatalf("unexpected step 2: %#v", steps[2])
	}
	if s, ok := steps[3].(Delay); !ok || s.MS != 1200 {
		t.Fatalf("unexpected step 3: %#v", steps[3])
	}
	b, ok := steps[4].(Branch)
	if !ok {
		t.Fatalf("unexpected step 4: %#v", steps[4])
	}
	if !b.Condition.Negate || b.Condition.Selector != "#Main" || b.Condition.Type != ConditionTextIncludes {
		t.Fatalf("unexpected condition: %#v", b.Condition)
	}
	if len(b.IfTrue) != 1 {
		t.Fatalf("expected one child step, got %d", len(b.IfTrue))
	}
	if c, ok := b.IfTrue[0].(CheckText); !ok || c.SuccessMessage != "ok" || len(c.Includes) != 2 {
		t.Fatalf("unexpected child step: %#v", b.IfTrue[0])
	}
	if b.IfFalse == nil || len(b.IfFalse) != 0 {
		t.Fatalf("expected empty but present if_false, got %#v", b.IfFalse)
	}
	if s, ok := steps[5].(Result); !ok || !s.Success || s.Message != "done" {
		t.Fatalf("unexpected step 5: %#v", steps[5])
	}
	if err := steps.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestUnmarshalStepsErrors(t *testing.T) {
	tests := []struct {
		input    string
		contains string
	}{
		{"- type: jump\n", `unknown step type "jump"`},
		{"- selector: x\n", "step without type"},
		{"- type: branch\n", "branch step without condition"},
		{"type: wait\n", "steps must be a list"},
	}
	for _, tt := range tests {
		var steps Steps
		err := yaml.Unmarshal([]byte(tt.input), &steps)
		if err == nil || !strings.Contains(err.Error(), tt.contains) {
			t.Errorf("expected error containing %q for %q, got %v", tt.contains, tt.input, err)
		}
	}
}

func TestMarshalStepsRoundTrip(t *testing.T) {
	var steps Steps
	if err := yaml.Unmarshal([]byte(stepsYAML), &steps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := yaml.Marshal(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var again Steps
	if err := yaml.Unmarshal(out, &again); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if len(again) != len(steps) {
		t.Fatalf("expected %d steps, got %d", len(steps), len(again))
	}
	if b := again[4].(Branch); len(b.IfTrue) != 1 || b.IfTrue[0].(CheckText).SuccessMessage != "ok" {
		t.Fatalf("branch did not survive marshalling: %#v", again[4])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		steps    Steps
		contains string
	}{
		{Steps{Wait{}}, "step 0 (wait): selector must not be empty"},
		{Steps{Delay{MS: -1}}, "negative delay"},
		{Steps{ClickFirst{}}, "no selectors"},
		{Steps{ClickFirst{Selectors: []string{"a", ""}}}, "empty selector"},
		{Steps{CheckText{}}, "includes must not be empty"},
		{Steps{EnsureNotText{}}, "text must not be empty"},
		{Steps{EnsureNotText{Text: " \t\n"}}, "text must not be empty"},
		{Steps{CheckText{Includes: []string{"ok", " "}}}, "includes[1] is blank"},
		{Steps{Branch{Condition: Condition{Type: ConditionTextIncludes, Text: "\u3000"}}}, "condition text must not be empty"},
		{Steps{Result{}, nil}, "step 1: empty step"},
		{Steps{Wait{Selector: "div["}}, "invalid selector"},
		{Steps{ClickFirst{Selectors: []string{"#ok", "a:unknown-pseudo(1"}}}, "invalid selector"},
		{Steps{CheckText{Selector: ">>", Includes: []string{"ok"}}}, "invalid selector"},
		{Steps{Branch{Condition: Condition{Type: "url-includes", Text: "x"}}}, "unknown condition type"},
		{
			Steps{Result{}, Branch{
				Condition: Condition{Type: ConditionTextIncludes, Text: "x"},
				IfFalse:   Steps{Wait{}},
			}},
			"step 1 (branch) > if_false > step 0 (wait)",
		},
	}
	for _, tt := range tests {
		err := tt.steps.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.contains) {
			t.Errorf("expected error containing %q, got %v", tt.contains, err)
		}
	}

	valid := Steps{
		EnsureNotText{Text: "Log in"},
		Wait{Selector: `.signin.btn, button, a, div[role="button"]`},
		ClickFirst{Selectors: []string{"#main > button.sign", `button[data-evt="signin"]`}},
		CheckText{Includes: []string{"done"}},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid steps, got %v", err)
	}
}
