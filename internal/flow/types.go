// Package flow defines declarative page interaction steps and the
// interpreter that runs them against a live page.
package flow

// Step kinds as they appear in the site configuration.
const (
	KindEnsureNotText = "ensure-not-text"
	KindWait          = "wait"
	KindDelay         = "delay"
	KindClickFirst    = "click-first"
	KindCheckText     = "check-text"
	KindBranch        = "branch"
	KindResult        = "result"

	ConditionTextIncludes = "text-includes"
)

// TaskResult is the outcome of a flow. It is exchanged between the page
// and the scheduler through the store, so it must stay plain data.
type TaskResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Fail returns a failed result with the given message.
func Fail(msg string) TaskResult {
	return TaskResult{Success: false, Message: msg}
}

// Step is one of EnsureNotText, Wait, Delay, ClickFirst, CheckText,
// Branch or Result.
type Step interface {
	Kind() string
	isStep()
}

// Steps is an ordered list of steps. Branches nest further lists.
type Steps []Step

// EnsureNotText fails the flow if the text is present, eg a login prompt.
// An empty Selector means the whole page body.
type EnsureNotText struct {
	Selector    string
	Text        string
	FailMessage string
}

// Wait blocks until Selector is present or the timeout elapses. A timeout
// does not fail the flow.
type Wait struct {
	Selector  string
	TimeoutMS int
}

// Delay pauses the flow.
type Delay struct {
	MS int
}

// ClickFirst clicks the first selector that resolves to an element.
type ClickFirst struct {
	Selectors   []string
	FailMessage string
}

// CheckText requires the target text to contain at least one of Includes.
type CheckText struct {
	Selector       string
	Includes       []string
	SuccessMessage string
	FailMessage    string
}

// Branch runs IfTrue or IfFalse depending on Condition.
type Branch struct {
	Condition Condition
	IfTrue    Steps
	IfFalse   Steps
}

// Result ends the flow with a fixed outcome.
type Result struct {
	Success bool
	Message string
}

// Condition is evaluated by Branch steps. text-includes is the only
// supported type.
type Condition struct {
	Type     string `yaml:"type"`
	Selector string `yaml:"selector,omitempty"`
	Text     string `yaml:"text"`
	Negate   bool   `yaml:"negate,omitempty"`
}

func (EnsureNotText) Kind() string { return KindEnsureNotText }
func (Wait) Kind() string          { return KindWait }
func (Delay) Kind() string         { return KindDelay }
func (ClickFirst) Kind() string    { return KindClickFirst }
func (CheckText) Kind() string     { return KindCheckText }
func (Branch) Kind() string        { return KindBranch }
func (Result) Kind() string        { return KindResult }

func (EnsureNotText) isStep() {}
func (Wait) isStep()          {}
func (Delay) isStep()         {}
func (ClickFirst) isStep()    {}
func (CheckText) isStep()     {}
func (Branch) isStep()        {}
func (Result) isStep()        {}
