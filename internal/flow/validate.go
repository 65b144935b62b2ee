package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Validate checks the structure of the steps without running them.
func (s Steps) Validate() error {
	return s.validate(nil)
}

func (s Steps) validate(path []string) error {
	var errs []error
	for i, step := range s {
		if step == nil {
			errs = append(errs, fmt.Errorf("%s: empty step", strings.Join(append(path[:len(path):len(path)], fmt.Sprintf("step %d", i)), " > ")))
			continue
		}
		p := append(path[:len(path):len(path)], fmt.Sprintf("step %d (%s)", i, step.Kind()))
		if err := validateStep(step, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateStep(step Step, path []string) error {
	where := strings.Join(path, " > ")
	switch st := step.(type) {
	case EnsureNotText:
		if Normalize(st.Text) == "" {
			return fmt.Errorf("%s: text must not be empty", where)
		}
		return checkSelector(where, st.Selector, true)
	case Wait:
		if st.Selector == "" {
			return fmt.Errorf("%s: selector must not be empty", where)
		}
		if err := checkSelector(where, st.Selector, false); err != nil {
			return err
		}
		if st.TimeoutMS < 0 {
			return fmt.Errorf("%s: negative timeout", where)
		}
	case Delay:
		if st.MS < 0 {
			return fmt.Errorf("%s: negative delay", where)
		}
	case ClickFirst:
		if len(st.Selectors) == 0 {
			return fmt.Errorf("%s: no selectors", where)
		}
		for _, sel := range st.Selectors {
			if sel == "" {
				return fmt.Errorf("%s: empty selector", where)
			}
			if err := checkSelector(where, sel, false); err != nil {
				return err
			}
		}
	case CheckText:
		if len(st.Includes) == 0 {
			return fmt.Errorf("%s: includes must not be empty", where)
		}
		for i, needle := range st.Includes {
			if Normalize(needle) == "" {
				return fmt.Errorf("%s: includes[%d] is blank", where, i)
			}
		}
		return checkSelector(where, st.Selector, true)
	case Branch:
		if st.Condition.Type != ConditionTextIncludes {
			return fmt.Errorf("%s: unknown condition type %q", where, st.Condition.Type)
		}
		if Normalize(st.Condition.Text) == "" {
			return fmt.Errorf("%s: condition text must not be empty", where)
		}
		if err := checkSelector(where, st.Condition.Selector, true); err != nil {
			return err
		}
		return errors.Join(
			st.IfTrue.validate(append(path[:len(path):len(path)], "if_true")),
			st.IfFalse.validate(append(path[:len(path):len(path)], "if_false")),
		)
	case Result:
	default:
		return fmt.Errorf("%s: unsupported step", where)
	}
	return nil
}

// checkSelector makes sure sel is a valid css selector. An empty
// selector stands for the page body where allowEmpty is set.
func checkSelector(where, sel string, allowEmpty bool) error {
	if sel == "" {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("%s: selector must not be empty", where)
	}
	if _, err := cascadia.ParseGroup(sel); err != nil {
		return fmt.Errorf("%s: invalid selector %q: %w", where, sel, err)
	}
	return nil
}
