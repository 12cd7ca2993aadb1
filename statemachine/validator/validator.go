package validator

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/alitto/pond/v2"
)

// ValidationError describes one structural problem.
type ValidationError struct {
	Code        string   // Error code like "UNREACHABLE_STATE"
	Message     string   // Human-readable error message
	States      []string // Implicated states, naturally sorted
	Transitions []string // Implicated transitions, if any
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Result collects the errors of every rule, in rule order. An empty
// result means the machine is valid.
type Result struct {
	Errors []ValidationError
}

// Valid reports whether no rule found a problem.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err joins the errors into a single error, or returns nil when valid.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}

	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, e)
	}

	return errors.Join(errs...)
}

// Codes returns the code of every error, in order.
func (r Result) Codes() []string {
	codes := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		codes = append(codes, e.Code)
	}

	return codes
}

func (r Result) String() string {
	if r.Valid() {
		return "✓ State machine is valid"
	}

	var builder strings.Builder

	fmt.Fprintf(&builder, "✗ State machine has %d error(s):\n", len(r.Errors))

	for _, e := range r.Errors {
		fmt.Fprintf(&builder, "  [%s] %s", e.Code, e.Message)

		if len(e.States) > 0 {
			fmt.Fprintf(&builder, " (states: %s)", strings.Join(e.States, ", "))
		}

		builder.WriteString("\n")
	}

	return builder.String()
}

var rulePool = sync.OnceValue(func() pond.Pool {
	return pond.NewPool(runtime.GOMAXPROCS(0))
})

// Validator runs rules over one machine. The traversal is computed at most
// once per Validator and shared by its rules.
type Validator[S, E comparable] struct {
	input     Input[S, E]
	rules     []Rule[S, E]
	traversal func() *Traversal[S]
}

// New creates a validator. Without rules, DefaultRules is used.
func New[S, E comparable](input Input[S, E], rules ...Rule[S, E]) *Validator[S, E] {
	if len(rules) == 0 {
		rules = DefaultRules[S, E]()
	}

	return &Validator[S, E]{
		input: input,
		rules: rules,
		traversal: sync.OnceValue(func() *Traversal[S] {
			return Traverse(input)
		}),
	}
}

// Traversal returns the memoized traversal.
func (v *Validator[S, E]) Traversal() *Traversal[S] {
	return v.traversal()
}

// Validate runs every rule on a shared worker pool and concatenates their
// errors in rule order. A rule that panics is reported as RULE_FAILED.
func (v *Validator[S, E]) Validate() Result {
	traversal := v.Traversal()
	results := make([][]ValidationError, len(v.rules))
	tasks := make([]pond.Task, len(v.rules))

	for i, rule := range v.rules {
		tasks[i] = rulePool().Submit(func() {
			results[i] = rule.Check(v.input, traversal)
		})
	}

	var result Result

	for i, task := range tasks {
		if err := task.Wait(); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Code:    CodeRuleFailed,
				Message: fmt.Sprintf("Rule %s failed: %v", v.rules[i].Code(), err),
			})

			continue
		}

		result.Errors = append(result.Errors, results[i]...)
	}

	return result
}

// Validate checks input with the default rules.
func Validate[S, E comparable](input Input[S, E]) Result {
	return New(input).Validate()
}
