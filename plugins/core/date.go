package core

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	isoweek "github.com/va6996/mensaman/core"
	"github.com/va6996/mensaman/log"
	"github.com/va6996/mensaman/tools"
)

const (
	DateToolName = "resolve_date"

	evalTimeout = 2 * time.Second
)

// DateInput defines the input for the date tool
type DateInput struct {
	Expression string `json:"expression" jsonschema:"JavaScript expression evaluating to a Date or a date string. Variable now holds the current timestamp in milliseconds." description:"JavaScript expression evaluating to a Date or a date string. Variable 'now' holds the current timestamp in milliseconds."`
}

// DateOutput is the resolved calendar date and its ISO week.
type DateOutput struct {
	Success       bool   `json:"success"`
	Date          string `json:"date,omitempty"`
	Weekday       string `json:"weekday,omitempty"`
	Week          string `json:"week,omitempty"`
	IsCurrentWeek bool   `json:"isCurrentWeek"`
	Error         string `json:"error,omitempty"`
}

// DateTool turns relative date expressions ("next friday") into YYYY-MM-DD
// so they can be passed to the menu tools.
type DateTool struct {
	Now      func() time.Time
	Location *time.Location
}

// NewDateTool creates a new DateTool and registers it
func NewDateTool(now func() time.Time, loc *time.Location, gk *genkit.Genkit, registry *tools.Registry) *DateTool {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	t := &DateTool{Now: now, Location: loc}

	if gk == nil || registry == nil {
		return t
	}

	registry.Register(genkit.DefineTool[*DateInput, *DateOutput](
		gk,
		DateToolName,
		t.Description(),
		func(ctx *ai.ToolContext, input *DateInput) (*DateOutput, error) {
			return t.Execute(ctx, input)
		},
	), func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		expression, ok := args["expression"].(string)
		if !ok {
			return nil, fmt.Errorf("missing expression")
		}
		return t.Execute(ctx, &DateInput{Expression: expression})
	})

	return t
}

func (t *DateTool) Name() string {
	return DateToolName
}

func (t *DateTool) Description() string {
	return `Resolves a JavaScript date expression to a calendar date (YYYY-MM-DD) and its ISO week, for use with the menu tools. Variable 'now' holds the current timestamp (milliseconds).
The last expression is the result and must be a Date object, an RFC3339 string or a YYYY-MM-DD string.
Examples:
- Tomorrow: "new Date(now + 86400000)"
- Next Monday: "var d = new Date(now); d.setDate(d.getDate() + ((8 - d.getDay()) % 7 || 7)); d"`
}

// now returns the current time in the tool's location. Zero fields fall back to the wall clock and time.Local.
func (t *DateTool) now() time.Time {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return now().In(t.location())
}

func (t *DateTool) location() *time.Location {
	if t.Location == nil {
		return time.Local
	}
	return t.Location
}

// Execute resolves the expression. Failures are reported in the output.
func (t *DateTool) Execute(ctx context.Context, input *DateInput) (*DateOutput, error) {
	if input == nil || input.Expression == "" {
		return &DateOutput{Success: false, Error: "expression is required"}, nil
	}

	resolved, err := t.Resolve(ctx, input.Expression)
	if err != nil {
		log.Errorf(ctx, "DateTool failed for %q: %v", input.Expression, err)
		return &DateOutput{Success: false, Error: err.Error()}, nil
	}

	now := t.now()
	date := isoweek.CurrentDate(resolved)
	current, err := isoweek.IsCurrentWeek(date, now)
	if err != nil {
		return &DateOutput{Success: false, Error: err.Error()}, nil
	}

	return &DateOutput{
		Success:       true,
		Date:          date,
		Weekday:       resolved.Weekday().String(),
		Week:          isoweek.CurrentWeek(resolved),
		IsCurrentWeek: current,
	}, nil
}

// Resolve evaluates expression and returns the result in the tool's location.
func (t *DateTool) Resolve(ctx context.Context, expression string) (time.Time, error) {
	log.Debugf(ctx, "DateTool executing expression: %s", expression)

	vm := goja.New()
	if err := vm.Set("now", t.now().UnixMilli()); err != nil {
		return time.Time{}, fmt.Errorf("failed to set 'now': %w", err)
	}

	timer := time.AfterFunc(evalTimeout, func() { vm.Interrupt("evaluation timed out") })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	loc := t.location()
	val, err := vm.RunString(expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("js execution failed: %w", err)
	}

	exported := val.Export()
	if exported == nil {
		return time.Time{}, fmt.Errorf("result is null or undefined")
	}

	switch v := exported.(type) {
	case time.Time:
		return v.In(loc), nil
	case string:
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed.In(loc), nil
		}
		if parsed, err := time.ParseInLocation(isoweek.DateLayout, v, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("result is not a valid Date object or date string")
}
