package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	isoweek "github.com/va6996/mensaman/core"
	"github.com/va6996/mensaman/log"
	"github.com/va6996/mensaman/plugins/mensa"
	"github.com/va6996/mensaman/tools"
)

const maxTurns = 15

const systemPrompt = `You are a helpful assistant for the student canteens (Mensa) of Munich.
Answer questions about which canteens exist, where they are and what they serve.

WORKFLOW:
1. Use get_mensa_facilities to find the apiName of a canteen. Never guess an apiName.
2. Use resolve_date to turn relative dates ("tomorrow", "next friday") into YYYY-MM-DD.
3. Use get_mensa_menu for a single day or get_mensa_week_menu for a whole week.
4. Use get_nearby_mensa_facilities when the user mentions an address or a place.

RULES:
- Only report dishes and prices returned by the tools.
- Prices are in euro. Mention student prices first.
- If a tool reports success=false, tell the user what went wrong in one sentence.
- Answer in the language of the question.`

// Assistant answers free-form questions about the canteens using the registered tools.
type Assistant struct {
	genkit   *genkit.Genkit
	registry *tools.Registry
	model    ai.Model
	clock    mensa.Clock
}

// NewAssistant creates an Assistant. The clock decides what "today" means in the prompt.
func NewAssistant(gk *genkit.Genkit, registry *tools.Registry, model ai.Model, clock mensa.Clock) *Assistant {
	return &Assistant{
		genkit:   gk,
		registry: registry,
		model:    model,
		clock:    clock,
	}
}

// SystemPrompt returns the instructions with the current date and ISO week prepended.
func (a *Assistant) SystemPrompt() string {
	today := a.clock.Today()
	return fmt.Sprintf("Today is %s, %s (ISO week %s).\n%s",
		today.Weekday(), isoweek.CurrentDate(today), isoweek.CurrentWeek(today), systemPrompt)
}

// Ask runs the question through the model, letting it call tools until it produces an answer.
func (a *Assistant) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}
	if a.genkit == nil || a.model == nil {
		return "", fmt.Errorf("no model configured")
	}

	var toolRefs []ai.ToolRef
	if a.registry != nil {
		toolRefs = a.registry.ToolRefs()
	}
	log.Debugf(ctx, "Assistant: asking with %d tools: %s", len(toolRefs), question)

	response, err := genkit.Generate(ctx,
		a.genkit,
		ai.WithModel(a.model),
		ai.WithSystem(a.SystemPrompt()),
		ai.WithPrompt(question),
		ai.WithTools(toolRefs...),
		ai.WithMaxTurns(maxTurns),
	)
	if err != nil {
		log.Errorf(ctx, "Assistant: generate error: %v", err)
		return "", fmt.Errorf("generation failed: %w", err)
	}

	text := strings.TrimSpace(response.Text())
	log.Debugf(ctx, "Assistant: finish reason %v, answer: %s", response.FinishReason, text)
	if text == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}
	return text, nil
}
