package tools_test

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logcontext "github.com/va6996/mensaman/context"
	"github.com/va6996/mensaman/tools"
)

type echoInput struct {
	Text  string `json:"text"`
	Times int    `json:"times,omitempty"`
}

func registerEcho(gk *genkit.Genkit, reg *tools.Registry, name string, seen *string) {
	reg.Register(genkit.DefineTool[*echoInput, string](
		gk,
		name,
		"Echoes its input",
		func(ctx *ai.ToolContext, input *echoInput) (string, error) {
			return input.Text, nil
		},
	), func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		var input echoInput
		if err := tools.DecodeArgs(args, &input); err != nil {
			return nil, err
		}
		if seen != nil {
			*seen = logcontext.RequestIDFromContext(ctx)
		}
		return input.Text, nil
	})
}

func TestNewRegistry(t *testing.T) {
	reg := tools.NewRegistry()
	assert.NotNil(t, reg)
	assert.Empty(t, reg.GetTools())
	assert.Empty(t, reg.Names())
}

func TestRegistry_Register(t *testing.T) {
	gk := genkit.Init(context.Background())
	reg := tools.NewRegistry()

	registerEcho(gk, reg, "zeta_echo", nil)
	registerEcho(gk, reg, "alpha_echo", nil)

	registered := reg.GetTools()
	assert.Len(t, registered, 2)
	assert.Equal(t, "zeta_echo", registered[0].Definition().Name)
	assert.Equal(t, []string{"alpha_echo", "zeta_echo"}, reg.Names())
	assert.Len(t, reg.ToolRefs(), 2)
}

func TestRegistry_ExecuteTool(t *testing.T) {
	gk := genkit.Init(context.Background())
	reg := tools.NewRegistry()

	var requestID string
	registerEcho(gk, reg, "echo", &requestID)

	out, err := reg.ExecuteTool(context.Background(), "echo", map[string]interface{}{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.NotEmpty(t, requestID, "request id is attached")

	ctx := logcontext.WithRequestID(context.Background(), "req-1")
	_, err = reg.ExecuteTool(ctx, "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "req-1", requestID)

	_, err = reg.ExecuteTool(context.Background(), "missing", nil)
	assert.EqualError(t, err, "tool not found: missing")

	_, err = reg.ExecuteTool(context.Background(), "echo", map[string]interface{}{"times": "twice"})
	assert.Error(t, err)
}

func TestDecodeArgs(t *testing.T) {
	var input echoInput
	require.NoError(t, tools.DecodeArgs(map[string]interface{}{"text": "hi", "times": 2.0, "extra": true}, &input))
	assert.Equal(t, echoInput{Text: "hi", Times: 2}, input)

	assert.Error(t, tools.DecodeArgs(map[string]interface{}{"text": 1}, &input))
}
