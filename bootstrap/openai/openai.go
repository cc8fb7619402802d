// Package openai is a Genkit plugin for any OpenAI-compatible chat completions API.
package openai

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/openai/openai-go/option"
)

const (
	provider = "oai"

	DefaultBaseURL = "https://api.openai.com/v1"
)

// OpenAI registers the configured models of an OpenAI-compatible endpoint.
type OpenAI struct {
	// APIKey falls back to the OPENAI_API_KEY environment variable.
	APIKey string
	// BaseURL defaults to DefaultBaseURL. Point it at a local server (llama.cpp, vLLM) to use one.
	BaseURL string
	// Models are defined during Init so they can be looked up with Model.
	Models []string

	openAICompatible *compat_oai.OpenAICompatible
}

// Name implements genkit.Plugin.
func (o *OpenAI) Name() string {
	return provider
}

// Init implements genkit.Plugin.
func (o *OpenAI) Init(ctx context.Context) []api.Action {
	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		panic("openai plugin initialization failed: apiKey is required (set OPENAI_API_KEY or pass APIKey)")
	}

	baseURL := o.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if o.openAICompatible == nil {
		o.openAICompatible = &compat_oai.OpenAICompatible{}
	}
	o.openAICompatible.Opts = []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}
	o.openAICompatible.Provider = provider

	actions := o.openAICompatible.Init(ctx)
	for _, model := range o.Models {
		actions = append(actions, o.DefineModel(model, modelOptions(model)).(api.Action))
	}
	return actions
}

// Model returns a model defined during Init.
func (o *OpenAI) Model(g *genkit.Genkit, name string) ai.Model {
	return o.openAICompatible.Model(g, api.NewName(provider, name))
}

// DefineModel defines a model with the given ID and options.
func (o *OpenAI) DefineModel(id string, opts ai.ModelOptions) ai.Model {
	return o.openAICompatible.DefineModel(provider, id, opts)
}

// ListActions returns a list of actions provided by this plugin.
func (o *OpenAI) ListActions(ctx context.Context) []api.ActionDesc {
	return o.openAICompatible.ListActions(ctx)
}

// ResolveAction resolves an action by type and name.
func (o *OpenAI) ResolveAction(atype api.ActionType, name string) api.Action {
	return o.openAICompatible.ResolveAction(atype, name)
}

func modelOptions(id string) ai.ModelOptions {
	return ai.ModelOptions{
		Label:    "OpenAI compatible " + id,
		Supports: &compat_oai.Multimodal,
		Versions: []string{id},
	}
}
