package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/va6996/mensaman/agents"
	"github.com/va6996/mensaman/bootstrap/openai"
	"github.com/va6996/mensaman/config"
	"github.com/va6996/mensaman/log"
	"github.com/va6996/mensaman/orm"
	pcore "github.com/va6996/mensaman/plugins/core"
	"github.com/va6996/mensaman/plugins/googlemaps"
	"github.com/va6996/mensaman/plugins/mensa"
	"github.com/va6996/mensaman/tools"
)

// App holds the initialized components of the application
type App struct {
	Config    *config.Config
	Genkit    *genkit.Genkit
	Registry  *tools.Registry
	Model     ai.Model
	Mensa     *mensa.Client
	Core      *pcore.Client
	Store     *orm.Store
	Janitor   *orm.Janitor
	Assistant *agents.Assistant
}

// Options tune Setup for the command being run.
type Options struct {
	// WithModel initializes the configured AI plugin. Only the ask command needs it.
	WithModel bool
	// Now overrides the wall clock.
	Now func() time.Time
}

// Setup initializes the application components based on the configuration
func Setup(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := log.Configure(cfg.Log.Level, os.Stderr); err != nil {
		return nil, err
	}

	loc, err := cfg.Mensa.Location()
	if err != nil {
		return nil, err
	}
	clock := mensa.Clock{Now: opts.Now, Location: loc}

	app := &App{Config: cfg}

	// 1. Genkit, with a model plugin only when asked for
	if opts.WithModel {
		app.Genkit, app.Model, err = setupModel(ctx, cfg)
		if err != nil {
			return nil, err
		}
	} else {
		app.Genkit = genkit.Init(ctx)
	}

	// 2. Response cache
	if cfg.Cache.Enabled {
		db, err := orm.Open(cfg.Cache.DSN)
		if err != nil {
			return nil, err
		}
		app.Store = orm.NewStore(db)
		app.Janitor, err = orm.NewJanitor(app.Store, cfg.Cache.Schedule)
		if err != nil {
			return nil, err
		}
		app.Janitor.Start()
		log.Debugf(ctx, "Response cache enabled (ttl %s, cleanup %q)", cfg.Cache.MenuTTL, cfg.Cache.Schedule)
	}

	// 3. Tools
	app.Registry = tools.NewRegistry()

	mensaOpts := mensa.Options{
		BaseURL:  cfg.Mensa.BaseURL,
		Timeout:  cfg.Mensa.Timeout,
		CacheTTL: cfg.Cache.MenuTTL,
		Clock:    clock,
	}
	if app.Store != nil {
		mensaOpts.Cache = app.Store
	}
	if cfg.Maps.APIKey != "" {
		maps, err := googlemaps.NewClient(cfg.Maps.APIKey, "")
		if err != nil {
			app.Close(ctx)
			return nil, err
		}
		mensaOpts.Geocoder = maps
	} else {
		log.Debugf(ctx, "GOOGLE_MAPS_API_KEY not set, address lookup disabled")
	}

	app.Mensa = mensa.NewClient(mensaOpts, app.Genkit, app.Registry)
	app.Core = pcore.NewClient(opts.Now, loc, app.Genkit, app.Registry)

	// 4. Assistant
	app.Assistant = agents.NewAssistant(app.Genkit, app.Registry, app.Model, clock)

	log.Debugf(ctx, "Registered tools: %v", app.Registry.Names())
	return app, nil
}

// Close stops background work.
func (a *App) Close(ctx context.Context) {
	if a.Janitor != nil {
		a.Janitor.Stop(ctx)
	}
}

func setupModel(ctx context.Context, cfg *config.Config) (*genkit.Genkit, ai.Model, error) {
	switch cfg.AI.Plugin {
	case "ollama":
		log.Infof(ctx, "Using Ollama Plugin (Model: %s)...", cfg.AI.Ollama.Model)
		ollamaPlugin := &ollama.Ollama{
			ServerAddress: cfg.AI.Ollama.BaseURL,
		}
		gk := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))

		model := ollamaPlugin.DefineModel(gk, ollama.ModelDefinition{
			Name: cfg.AI.Ollama.Model,
			Type: "chat",
		}, &ai.ModelOptions{
			Supports: &ai.ModelSupports{
				Multiturn:  true,
				SystemRole: true,
				Tools:      true,
				Media:      false,
			},
		})
		return gk, model, nil

	case "openai":
		log.Infof(ctx, "Using OpenAI compatible Plugin (Model: %s, URL: %s)...", cfg.AI.OpenAI.Model, cfg.AI.OpenAI.BaseURL)
		if cfg.AI.OpenAI.APIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY must be set (or set AI_PLUGIN=ollama)")
		}
		plugin := &openai.OpenAI{
			APIKey:  cfg.AI.OpenAI.APIKey,
			BaseURL: cfg.AI.OpenAI.BaseURL,
			Models:  []string{cfg.AI.OpenAI.Model},
		}
		gk := genkit.Init(ctx, genkit.WithPlugins(plugin))
		return gk, plugin.Model(gk, cfg.AI.OpenAI.Model), nil

	default:
		log.Infof(ctx, "Using Gemini Plugin (Model: %s)...", cfg.AI.Gemini.Model)
		if cfg.AI.Gemini.APIKey == "" {
			return nil, nil, fmt.Errorf("GEMINI_API_KEY must be set (or set AI_PLUGIN=ollama)")
		}
		gk := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{
			APIKey: cfg.AI.Gemini.APIKey,
		}))
		return gk, googlegenai.GoogleAIModel(gk, cfg.AI.Gemini.Model), nil
	}
}
