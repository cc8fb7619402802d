package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiv1 "github.com/va6996/mensaman/apis/v1"
	"github.com/va6996/mensaman/bootstrap"
	"github.com/va6996/mensaman/config"
	logcontext "github.com/va6996/mensaman/context"
	"github.com/va6996/mensaman/log"
	"github.com/va6996/mensaman/mcpserver"
	"github.com/va6996/mensaman/plugins/mensa"
)

// CLI is the command line of mensaman.
type CLI struct {
	Config   string `help:"YAML config file. Environment variables take precedence." default:"config.yaml"`
	LogLevel string `help:"Override the configured log level (debug, info, warn, error)." name:"log-level"`

	Serve      ServeCmd      `cmd:"" default:"1" help:"Run the MCP server (default)."`
	Facilities FacilitiesCmd `cmd:"" help:"List the canteens."`
	Menu       MenuCmd       `cmd:"" help:"Show the menu of a canteen for one day."`
	Week       WeekCmd       `cmd:"" help:"Show the menu of a canteen for a whole ISO week."`
	Call       CallCmd       `cmd:"" help:"Call a tool with JSON arguments and print its payload."`
	Ask        AskCmd        `cmd:"" help:"Ask the assistant a question about the canteens."`
}

// runtime carries process-wide dependencies into the commands.
type runtime struct {
	ctx context.Context
	out io.Writer
	now func() time.Time
}

func (cli *CLI) load() (*config.Config, error) {
	cfg, err := config.LoadFile(cli.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	return cfg, nil
}

func (rt *runtime) setup(cfg *config.Config, withModel bool) (*bootstrap.App, error) {
	app, err := bootstrap.Setup(rt.ctx, cfg, bootstrap.Options{WithModel: withModel, Now: rt.now})
	if err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	return app, nil
}

type ServeCmd struct {
	Transport string `help:"stdio or http. Defaults to the configured transport."`
	Port      int    `help:"HTTP port. Defaults to the configured port."`
}

func (c *ServeCmd) Run(cli *CLI, rt *runtime) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	if c.Transport != "" {
		cfg.Server.Transport = c.Transport
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := rt.setup(cfg, false)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	server := mcpserver.New(cfg.Server.Name, cfg.Server.Version, app.Mensa, app.Core)

	if cfg.Server.Transport == "stdio" {
		log.Infof(rt.ctx, "Serving MCP over stdio")
		return server.RunStdio(rt.ctx)
	}

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: newHTTPHandler(app, server),
	}

	go func() {
		<-rt.ctx.Done()
		log.Infof(context.Background(), "Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof(rt.ctx, "Starting server on port %d (MCP at %s)", cfg.Server.Port, mcpserver.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// newHTTPHandler mounts the MCP endpoint and the Connect API behind CORS and h2c.
func newHTTPHandler(app *bootstrap.App, server *mcpserver.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(mcpserver.Path, server.Handler())

	path, handler := apiv1.NewMensaServiceHandler(apiv1.NewMensaServer(app.Mensa))
	mux.Handle(path, handler)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return h2c.NewHandler(cors(mux), &http2.Server{})
}

func cors(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Connect-Protocol-Version, Mcp-Session-Id, Mcp-Protocol-Version")
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}

type FacilitiesCmd struct {
	Filter string `arg:"" optional:"" help:"Only list canteens whose name or address contains this text."`
	Format string `help:"Output format." short:"f" enum:"text,json" default:"text"`
}

func (c *FacilitiesCmd) Run(cli *CLI, rt *runtime) error {
	app, err := cli.setupApp(rt, false)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	out, err := app.Mensa.FacilitiesTool.Execute(rt.ctx, &mensa.FacilitiesInput{Filter: c.Filter})
	if err != nil {
		return err
	}
	if c.Format == "json" {
		return printPayload(rt.out, out)
	}
	if !out.Success {
		return errors.New(out.Error)
	}
	_, err = fmt.Fprint(rt.out, mensa.FormatFacilities(out.Facilities))
	return err
}

type MenuCmd struct {
	APIName string `arg:"" name:"api-name" help:"API name of the canteen, e.g. mensa-garching."`
	Date    string `arg:"" optional:"" help:"Date in YYYY-MM-DD format. Defaults to today."`
	Format  string `help:"Output format." short:"f" enum:"text,json" default:"text"`
}

func (c *MenuCmd) Run(cli *CLI, rt *runtime) error {
	app, err := cli.setupApp(rt, false)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	out, err := app.Mensa.MenuTool.Execute(rt.ctx, &mensa.MenuInput{APIName: c.APIName, Date: c.Date})
	if err != nil {
		return err
	}
	if c.Format == "json" {
		return printPayload(rt.out, out)
	}
	if !out.Success {
		return errors.New(out.Error)
	}
	_, err = fmt.Fprint(rt.out, mensa.FormatDayMenu(out.Data))
	return err
}

type WeekCmd struct {
	APIName string `arg:"" name:"api-name" help:"API name of the canteen, e.g. mensa-garching."`
	Date    string `arg:"" optional:"" help:"Any date in the wanted week (YYYY-MM-DD). Defaults to today."`
	Format  string `help:"Output format." short:"f" enum:"text,json" default:"text"`
}

func (c *WeekCmd) Run(cli *CLI, rt *runtime) error {
	app, err := cli.setupApp(rt, false)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	out, err := app.Mensa.WeekMenuTool.Execute(rt.ctx, &mensa.WeekMenuInput{APIName: c.APIName, Date: c.Date})
	if err != nil {
		return err
	}
	if c.Format == "json" {
		return printPayload(rt.out, out)
	}
	if !out.Success {
		return errors.New(out.Error)
	}
	_, err = fmt.Fprint(rt.out, mensa.FormatWeekMenu(out.Data))
	return err
}

type CallCmd struct {
	Tool string `arg:"" help:"Tool name, e.g. get_mensa_menu."`
	Args string `arg:"" optional:"" help:"Arguments as a JSON object." default:"{}"`
}

func (c *CallCmd) Run(cli *CLI, rt *runtime) error {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(c.Args), &args); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %w", err)
	}

	app, err := cli.setupApp(rt, false)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	out, err := app.Registry.ExecuteTool(rt.ctx, c.Tool, args)
	if err != nil {
		return err
	}
	return printPayload(rt.out, out)
}

type AskCmd struct {
	Question []string `arg:"" help:"The question, e.g. what is vegan at mensa-garching tomorrow?"`
}

func (c *AskCmd) Run(cli *CLI, rt *runtime) error {
	app, err := cli.setupApp(rt, true)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	answer, err := app.Assistant.Ask(rt.ctx, strings.Join(c.Question, " "))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(rt.out, answer)
	return err
}

func (cli *CLI) setupApp(rt *runtime, withModel bool) (*bootstrap.App, error) {
	cfg, err := cli.load()
	if err != nil {
		return nil, err
	}
	return rt.setup(cfg, withModel)
}

func printPayload(w io.Writer, v interface{}) error {
	text, err := mensa.PayloadText(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}

func run(ctx context.Context, args []string, out io.Writer, now func() time.Time, opts ...kong.Option) error {
	var cli CLI
	opts = append([]kong.Option{
		kong.Name("mensaman"),
		kong.Description("Munich student canteen menus as MCP tools."),
		kong.UsageOnError(),
		kong.Writers(out, os.Stderr),
	}, opts...)

	parser, err := kong.New(&cli, opts...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(&runtime{ctx: ctx, out: out, now: now})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logcontext.WithRequestID(ctx, logcontext.NewRequestID())

	if err := run(ctx, os.Args[1:], os.Stdout, nil); err != nil {
		log.Errorf(ctx, "%v", err)
		os.Exit(1)
	}
}
