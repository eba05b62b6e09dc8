package caddymiabrelay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig"
	"github.com/caddyserver/caddy/v2/modules/caddyhttp"
)

func init() {
	caddy.RegisterModule(App{})
}

// A Caddy application module that runs the relay on its own HTTP server.
type App struct {
	Handler

	// The sockets on which to listen. Defaults to 127.0.0.1:9095.
	Listen []string `json:"listen,omitempty"`

	// Configures the set of trusted proxies.
	TrustedProxiesRaw json.RawMessage `json:"trusted_proxies,omitempty" caddy:"namespace=http.ip_sources inline_key=source"`

	// The http module instance that implements this app.
	httpApp *caddyhttp.App `json:"-"`
}

var _ caddy.Module = (*App)(nil)
var _ caddy.Provisioner = (*App)(nil)
var _ caddy.App = (*App)(nil)

func (App) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "miabrelay",
		New: func() caddy.Module {
			return new(App)
		},
	}
}

func (app *App) Provision(ctx caddy.Context) error {
	if len(app.Listen) == 0 {
		app.Listen = []string{defaultListen}
	}

	module, err := ctx.LoadModuleByID(
		"http",
		caddyconfig.JSON(
			caddyhttp.App{
				Servers: map[string]*caddyhttp.Server{
					"miabrelay": {
						Listen:            app.Listen,
						Routes:            app.makeRoutes(),
						TrustedProxiesRaw: app.TrustedProxiesRaw,

						// Turns on logging.
						Logs: &caddyhttp.ServerLogConfig{},
					},
				},
			},
			nil,
		),
	)
	if err != nil {
		return fmt.Errorf("unable to load http guest module: %w", err)
	}

	app.httpApp = module.(*caddyhttp.App)
	return nil
}

func (app *App) Start() error {
	return app.httpApp.Start()
}

func (app *App) Stop() error {
	return app.httpApp.Stop()
}

// Routes every request through the relay handler. Requests the relay does
// not serve fall through to a 404.
func (app *App) makeRoutes() caddyhttp.RouteList {
	return caddyhttp.RouteList{
		{
			HandlersRaw: []json.RawMessage{
				caddyconfig.JSONModuleObject(
					app.Handler,
					"handler",
					"miabrelay",
					nil,
				),
				caddyconfig.JSONModuleObject(
					caddyhttp.StaticResponse{
						StatusCode: caddyhttp.WeakString(strconv.Itoa(
							http.StatusNotFound,
						)),
					},
					"handler",
					"static_response",
					nil,
				),
			},
		},
	}
}
