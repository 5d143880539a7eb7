package lodge

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/lodge/container"
	"github.com/karloscodes/lodge/registry"
)

type CalcController struct {
	ControllerBase

	log *[]string
}

func (c *CalcController) ActionParams(method string) []container.Param {
	if method == "Sum" {
		return []container.Param{container.P("a"), container.P("b")}
	}
	return nil
}

func (c *CalcController) OnCreate(method string) error {
	c.record("controller create " + method)
	return nil
}

func (c *CalcController) OnStart(method string) error {
	c.record("controller start " + method)
	return nil
}

func (c *CalcController) OnStop(method string) error {
	c.record("controller stop " + method)
	return nil
}

func (c *CalcController) Sum(a, b int) error {
	c.record("action Sum")
	c.Assign("sum", a+b)
	return c.Render("", nil)
}

func (c *CalcController) record(s string) {
	if c.log != nil {
		*c.log = append(*c.log, s)
	}
}

type recordingHooks struct {
	log *[]string
}

func (h recordingHooks) OnCreate(*App) error {
	*h.log = append(*h.log, "app create")
	return nil
}

func (h recordingHooks) OnDispatched(_ *App, res DispatchResult) error {
	*h.log = append(*h.log, "app dispatched "+res.Method)
	return nil
}

func (h recordingHooks) OnStart(*App) error {
	*h.log = append(*h.log, "app start")
	return nil
}

func (h recordingHooks) OnStop(*App) error {
	*h.log = append(*h.log, "app stop")
	return nil
}

func calcKernel(way string, log *[]string) *Kernel {
	data := map[string]any{
		"router": map[string]any{
			"rules": []any{
				map[string]any{"/sum/:x/:y": "Calc/sum"},
			},
			"parameter": map[string]any{
				"inject": map[string]any{"enable": true, "way": way},
			},
		},
	}
	return NewKernel(registry.NewMapRegistry(data), testLogger(), WithBootstrap(func(ctx *Context) error {
		ctx.Register(ctx.ControllerName("Calc"), container.Ctor(func() *CalcController {
			return &CalcController{log: log}
		}), false)
		if log == nil {
			return nil
		}
		app, err := container.Resolve[*App](ctx.Container, NameApp)
		if err != nil {
			return err
		}
		app.SetHooks(recordingHooks{log: log})
		return nil
	}))
}

func TestParameterInjectionWay(t *testing.T) {
	tests := []struct {
		name   string
		way    string
		path   string
		status int
		body   string
	}{
		{"order binds captures positionally", "order", "/sum/2/3", http.StatusOK, `{"sum":5}`},
		{"order coerces each capture", "order", "/sum/10/-4", http.StatusOK, `{"sum":6}`},
		{"order rejects unconvertible captures", "order", "/sum/2/x", http.StatusNotFound, ""},
		{"name finds no a or b attribute", "name", "/sum/2/3", http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := calcKernel(tt.way, nil).Handle(NewRequest("GET", tt.path))
			require.Equal(t, tt.status, resp.Status(), string(resp.Body()))
			if tt.body != "" {
				assert.JSONEq(t, tt.body, string(resp.Body()))
			}
		})
	}
}

func TestRunControllerMissingParameter(t *testing.T) {
	ctx := newTestContext(t, nil, "GET", "/hello/world")
	ctrl := &GreetingController{}
	ctrl.BindContext(ctx)

	require.NoError(t, InitializeController(ctx, ctrl, "SayHello"))
	err := RunController(ctx, ctrl, "SayHello")

	var missing *MissingParameterError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "name", missing.Name)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, []string{"start SayHello"}, ctrl.calls, "OnStop does not run after a failed bind")
}

func TestRunControllerUsesParameterDefault(t *testing.T) {
	ctx := newTestContext(t, nil, "GET", "/")
	ctrl := &defaultsController{}
	ctrl.BindContext(ctx)

	require.NoError(t, InitializeController(ctx, ctrl, "Page"))
	require.NoError(t, RunController(ctx, ctrl, "Page"))
	assert.Equal(t, 1, ctrl.page)
}

type defaultsController struct {
	ControllerBase
	page int
}

func (c *defaultsController) ActionParams(string) []container.Param {
	return []container.Param{container.P("page").Default(1)}
}

func (c *defaultsController) Page(page int) { c.page = page }

func TestDispatchHookOrder(t *testing.T) {
	var log []string
	resp := calcKernel("order", &log).Handle(NewRequest("GET", "/sum/1/1"))
	require.Equal(t, http.StatusOK, resp.Status(), string(resp.Body()))

	assert.Equal(t, []string{
		"app create",
		"app dispatched Sum",
		"controller create Sum",
		"app start",
		"controller start Sum",
		"action Sum",
		"controller stop Sum",
		"app stop",
	}, log)
}
