package suite

import (
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// fileRoot decodes every top-level block a suite file may contain.
type fileRoot struct {
	Credentials []*credentialsBlock `hcl:"credentials,block"`
	Endpoints   []*endpointBlock    `hcl:"endpoint,block"`
	Databases   []*databaseBlock    `hcl:"database,block"`
	Static      []*staticBlock      `hcl:"static,block"`
}

type credentialsBlock struct {
	Name     string `hcl:"name,label"`
	Username string `hcl:"username"`
	Password string `hcl:"password"`
}

type endpointBlock struct {
	Name    string    `hcl:"name,label"`
	Method  string    `hcl:"method,optional"`
	URL     string    `hcl:"url"`
	Headers cty.Value `hcl:"headers,optional"`
}

type databaseBlock struct {
	Name     string `hcl:"name,label"`
	Driver   string `hcl:"driver"`
	Protocol string `hcl:"protocol,optional"`
	DSN      string `hcl:"dsn,optional"`
}

type staticBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// evalContext exposes env("NAME") so secrets stay out of suite files.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": function.New(&function.Spec{
				Params: []function.Parameter{{Name: "name", Type: cty.String}},
				Type:   function.StaticReturnType(cty.String),
				Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
					return cty.StringVal(os.Getenv(args[0].AsString())), nil
				},
			}),
		},
	}
}
