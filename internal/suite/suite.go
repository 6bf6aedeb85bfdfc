// Package suite loads test-suite configuration from HCL files: credentials,
// API endpoints, databases and static test data.
//
// A suite file may contain any mix of these blocks:
//
//	credentials "admin" {
//	  username = "admin"
//	  password = env("ADMIN_PASSWORD")
//	}
//
//	endpoint "get_user" {
//	  method  = "GET"
//	  url     = "https://api.example.com/users/{id}"
//	  headers = { Accept = "application/json" }
//	}
//
//	database "main" {
//	  driver = "sqlite"
//	  dsn    = "file:main.db"
//	}
//
//	static {
//	  base_url = "https://api.example.com"
//	}
//
// Names must be unique per block kind across all loaded files.
package suite

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/fsutil"
	"github.com/specialistvlad/questgrid/internal/world/api"
)

// Credentials is a named username/password pair. It implements
// auth.Credentials.
type Credentials struct {
	Label string
	User  string
	Pass  string
}

func (c Credentials) Name() string     { return c.Label }
func (c Credentials) Username() string { return c.User }
func (c Credentials) Password() string { return c.Pass }

// Database is a named database type with its DSN. It implements db.Type.
type Database struct {
	Label        string
	DriverName   string
	ProtocolName string
	DSN          string
}

func (d Database) Name() string     { return d.Label }
func (d Database) Driver() string   { return d.DriverName }
func (d Database) Protocol() string { return d.ProtocolName }

// Suite is the merged content of every loaded file.
type Suite struct {
	Files       []string
	Credentials map[string]Credentials
	Endpoints   map[string]api.StaticEndpoint
	Databases   map[string]Database
	Static      map[string]any
}

// StaticTestData implements pipeline.StaticDataProvider.
func (s *Suite) StaticTestData() map[string]any { return s.Static }

// Credential returns the named credentials.
func (s *Suite) Credential(name string) (Credentials, error) {
	c, ok := s.Credentials[name]
	if !ok {
		return Credentials{}, fmt.Errorf("suite: no credentials %q", name)
	}
	return c, nil
}

// Endpoint returns the named endpoint.
func (s *Suite) Endpoint(name string) (api.StaticEndpoint, error) {
	e, ok := s.Endpoints[name]
	if !ok {
		return api.StaticEndpoint{}, fmt.Errorf("suite: no endpoint %q", name)
	}
	return e, nil
}

// Database returns the named database.
func (s *Suite) Database(name string) (Database, error) {
	d, ok := s.Databases[name]
	if !ok {
		return Database{}, fmt.Errorf("suite: no database %q", name)
	}
	return d, nil
}

// Names lists the declared names of one block kind, sorted.
func Names[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Empty returns a suite with no entries.
func Empty() *Suite {
	return &Suite{
		Credentials: make(map[string]Credentials),
		Endpoints:   make(map[string]api.StaticEndpoint),
		Databases:   make(map[string]Database),
		Static:      make(map[string]any),
	}
}

// Load parses every .hcl file found under paths and merges them.
func Load(ctx context.Context, paths ...string) (*Suite, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Suite loader started.", "path_count", len(paths))

	files, err := fsutil.CollectFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered suite files.", "count", len(files))

	s := Empty()
	s.Files = files
	parser := hclparse.NewParser()
	evalCtx := evalContext()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		if err := s.merge(file, &root); err != nil {
			return nil, err
		}
	}

	logger.Debug("Suite loading complete.",
		"credentials", len(s.Credentials),
		"endpoints", len(s.Endpoints),
		"databases", len(s.Databases),
		"static", len(s.Static))
	return s, nil
}

func (s *Suite) merge(file string, root *fileRoot) error {
	for _, c := range root.Credentials {
		if _, dup := s.Credentials[c.Name]; dup {
			return fmt.Errorf("%s: duplicate credentials %q", file, c.Name)
		}
		s.Credentials[c.Name] = Credentials{Label: c.Name, User: c.Username, Pass: c.Password}
	}

	for _, e := range root.Endpoints {
		if _, dup := s.Endpoints[e.Name]; dup {
			return fmt.Errorf("%s: duplicate endpoint %q", file, e.Name)
		}
		headers, err := headerMap(e.Headers)
		if err != nil {
			return fmt.Errorf("%s: endpoint %q: %w", file, e.Name, err)
		}
		s.Endpoints[e.Name] = api.StaticEndpoint{Label: e.Name, Verb: e.Method, Address: e.URL, Header: headers}
	}

	for _, d := range root.Databases {
		if _, dup := s.Databases[d.Name]; dup {
			return fmt.Errorf("%s: duplicate database %q", file, d.Name)
		}
		s.Databases[d.Name] = Database{Label: d.Name, DriverName: d.Driver, ProtocolName: d.Protocol, DSN: d.DSN}
	}

	for _, block := range root.Static {
		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			return fmt.Errorf("%s: static block: %w", file, diags)
		}
		for name, attr := range attrs {
			if _, dup := s.Static[name]; dup {
				return fmt.Errorf("%s: duplicate static value %q", file, name)
			}
			val, diags := attr.Expr.Value(evalContext())
			if diags.HasErrors() {
				return fmt.Errorf("%s: static value %q: %w", file, name, diags)
			}
			gv, err := toGo(val)
			if err != nil {
				return fmt.Errorf("%s: static value %q: %w", file, name, err)
			}
			s.Static[name] = gv
		}
	}
	return nil
}
