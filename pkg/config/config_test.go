package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/matryer/is"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadTOML(t *testing.T) {
	is := is.New(t)

	cfg, err := Load(writeConfig(t, "exthost.toml", `
[host]
service = "widgets"
call_timeout_ms = 2500

[listen]
socket = "/tmp/widgets.sock"

[types]
name = "widgets"
version = "1.2.3"
is_singleton = true
`))
	is.NoErr(err)
	is.Equal(cfg.Host.Service, "widgets")
	is.Equal(cfg.Host.LogDir, "log") // default survives
	is.Equal(cfg.Host.CallTimeout().Milliseconds(), int64(2500))
	is.Equal(cfg.Listen.Socket, "/tmp/widgets.sock")
	is.Equal(cfg.Listen.Protocol, ProtocolGRPC)
	is.Equal(cfg.Types.Version, "1.2.3")
	is.True(cfg.Types.IsSingleton)
}

func TestLoadYAML(t *testing.T) {
	is := is.New(t)

	cfg, err := Load(writeConfig(t, "exthost.yaml", `
listen:
  http: 5055
  protocol: http
types:
  name: widgets
`))
	is.NoErr(err)
	is.Equal(cfg.Listen.HTTPPort, 5055)
	is.Equal(cfg.Listen.Protocol, ProtocolHTTP)
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	is := is.New(t)
	_, err := Load(writeConfig(t, "exthost.yml", "listen:\n  sockett: x\n"))
	is.True(err != nil)
}

func TestEnvOverrides(t *testing.T) {
	is := is.New(t)
	t.Setenv("EXTHOST_HTTP_PORT", "6001")
	t.Setenv("EXTHOST_PROTOCOL", "HTTP")

	cfg, err := Load(writeConfig(t, "exthost.toml", "[types]\nname = \"x\"\n"))
	is.NoErr(err)
	is.Equal(cfg.Listen.HTTPPort, 6001)
	is.Equal(cfg.Listen.Protocol, ProtocolHTTP)
}

func TestLoadTOMLRejectsUnknownKeys(t *testing.T) {
	is := is.New(t)
	_, err := Load(writeConfig(t, "exthost.toml", "[listen]\nsockett = \"x\"\n"))
	is.True(err != nil)
}

func TestMalformedPortEnvIsAnError(t *testing.T) {
	is := is.New(t)
	t.Setenv("EXTHOST_HTTP_PORT", "five-thousand")

	cfg := Default()
	is.True(cfg.ApplyEnv() != nil)
	is.Equal(cfg.Listen.HTTPPort, DefaultHTTPPort)

	_, err := Load(writeConfig(t, "exthost.toml", "[types]\nname = \"x\"\n"))
	is.True(err != nil)
}

func TestPathOr(t *testing.T) {
	is := is.New(t)
	t.Setenv(PathEnv, "/etc/exthost.toml")
	is.Equal(PathOr("local.yaml"), "local.yaml")
	is.Equal(PathOr(""), "/etc/exthost.toml")

	t.Setenv(PathEnv, "")
	is.Equal(PathOr(""), "")
}

func TestValidateReportsEveryProblem(t *testing.T) {
	is := is.New(t)
	cfg := Default()
	cfg.Listen.Protocol = "carrier-pigeon"
	cfg.Types.Name = ""

	var merr *multierror.Error
	is.True(errors.As(cfg.Validate(), &merr))
	is.Equal(len(merr.Errors), 2)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"socket and pipe": func(c *Config) { c.Listen.Socket, c.Listen.Pipe = "/tmp/a", "a" },
		"bad port":        func(c *Config) { c.Listen.HTTPPort = 70000 },
		"bad protocol":    func(c *Config) { c.Listen.Protocol = "carrier-pigeon" },
		"negative":        func(c *Config) { c.Host.CallTimeoutMS = -1 },
		"auth no secret":  func(c *Config) { c.Auth.Enabled, c.Auth.SecretEnv = true, "" },
		"no type name":    func(c *Config) { c.Types.Name = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			cfg := Default()
			mutate(&cfg)
			is.True(cfg.Validate() != nil)
		})
	}

	is := is.New(t)
	is.NoErr(Default().Validate())
}

func TestUnsupportedExtension(t *testing.T) {
	is := is.New(t)
	_, err := Load(writeConfig(t, "exthost.json", "{}"))
	is.True(err != nil)
}
