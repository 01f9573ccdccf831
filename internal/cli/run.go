package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"yaprooms/internal/config"
)

// resolveArgs parses the flags shared by chat and serve and layers them
// over the environment, the named profile and the default profile.
func (c *CLI) resolveArgs(command string, args []string) (Settings, error) {
	fs := pflag.NewFlagSet(command, pflag.ContinueOnError)
	fs.SetOutput(c.stderr())

	var (
		name        = fs.StringP("name", "n", "", "your chat display name")
		listen      = fs.StringSliceP("listen", "l", nil, "multiaddr to listen on (repeatable)")
		keyFile     = fs.String("key-file", "", "path to the node identity key")
		logLevel    = fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
		logFile     = fs.String("log-file", "", "write logs to this file")
		joinTimeout = fs.Duration("join-timeout", 0, "how long to wait for a room's first neighbor")
		configPath  = fs.StringP("config", "c", config.DefaultPath(), "path to yap config file")
		profile     = fs.StringP("profile", "p", "", "saved profile to load")
		dotenv      = fs.String("env-file", ".env", "dotenv file with YAP_* overrides")
		ticket      = fs.StringP("ticket", "t", "", "join the room named by this ticket on startup")
		create      = fs.Bool("new", false, "create a room on startup")
		httpAddr    *string
	)
	if command == "serve" {
		httpAddr = fs.String("http", "", "HTTP listen address")
	}

	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}
	if *create && *ticket != "" {
		return Settings{}, fmt.Errorf("--new and --ticket are mutually exclusive")
	}

	env, err := c.getenv(*dotenv)
	if err != nil {
		return Settings{}, err
	}

	store, err := config.Load(*configPath)
	if err != nil {
		return Settings{}, err
	}

	selected := strings.TrimSpace(*profile)
	if selected == "" {
		selected = strings.TrimSpace(env.Profile)
	}
	if store == nil && selected != "" {
		return Settings{}, fmt.Errorf("profile %q requested but config %q not found", selected, *configPath)
	}

	base, err := config.ResolveProfile(store, selected)
	if err != nil {
		return Settings{}, err
	}

	overrides := config.Config{
		Name:        *name,
		Listen:      *listen,
		KeyFile:     *keyFile,
		LogLevel:    *logLevel,
		LogFile:     *logFile,
		JoinTimeout: config.Duration{Duration: *joinTimeout},
	}
	if httpAddr != nil {
		overrides.HTTPAddr = *httpAddr
	}

	merged := config.Merge(config.Merge(base, env.Config()), overrides)
	return Settings{
		Config: config.Normalize(merged),
		Store:  store,
		Ticket: strings.TrimSpace(*ticket),
		Create: *create,
	}, nil
}
