package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"yaprooms/internal/config"
)

func (c *CLI) runInit(args []string) error {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	fs.SetOutput(c.stderr())
	configPath := fs.StringP("config", "c", config.DefaultPath(), "path to yap config file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *configPath == "" {
		return errors.New("config path is required; use --config to set one")
	}

	store, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("config storage unavailable")
	}

	current, err := config.ResolveProfile(store, "")
	if err != nil {
		return err
	}
	current = config.Normalize(current)

	reader := bufio.NewReader(c.stdin())

	name, err := c.prompt(reader, "Display name", current.Name)
	if err != nil {
		return err
	}
	listenRaw, err := c.prompt(reader, "Listen multiaddrs (comma separated)", strings.Join(current.Listen, ", "))
	if err != nil {
		return err
	}
	keyFile, err := c.prompt(reader, "Identity key file", current.KeyFile)
	if err != nil {
		return err
	}
	logLevel, err := c.prompt(reader, "Log level", current.LogLevel)
	if err != nil {
		return err
	}

	snapshot := current
	snapshot.Name = name
	snapshot.Listen = parseList(listenRaw)
	snapshot.KeyFile = keyFile
	snapshot.LogLevel = logLevel

	if err := store.SaveDefault(snapshot); err != nil {
		return fmt.Errorf("save default config: %w", err)
	}

	fmt.Fprintf(c.stdout(), "Saved default configuration to %s\n", *configPath)
	for _, line := range config.Summary(config.Normalize(snapshot)) {
		fmt.Fprintln(c.stdout(), line)
	}

	return nil
}

func (c *CLI) prompt(reader *bufio.Reader, label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(c.stdout(), "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(c.stdout(), "%s: ", label)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return current, nil
	}
	return input, nil
}

func parseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return config.MergeAddrs(strings.Split(raw, ","))
}
