package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/sergeknystautas/landed/internal/config"
)

// TokenCommand implements the token command.
type TokenCommand struct {
	style *termStyle
	in    *os.File
	// readToken is overridable in tests.
	readToken func(project string) (string, error)
}

func NewTokenCommand() *TokenCommand {
	cmd := &TokenCommand{
		style: newTermStyle(),
		in:    os.Stdin,
	}
	cmd.readToken = cmd.promptToken
	return cmd
}

func (cmd *TokenCommand) Run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: landed token set|delete|status [project]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.LoadEnv(); err != nil {
		return err
	}

	switch args[0] {
	case "set":
		project, err := projectArg(cfg, args[1:])
		if err != nil {
			return err
		}
		token, err := cmd.readToken(project)
		if err != nil {
			return err
		}
		if err := config.SaveProjectToken(project, token); err != nil {
			return err
		}
		cmd.style.Success(fmt.Sprintf("Token saved for %s", project))
		if os.Getenv(config.TokenEnvVar(project)) != "" {
			cmd.style.Warn(config.TokenEnvVar(project) + " is set and takes precedence over the saved token")
		}
		return nil

	case "delete":
		project, err := projectArg(cfg, args[1:])
		if err != nil {
			return err
		}
		if err := config.DeleteProjectToken(project); err != nil {
			return err
		}
		cmd.style.Success(fmt.Sprintf("Token deleted for %s", project))
		return nil

	case "status":
		for _, p := range config.NewProvider(cfg).Projects() {
			state := cmd.style.Red("no token")
			if p.HasToken {
				state = cmd.style.Green("token available")
			}
			fmt.Printf("  %-20s %s %s\n", p.Name, state, cmd.style.Dim("("+config.TokenEnvVar(p.Name)+")"))
		}
		return nil

	default:
		return fmt.Errorf("unknown token subcommand: %s", args[0])
	}
}

func loadConfig() (*config.Config, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// projectArg returns the single project argument if it is configured.
func projectArg(cfg *config.Config, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one project name")
	}
	if _, ok := cfg.FindProject(args[0]); !ok {
		return "", fmt.Errorf("%w: %s", config.ErrProjectNotFound, args[0])
	}
	return args[0], nil
}

// promptToken reads a token without echoing it. Piped input is read as a
// single line.
func (cmd *TokenCommand) promptToken(project string) (string, error) {
	fd := int(cmd.in.Fd())
	if !term.IsTerminal(fd) {
		return readLine(cmd.in)
	}

	var token string
	err := huh.NewInput().
		Title(fmt.Sprintf("Access token for %s", project)).
		Description("Stored in ~/.landed/secrets.json (mode 0600)").
		EchoMode(huh.EchoModePassword).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("token is required")
			}
			return nil
		}).
		Value(&token).
		Run()
	if err == nil {
		return token, nil
	}
	if errors.Is(err, huh.ErrUserAborted) {
		return "", err
	}

	// The form could not run on this terminal.
	fmt.Printf("Access token for %s: ", project)
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return string(raw), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
