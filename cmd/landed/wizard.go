package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/config"
	"github.com/sergeknystautas/landed/pkg/cli"
)

// WizardCommand implements the interactive multi-term compare.
type WizardCommand struct {
	client cli.DaemonClient
	local  func() (Checker, error)
	out    io.Writer
	style  *termStyle
	// ask collects the request; overridable in tests.
	ask func(projects []string, req *contracts.MultiCompareRequest, format *string) error
}

func NewWizardCommand(client cli.DaemonClient, local func() (Checker, error), out io.Writer) *WizardCommand {
	return &WizardCommand{
		client: client,
		local:  local,
		out:    out,
		style:  newTermStyle(),
		ask:    askCompare,
	}
}

func (cmd *WizardCommand) Run(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unknown arguments: %s", strings.Join(args, " "))
	}

	useDaemon := cmd.client.IsRunning()

	var checker Checker
	var projects []string
	if useDaemon {
		checker = daemonChecker{client: cmd.client}
		list, err := cmd.client.GetProjects()
		if err != nil {
			return fmt.Errorf("failed to get projects: %w", err)
		}
		for _, p := range list {
			projects = append(projects, p.Name)
		}
	} else {
		var err error
		checker, err = cmd.local()
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, p := range cfg.GetProjects() {
			projects = append(projects, p.Name)
		}
	}
	if len(projects) == 0 {
		return fmt.Errorf("%w: no projects configured", config.ErrInvalidConfig)
	}

	cmd.style.Header("Multi-term compare")
	cmd.style.Info(
		"Search each project for branches matching each term,",
		"then check every branch found against the targets.",
	)

	req := contracts.MultiCompareRequest{}
	format := formatTable
	if err := cmd.ask(projects, &req, &format); err != nil {
		return err
	}
	if len(req.Projects) == 0 || len(req.Terms) == 0 || len(req.Targets) == 0 {
		return errors.New("at least one project, term and target is required")
	}

	resp, err := checker.CompareMany(context.Background(), req)
	if err != nil {
		return err
	}
	return renderMultiCompare(cmd.out, format, resp, cmd.style)
}

// splitList splits on commas and whitespace, dropping empty entries.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}

func askCompare(projects []string, req *contracts.MultiCompareRequest, format *string) error {
	options := make([]huh.Option[string], 0, len(projects))
	for _, p := range projects {
		options = append(options, huh.NewOption(p, p))
	}

	var terms, targets string
	required := func(s string) error {
		if len(splitList(s)) == 0 {
			return errors.New("at least one value is required")
		}
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Projects").
				Options(options...).
				Value(&req.Projects),
			huh.NewText().
				Title("Search terms").
				Description("Ticket numbers or branch fragments, separated by commas or spaces").
				Validate(required).
				Value(&terms),
			huh.NewInput().
				Title("Target branches").
				Placeholder("main release/2.0").
				Validate(required).
				Value(&targets),
			huh.NewSelect[string]().
				Title("Output").
				Options(
					huh.NewOption("Table", formatTable),
					huh.NewOption("JSON", formatJSON),
					huh.NewOption("YAML", formatYAML),
				).
				Value(format),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	req.Terms = splitList(terms)
	req.Targets = splitList(targets)
	return nil
}
