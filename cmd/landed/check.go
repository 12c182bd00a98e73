package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/config"
	"github.com/sergeknystautas/landed/internal/daemon"
	"github.com/sergeknystautas/landed/internal/inclusion"
	"github.com/sergeknystautas/landed/pkg/cli"
)

// exitNotLanded is the exit code when a branch is missing from any target.
const exitNotLanded = 3

// NotLandedError reports the targets that do not include the branch.
type NotLandedError struct {
	Branch  string
	Missing []string
}

func (e *NotLandedError) Error() string {
	return fmt.Sprintf("%s not included in: %s", e.Branch, strings.Join(e.Missing, ", "))
}

// Checker answers inclusion questions, either through the daemon or in-process.
type Checker interface {
	Check(ctx context.Context, project, branch string, targets []string) (contracts.InclusionResponse, error)
	CompareMany(ctx context.Context, req contracts.MultiCompareRequest) (contracts.MultiCompareResponse, error)
}

// daemonChecker adapts the daemon client to Checker.
type daemonChecker struct {
	client cli.DaemonClient
}

func (d daemonChecker) Check(ctx context.Context, project, branch string, targets []string) (contracts.InclusionResponse, error) {
	resp, err := d.client.CheckInclusion(ctx, project, branch, targets)
	if err != nil {
		return contracts.InclusionResponse{}, err
	}
	return *resp, nil
}

func (d daemonChecker) CompareMany(ctx context.Context, req contracts.MultiCompareRequest) (contracts.MultiCompareResponse, error) {
	resp, err := d.client.CompareMany(ctx, req)
	if err != nil {
		return contracts.MultiCompareResponse{}, err
	}
	return *resp, nil
}

// newLocalChecker builds an in-process engine from ~/.landed.
func newLocalChecker() (Checker, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	path, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return daemon.NewEngine(cfg, config.NewProvider(cfg)), nil
}

// CheckCommand implements the check command.
type CheckCommand struct {
	client   cli.DaemonClient
	local    func() (Checker, error)
	out      io.Writer
	progress io.Writer
	style    *termStyle
}

// NewCheckCommand creates a new check command.
func NewCheckCommand(client cli.DaemonClient, local func() (Checker, error), out io.Writer) *CheckCommand {
	return &CheckCommand{
		client:   client,
		local:    local,
		out:      out,
		progress: os.Stderr,
		style:    newTermStyle(),
	}
}

type checkArgs struct {
	project string
	branch  string
	targets []string
	format  string
	stream  bool
}

// parseCheckArgs accepts flags anywhere on the line.
func parseCheckArgs(args []string) (checkArgs, error) {
	parsed := checkArgs{format: formatTable}
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--stream":
			parsed.stream = true
		case arg == "--format":
			if i+1 >= len(args) {
				return parsed, fmt.Errorf("--format requires a value")
			}
			i++
			parsed.format = args[i]
		case strings.HasPrefix(arg, "--format="):
			parsed.format = strings.TrimPrefix(arg, "--format=")
		case strings.HasPrefix(arg, "--"):
			return parsed, fmt.Errorf("unknown flag: %s", arg)
		default:
			positional = append(positional, arg)
		}
	}

	if len(positional) < 3 {
		return parsed, fmt.Errorf("usage: landed check <project> <branch> <target>... [--format table|json|yaml] [--stream]")
	}
	if !validFormat(parsed.format) {
		return parsed, fmt.Errorf("unknown format %q (want table, json or yaml)", parsed.format)
	}

	parsed.project = positional[0]
	parsed.branch = positional[1]
	parsed.targets = positional[2:]
	return parsed, nil
}

// Run executes the check command.
func (cmd *CheckCommand) Run(args []string) error {
	parsed, err := parseCheckArgs(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var resp contracts.InclusionResponse

	switch {
	case cmd.client.IsRunning() && parsed.stream:
		resp, err = cmd.stream(ctx, parsed)
	case cmd.client.IsRunning():
		resp, err = daemonChecker{client: cmd.client}.Check(ctx, parsed.project, parsed.branch, parsed.targets)
	default:
		var checker Checker
		checker, err = cmd.local()
		if err != nil {
			return err
		}
		resp, err = checker.Check(ctx, parsed.project, parsed.branch, parsed.targets)
	}
	if err != nil {
		return err
	}

	if err := renderInclusion(cmd.out, parsed.format, resp, cmd.style); err != nil {
		return err
	}

	var missing []string
	for _, r := range resp.Results {
		if !r.Included {
			missing = append(missing, r.Target)
		}
	}
	if len(missing) > 0 {
		return &NotLandedError{Branch: resp.Branch, Missing: missing}
	}
	return nil
}

func (cmd *CheckCommand) stream(ctx context.Context, parsed checkArgs) (contracts.InclusionResponse, error) {
	// The daemon drops duplicate and blank targets, so indexes refer to the
	// normalized list.
	total := len(inclusion.NormalizeTargets(parsed.targets))
	results, err := cmd.client.StreamInclusion(ctx, parsed.project, parsed.branch, parsed.targets,
		func(i int, r contracts.InclusionResult) {
			fmt.Fprintf(cmd.progress, "  [%d/%d] %s\n", i+1, total, summarizeResult(r))
		})
	if err != nil {
		return contracts.InclusionResponse{}, err
	}

	branch := parsed.branch
	if normalized, err := inclusion.NormalizeBranch(branch); err == nil {
		branch = normalized
	}
	return contracts.InclusionResponse{
		Project:      parsed.project,
		Branch:       branch,
		Method:       contracts.MethodCompareSearch,
		EvidenceTerm: inclusion.DeriveEvidenceTerm(branch),
		Results:      results,
	}, nil
}
