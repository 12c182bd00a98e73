package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sergeknystautas/landed/internal/config"
	"github.com/sergeknystautas/landed/internal/daemon"
	"github.com/sergeknystautas/landed/internal/version"
	"github.com/sergeknystautas/landed/pkg/cli"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "start":
		// Check if config exists, offer to create if not
		configOk, err := config.EnsureExists()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking config: %v\n", err)
			os.Exit(1)
		}
		if !configOk {
			os.Exit(1)
		}

		if err := daemon.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("landed daemon started")

	case "stop":
		if err := daemon.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("landed daemon stopped")

	case "status":
		running, url, startedAt, err := daemon.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if running {
			fmt.Println("landed daemon is running")
			fmt.Printf("API: %s\n", url)
			if startedAt != "" {
				fmt.Printf("Started: %s\n", startedAt)
			}
		} else {
			fmt.Println("landed daemon is not running")
			os.Exit(1)
		}

	case "daemon-run":
		// This is the entry point for the daemon process
		if err := daemon.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
			os.Exit(1)
		}

	case "check":
		cmd := NewCheckCommand(cli.NewDaemonClient(daemonURL()), newLocalChecker, os.Stdout)
		if err := cmd.Run(args); err != nil {
			var notLanded *NotLandedError
			if errors.As(err, &notLanded) {
				os.Exit(exitNotLanded)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "wizard":
		cmd := NewWizardCommand(cli.NewDaemonClient(daemonURL()), newLocalChecker, os.Stdout)
		if err := cmd.Run(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "token":
		if err := NewTokenCommand().Run(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "version", "--version":
		fmt.Printf("landed %s\n", version.Version)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// daemonURL returns the daemon URL for the configured port, falling back to
// the default when no config can be read.
func daemonURL() string {
	path, err := config.DefaultPath()
	if err != nil {
		return cli.GetDefaultURL()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cli.GetDefaultURL()
	}
	return cli.URLForPort(cfg.GetPort())
}

func printUsage() {
	fmt.Println("landed - has my branch landed on those branches?")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  landed <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  start                               Start the daemon in background")
	fmt.Println("  stop                                Stop the daemon")
	fmt.Println("  status                              Show daemon status and API URL")
	fmt.Println("  daemon-run                          Run the daemon in foreground (for debugging)")
	fmt.Println("  check <project> <branch> <target>…  Check which targets include a branch")
	fmt.Println("  wizard                              Interactive multi-project, multi-term compare")
	fmt.Println("  token set|delete|status <project>   Manage the access token for a project")
	fmt.Println("  version                             Print the version")
	fmt.Println("  help                                Show this help message")
	fmt.Println()
	fmt.Println("Check flags:")
	fmt.Println("  --format table|json|yaml            Output format (default table)")
	fmt.Println("  --stream                            Print each target as it resolves (daemon only)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  landed token set app")
	fmt.Println("  landed check app feature/JIRA-1234 main release/2.0")
	fmt.Println("  landed check app feature/JIRA-1234 main --format json")
	fmt.Println()
	fmt.Printf("check exits %d when any target does not include the branch.\n", exitNotLanded)
}
