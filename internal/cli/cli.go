package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rbright/sysprobe/internal/protocol"
)

type Command string

const (
	CommandServe   Command = "serve"
	CommandLogd    Command = "logd"
	CommandGet     Command = "get"
	CommandServers Command = "servers"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandServe:   {},
	CommandLogd:    {},
	CommandGet:     {},
	CommandServers: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Target names the value a get command asks for.
type Target string

const (
	TargetMonitor Target = "monitor"
	TargetPixel   Target = "pixel"
	TargetPID     Target = "pid"
	TargetThreads Target = "threads"
)

// Call builds the protocol call for a get target.
func (t Target) Call(x, y int) protocol.Call {
	switch t {
	case TargetMonitor:
		return protocol.GetMonitorParams{}
	case TargetPixel:
		return protocol.GetPixelColor{X: x, Y: y}
	case TargetPID:
		return protocol.GetProcessID{}
	case TargetThreads:
		return protocol.GetThreadCount{}
	default:
		return nil
	}
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	Role       protocol.Role
	Target     Target
	X          int
	Y          int
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	seenCommand := false
	seenX, seenY := false, false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--role":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--role requires a value")
			}
			role, err := protocol.ParseRole(args[i])
			if err != nil {
				return Parsed{}, err
			}
			parsed.Role = role
		case "--x", "--y":
			i++
			if i >= len(args) {
				return Parsed{}, fmt.Errorf("%s requires a value", arg)
			}
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 0 {
				return Parsed{}, fmt.Errorf("%s must be a non-negative integer, got %q", arg, args[i])
			}
			if arg == "--x" {
				parsed.X, seenX = n, true
			} else {
				parsed.Y, seenY = n, true
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			if seenCommand {
				if parsed.Command != CommandGet || parsed.Target != "" {
					return Parsed{}, fmt.Errorf("unexpected arguments after command %q", string(parsed.Command))
				}
				target := Target(arg)
				if target.Call(0, 0) == nil {
					return Parsed{}, fmt.Errorf("unknown get target: %s", arg)
				}
				parsed.Target = target
				continue
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			seenCommand = true
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
		}
	}

	switch parsed.Command {
	case CommandServe:
		if parsed.Role == "" {
			return Parsed{}, errors.New("serve requires --role monitor|proc")
		}
	case CommandGet:
		if parsed.Target == "" {
			return Parsed{}, errors.New("get requires a target: monitor, pixel, pid, or threads")
		}
		if parsed.Target == TargetPixel && (!seenX || !seenY) {
			return Parsed{}, errors.New("get pixel requires --x and --y")
		}
	}
	if parsed.Role != "" && parsed.Command != CommandServe {
		return Parsed{}, errors.New("--role is only valid with serve")
	}
	if (seenX || seenY) && parsed.Target != TargetPixel {
		return Parsed{}, errors.New("--x and --y are only valid with get pixel")
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  serve --role monitor|proc   Run a responder for one role
  logd                        Forward the log pipe into the responder log file
  get monitor                 Print main monitor width and height
  get pixel --x N --y N       Print the main monitor pixel color at (N, N)
  get pid                     Print the proc responder process id
  get threads                 Print the proc responder thread count
  servers                     List responder sockets and whether they answer
  doctor                      Run configuration and environment checks
  version                     Print version information
  help                        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/sysprobe/config.toml)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
