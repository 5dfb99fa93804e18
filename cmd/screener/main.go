// screener 简历筛选服务的命令行客户端
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"resume-screener-go/internal/config"

	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"              //nolint:gochecknoglobals
	serviceName = "resume-screener-go" //nolint:gochecknoglobals
)

// globalOptions 所有子命令共享的参数，非空时覆盖配置文件
type globalOptions struct {
	configPath string
	baseURL    string
	sessionID  string
	logLevel   string
	noColor    bool
}

// usageError 参数错误，退出码为2
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

const usageText = `Usage: screener [global flags] <command> [args]

Commands:
  analyze <file> [--preflight]                        analyze a resume
  match <file> (--jd <text> | --jd-file <path>) [--preflight]
                                                      match a resume against a job description
  chat <message...>                                   ask the assistant
  shell                                               interactive console
  history [--limit N] [--all]                         list archived screenings
  init-config <path>                                  write a sample config file
  version                                             print version

Global flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run 返回进程退出码
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, fs, err := parseGlobal(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr, fs)
		return 2
	}
	command, cmdArgs := rest[0], rest[1:]

	// 不需要连接后端的命令
	switch command {
	case "version":
		fmt.Fprintf(stdout, "%s %s\n", serviceName, version)
		return 0
	case "init-config":
		if len(cmdArgs) != 1 {
			fmt.Fprintln(stderr, "usage: screener init-config <path>")
			return 2
		}
		if err := config.CreateSampleConfig(cmdArgs[0]); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintf(stdout, "Sample config written to %s\n", cmdArgs[0])
		return 0
	case "help":
		printUsage(stdout, fs)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.Close()
	ctx = a.withLogger(ctx)

	switch command {
	case "analyze":
		err = runAnalyze(ctx, a, cmdArgs)
	case "match":
		err = runMatch(ctx, a, cmdArgs)
	case "chat":
		err = runChat(ctx, a, cmdArgs)
	case "history":
		err = runHistory(ctx, a, cmdArgs)
	case "shell":
		err = newShell(a, stdin).Run(ctx)
	default:
		err = usagef("unknown command %q", command)
	}

	var uerr *usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &uerr):
		fmt.Fprintln(stderr, uerr.msg)
		printUsage(stderr, fs)
		return 2
	default:
		// 控制器错误已经在终端上展示过，这里只补充一行原因
		a.reportFailure(err, stderr)
		return 1
	}
}

// parseGlobal 解析到第一个非参数为止，其余交给子命令
func parseGlobal(args []string, output io.Writer) (globalOptions, *pflag.FlagSet, error) {
	var opts globalOptions
	fs := pflag.NewFlagSet("screener", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.SetInterspersed(false)
	fs.StringVarP(&opts.configPath, "config", "c", "", "Path to config file")
	fs.StringVar(&opts.baseURL, "base-url", "", "Screening service base URL (overrides server.base_url)")
	fs.StringVar(&opts.sessionID, "session", "", "Session ID; reuse it to continue a backend chat session")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable ANSI colors")
	fs.Usage = func() { printUsage(output, fs) }

	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	return opts, fs, nil
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprint(w, usageText)
	fmt.Fprint(w, fs.FlagUsages())
}
