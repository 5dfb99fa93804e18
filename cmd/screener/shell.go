package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"resume-screener-go/internal/controller"
	"resume-screener-go/internal/history"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/view"
)

const shellHelp = `Commands:
  tabs                 show panels
  tab <analyze|match|chat>
                       switch panel
  select <path>        choose a resume file
  remove               clear the selected file
  p                    preflight the selected file
  analyze              analyze the selected resume
  jd <text>            set the job description draft
  match [text]         match the selected resume (uses the draft when no text is given)
  chat <message>       ask the assistant; on the chat panel plain lines are sent as messages
  clear                reset selection, results and the job description
  history [N]          list recent screenings
  help                 show this help
  quit                 exit`

// shell 交互式控制台，一行一条命令，按顺序同步执行
type shell struct {
	app          *app
	scanner      *bufio.Scanner
	selectedPath string
}

func newShell(a *app, in io.Reader) *shell {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &shell{app: a, scanner: scanner}
}

// Run 读取到EOF、quit或ctx取消为止
func (s *shell) Run(ctx context.Context) error {
	s.app.startRelay(ctx)
	s.app.term.Notice("Resume screener %s, session %s. Type 'help' for commands.", version, s.app.sessionID)
	s.app.term.ShowTabs()

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(s.app.out, "> ")
		if !s.scanner.Scan() {
			fmt.Fprintln(s.app.out)
			return s.scanner.Err()
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		if quit := s.execute(ctx, line); quit {
			return nil
		}
	}
}

// execute 返回true表示退出
func (s *shell) execute(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	term := s.app.term
	ctrl := s.app.ctrl

	var err error
	switch strings.ToLower(name) {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprintln(s.app.out, shellHelp)
	case "tabs":
		term.ShowTabs()
	case "tab":
		err = term.SelectTab(arg)
	case "select":
		if arg == "" {
			term.Notice("usage: select <path>")
			return false
		}
		if err = selectPath(s.app, arg); err == nil {
			s.selectedPath = arg
		}
	case "remove":
		ctrl.RemoveSelection()
		s.selectedPath = ""
	case "p", "preflight":
		if s.selectedPath == "" {
			term.Notice("Select a file first.")
			return false
		}
		s.app.preflight(ctx, s.selectedPath)
	case "analyze":
		err = ctrl.Analyze(ctx)
	case "jd":
		term.SetDescription(arg)
	case "match":
		description := arg
		if description == "" {
			description = term.Regions().Description
		} else {
			term.SetDescription(description)
		}
		err = ctrl.MatchAgainstDescription(ctx, description)
	case "chat":
		err = ctrl.SendChatMessage(ctx, arg)
	case "clear":
		ctrl.ClearAll()
		s.selectedPath = ""
	case "history":
		limit := defaultHistoryLimit
		if arg != "" {
			n, convErr := strconv.Atoi(arg)
			if convErr != nil || n <= 0 {
				term.Notice("usage: history [N]")
				return false
			}
			limit = n
		}
		err = showHistory(ctx, s.app, limit, false)
	default:
		// 聊天面板下直接输入的内容作为消息发送
		if term.Tabs().Active() == view.PanelChat {
			err = ctrl.SendChatMessage(ctx, line)
		} else {
			term.Notice("Unknown command %q. Type 'help' for commands.", name)
		}
	}
	s.report(ctx, err)
	return false
}

// report 控制器错误已经展示过，其余错误以提示输出
func (s *shell) report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	var (
		verr *controller.ValidationError
		rerr *controller.RemoteError
		terr *controller.TransportError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &rerr), errors.As(err, &terr):
		logger.Ctx(ctx).Debug().Err(err).Msg("shell命令失败")
	case errors.Is(err, controller.ErrOperationPending):
		s.app.term.Notice("Still working on the previous request.")
	case errors.Is(err, history.ErrNoHistorySource):
		s.app.term.Notice("History needs mysql or redis to be configured.")
	default:
		s.app.term.Notice("%v", err)
	}
}
