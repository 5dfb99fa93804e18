package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/controller"
	"resume-screener-go/internal/history"
	"resume-screener-go/internal/types"
	"resume-screener-go/internal/view"

	"github.com/spf13/pflag"
)

const defaultHistoryLimit = 20

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// selectPath 选择本地文件，路径无效时展示与不可读文件相同的提示
func selectPath(a *app, path string) error {
	candidate, err := controller.CandidateFromPath(path)
	if err != nil {
		a.term.ShowError(constants.MsgFileUnreadable)
		return &controller.ValidationError{Reason: controller.ReasonUnreadable, Message: constants.MsgFileUnreadable, Err: err}
	}
	return a.ctrl.SelectFile(candidate)
}

func runAnalyze(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("analyze")
	preflight := fs.Bool("preflight", false, "extract text locally before uploading")
	if err := fs.Parse(args); err != nil {
		return usagef("analyze: %v", err)
	}
	if fs.NArg() != 1 {
		return usagef("analyze: expected exactly one file")
	}

	path := fs.Arg(0)
	if err := selectPath(a, path); err != nil {
		return err
	}
	if *preflight {
		a.preflight(ctx, path)
	}
	return a.ctrl.Analyze(ctx)
}

func runMatch(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("match")
	jd := fs.String("jd", "", "job description text")
	jdFile := fs.String("jd-file", "", "read the job description from a file")
	preflight := fs.Bool("preflight", false, "extract text locally before uploading")
	if err := fs.Parse(args); err != nil {
		return usagef("match: %v", err)
	}
	if fs.NArg() != 1 {
		return usagef("match: expected exactly one file")
	}

	description, err := readDescription(*jd, *jdFile)
	if err != nil {
		return err
	}

	path := fs.Arg(0)
	if err := selectPath(a, path); err != nil {
		return err
	}
	if *preflight {
		a.preflight(ctx, path)
	}
	a.term.SetDescription(description)
	return a.ctrl.MatchAgainstDescription(ctx, description)
}

// readDescription --jd 与 --jd-file 二选一
func readDescription(text, path string) (string, error) {
	switch {
	case text != "" && path != "":
		return "", usagef("match: use either --jd or --jd-file, not both")
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("读取JD文件失败: %w", err)
		}
		return string(data), nil
	default:
		// 空JD交给控制器校验并展示提示
		return text, nil
	}
}

func runChat(ctx context.Context, a *app, args []string) error {
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return usagef("chat: message is required")
	}
	return a.ctrl.SendChatMessage(ctx, message)
}

func runHistory(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("history")
	limit := fs.Int("limit", defaultHistoryLimit, "number of records to show")
	all := fs.Bool("all", false, "include every session (requires mysql)")
	if err := fs.Parse(args); err != nil {
		return usagef("history: %v", err)
	}
	return showHistory(ctx, a, *limit, *all)
}

func showHistory(ctx context.Context, a *app, limit int, all bool) error {
	q := history.Query{SessionID: a.sessionID, Limit: limit}
	if all {
		q.SessionID = ""
	}
	entries, err := a.lister.List(ctx, q)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.term.Notice("No screenings recorded yet.")
		return nil
	}
	writeHistory(a.out, entries, all)
	return nil
}

func writeHistory(out io.Writer, entries []history.Entry, withSession bool) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := "TIME\tKIND\tFILE\tSCORE\tRAG\tRECORD"
	if withSession {
		header += "\tSESSION"
	}
	fmt.Fprintln(tw, header)
	for _, e := range entries {
		score := types.Score{}
		if e.Score != nil {
			score = types.Score{Value: *e.Score, Valid: true}
		}
		sv := view.NewScoreView(score)
		scoreText := sv.Text
		if sv.Band != view.BandNone {
			scoreText += " (" + string(sv.Band) + ")"
		}
		rag := "-"
		if e.RAGEnhanced {
			rag = "yes"
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s",
			e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Kind, filepath.Base(e.FileName), scoreText, rag, e.RecordID)
		if withSession {
			line += "\t" + e.SessionID
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
}
