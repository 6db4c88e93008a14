package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/resumatch/pkg/matcher"
	"github.com/xhad/resumatch/pkg/parser"
	"github.com/xhad/resumatch/pkg/scraper"
	"github.com/xhad/resumatch/pkg/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Match a resume against job descriptions in the terminal",
	Long: `Start an interactive session. Enter the path of a resume (.pdf, .docx,
.md or .txt) to upload it, then paste a job description followed by an empty
line, or a link to a job posting. Type 'exit' to quit.`,
	RunE: chat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("resume", "r", "", "resume to upload before the first prompt")
}

func chat(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	t := &terminal{
		matcher: a.matcher,
		state:   session.NewState(""),
		in:      bufio.NewScanner(os.Stdin),
		out:     os.Stdout,
	}
	t.in.Buffer(make([]byte, 64*1024), 1024*1024)

	if path, _ := cmd.Flags().GetString("resume"); path != "" {
		t.upload(ctx, path)
	}

	return t.run(ctx)
}

// terminal is the interactive surface. Its session lives until exit.
type terminal struct {
	matcher *matcher.Service
	state   *session.State
	in      *bufio.Scanner
	out     io.Writer
}

func (t *terminal) run(ctx context.Context) error {
	color.Cyan("\nResume matcher (session %s). Enter a resume path, a job description or 'exit'.", t.state.ID())

	userPrompt := color.New(color.FgGreen).FprintfFunc()

	for {
		userPrompt(t.out, "\nYou: ")
		if !t.in.Scan() {
			return t.in.Err()
		}

		line := strings.TrimSpace(t.in.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			return nil
		case looksLikeResume(line):
			t.upload(ctx, line)
		case scraper.IsURL(line):
			t.analyze(ctx, line)
		default:
			t.analyze(ctx, t.readParagraph(line))
		}
	}
}

// readParagraph collects lines until an empty one so multi-line job
// descriptions can be pasted.
func (t *terminal) readParagraph(first string) string {
	lines := []string{first}
	for t.in.Scan() {
		line := t.in.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// looksLikeResume reports whether input names an existing, supported file.
func looksLikeResume(input string) bool {
	path := expandHome(strings.Trim(input, `"'`))
	if !parser.Supported(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func (t *terminal) upload(ctx context.Context, input string) {
	path := expandHome(strings.Trim(input, `"'`))
	f, err := os.Open(path)
	if err != nil {
		color.Red("Cannot open %s: %v", path, err)
		return
	}
	defer f.Close()

	var (
		res       *matcher.IngestResult
		ingestErr error
	)
	withSpinner(fmt.Sprintf("Processing %s...", filepath.Base(path)), func() {
		res, ingestErr = t.matcher.IngestFile(ctx, t.state, filepath.Base(path), f)
	})

	if ingestErr != nil {
		printFailure(ingestErr)
		return
	}
	color.Green("✓ Resume processed! (%d chunks)", res.ChunksAdded)
}

func (t *terminal) analyze(ctx context.Context, input string) {
	var (
		analysis *matcher.Analysis
		err      error
	)
	withSpinner("Analyzing match...", func() {
		var jobDescription string
		jobDescription, err = t.matcher.ResolveJobDescription(ctx, input, "")
		if err != nil {
			return
		}
		analysis, err = t.matcher.Analyze(ctx, t.state, jobDescription)
	})

	if err != nil {
		printFailure(err)
		return
	}

	if !analysis.Critique.OK() {
		color.Red("%s", analysis.Critique.Text)
		return
	}

	fmt.Fprintln(t.out)
	printScore(analysis.Critique.Score)
	assistant := color.New(color.FgCyan).FprintfFunc()
	assistant(t.out, "\n%s\n", analysis.Critique.Text)
	color.New(color.Faint).Fprintf(t.out, "\nContext used: %s\n", analysis.ContextUsed)
}

func printFailure(err error) {
	switch {
	case errors.Is(err, matcher.ErrNoResume):
		color.Yellow("Please upload a resume first.")
	case errors.Is(err, matcher.ErrAlreadyIngested),
		errors.Is(err, matcher.ErrUnsupportedFormat),
		errors.Is(err, matcher.ErrInvalidInput),
		errors.Is(err, matcher.ErrFetchFailed):
		color.Yellow("%v", err)
	default:
		color.Red("Error: %v", err)
	}
}
