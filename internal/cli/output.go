package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/runner"
	"golang.org/x/term"
)

// Output formats.
const (
	FormatAuto   = "auto"
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

// createLogger configures the application logger.
// It writes to Stderr to keep Stdout for rendered output. Debug forces the
// debug level; otherwise CANOPY_LOG_LEVEL decides, defaulting to warn.
func createLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(logging.LevelFromEnv(slog.LevelWarn))
}

// resolveFormat turns "auto" into pretty on a terminal and json otherwise.
func resolveFormat(format string, w io.Writer) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatAuto:
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return FormatPretty, nil
		}
		return FormatJSON, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatPretty:
		return FormatPretty, nil
	}
	return "", fmt.Errorf("unknown output format %q (want auto, json or pretty)", format)
}

// terminalWidth returns the width of w when it is a terminal, else 0.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return 0
}

// printResponse writes resp to w in the given (resolved) format.
func printResponse(w io.Writer, format string, resp *runner.Response) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	var sb strings.Builder
	if rep := resp.Report; rep != nil {
		fmt.Fprintf(&sb, "## Run `%s` from `%s`\n\n", rep.RunID, rep.TriggerNodeID)
		if len(rep.Steps) == 0 {
			sb.WriteString("_no handlers_\n")
		}
		for _, step := range rep.Steps {
			mark := "✔"
			switch {
			case step.Skipped:
				mark = "⤼"
			case !step.Success:
				mark = "✘"
			}
			fmt.Fprintf(&sb, "- %s `%s` %s", mark, step.ActionID, step.Type)
			if step.Path != "" {
				fmt.Fprintf(&sb, " _(%s)_", step.Path)
			}
			if step.Error != "" {
				fmt.Fprintf(&sb, ": %s", step.Error)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(tui.Outline(resp.Tree))

	render, err := tui.NewRenderer(terminalWidth(w))
	if err != nil {
		return err
	}
	out, err := render(sb.String())
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
