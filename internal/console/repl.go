// Package console is a line-oriented terminal front end for one session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/liliang-cn/pdfqa/internal/domain"
	"github.com/liliang-cn/pdfqa/internal/service"
)

const helpText = `Commands:
  /open <file.pdf>      select a PDF document
  /process              send the document to the backend for processing
  /clear                clear chat history
  /endpoint <url>       set the backend URL
  /temperature <0..1>   set response creativity
  /status               show document, status and settings
  /help                 show this help
  /quit                 exit
Anything else is asked as a question about the processed document.`

// maxLineBytes bounds one input line. Longer lines are reported and skipped.
const maxLineBytes = 4 << 20

// REPL reads commands and questions and dispatches them to a controller.
type REPL struct {
	ctrl     *service.Controller
	in       io.Reader
	out      io.Writer
	readFile func(string) ([]byte, error)

	assistant *color.Color
	success   *color.Color
	warn      *color.Color
	failure   *color.Color
	info      *color.Color
}

// New creates a REPL over ctrl.
func New(ctrl *service.Controller, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		ctrl:      ctrl,
		in:        in,
		out:       out,
		readFile:  os.ReadFile,
		assistant: color.New(color.FgGreen),
		success:   color.New(color.FgGreen, color.Bold),
		warn:      color.New(color.FgYellow),
		failure:   color.New(color.FgRed),
		info:      color.New(color.FgBlue),
	}
}

// Run processes input until EOF or /quit.
func (r *REPL) Run(ctx context.Context) error {
	r.info.Fprintln(r.out, "PDF Q&A Chatbot. Type /help for commands.")
	r.info.Fprintln(r.out, "Please open a PDF to get started.")

	reader := bufio.NewReaderSize(r.in, 64*1024)
	for {
		fmt.Fprint(r.out, "> ")
		raw, tooLong, err := readLine(reader)
		if err != nil && !tooLong {
			fmt.Fprintln(r.out)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if tooLong {
			r.warn.Fprintf(r.out, "Input longer than %d KB was ignored.\n", maxLineBytes/1024)
			continue
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if quit := r.Handle(ctx, line); quit {
			return nil
		}
	}
}

// readLine reads up to the next newline. A line above maxLineBytes is
// consumed and discarded with tooLong set.
func readLine(reader *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, readErr := reader.ReadLine()
		if readErr != nil {
			if len(buf) > 0 {
				return string(buf), false, nil
			}
			return "", tooLong, readErr
		}
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > maxLineBytes {
				buf = nil
				tooLong = true
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}

// Handle dispatches one input line. It returns true on /quit.
func (r *REPL) Handle(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, "/") {
		r.ask(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/open":
		r.open(arg)
	case "/process":
		r.process(ctx)
	case "/clear":
		r.ctrl.ClearHistory()
		r.success.Fprintln(r.out, "Chat history cleared.")
	case "/endpoint":
		r.updateConfig(domain.ConfigUpdate{EndpointURL: &arg})
	case "/temperature":
		t, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			r.failure.Fprintf(r.out, "Invalid temperature %q\n", arg)
			return false
		}
		r.updateConfig(domain.ConfigUpdate{RequestTemperature: &t})
	case "/status":
		r.status()
	default:
		r.warn.Fprintf(r.out, "Unknown command %s. Type /help for commands.\n", cmd)
	}
	return false
}

func (r *REPL) open(path string) {
	if path == "" {
		r.warn.Fprintln(r.out, "Usage: /open <file.pdf>")
		return
	}
	data, err := r.readFile(path)
	if err != nil {
		r.failure.Fprintf(r.out, "Cannot read %s: %v\n", path, err)
		return
	}
	handle, err := domain.NewDocumentHandle(filepath.Base(path), data)
	if err != nil {
		r.failure.Fprintln(r.out, err)
		return
	}
	if err := r.ctrl.SelectFile(handle); err != nil {
		r.failure.Fprintln(r.out, err)
		return
	}
	r.success.Fprintf(r.out, "Uploaded: %s\n", handle.Name)
	r.info.Fprintf(r.out, "File size: %.2f KB\n", handle.SizeKB())
}

func (r *REPL) process(ctx context.Context) {
	r.info.Fprintln(r.out, "Processing PDF...")
	err := r.ctrl.Process(ctx)
	switch {
	case err == nil:
		r.success.Fprintln(r.out, "PDF processed successfully on backend!")
	case errors.Is(err, domain.ErrGateway):
		r.failure.Fprintln(r.out, service.ProcessFailureMessage(err))
	case errors.Is(err, domain.ErrInvalidState):
		r.warn.Fprintln(r.out, "Please open a PDF first.")
	default:
		r.failure.Fprintln(r.out, err)
	}
}

func (r *REPL) ask(ctx context.Context, question string) {
	res, err := r.ctrl.Ask(ctx, question)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			r.warn.Fprintln(r.out, "Please open and process a PDF before asking questions.")
			return
		}
		r.failure.Fprintln(r.out, err)
		return
	}
	if res.Err != nil {
		r.failure.Fprintln(r.out, res.Answer.Content)
		return
	}
	r.assistant.Fprintln(r.out, res.Answer.Content)
}

func (r *REPL) updateConfig(update domain.ConfigUpdate) {
	cfg, err := r.ctrl.UpdateConfig(update)
	if err != nil {
		r.failure.Fprintln(r.out, err)
		return
	}
	r.success.Fprintf(r.out, "Backend: %s  temperature: %.1f\n", cfg.EndpointURL, cfg.RequestTemperature)
}

func (r *REPL) status() {
	snap := r.ctrl.Snapshot()
	if snap.Document != nil {
		fmt.Fprintf(r.out, "Document:    %s (%.2f KB)\n", snap.Document.Name, float64(snap.Document.ByteSize)/1024)
	} else {
		fmt.Fprintln(r.out, "Document:    none")
	}
	fmt.Fprintf(r.out, "Status:      %s\n", snap.Status)
	fmt.Fprintf(r.out, "Messages:    %d\n", len(snap.Messages))
	fmt.Fprintf(r.out, "Backend:     %s\n", snap.Config.EndpointURL)
	fmt.Fprintf(r.out, "Temperature: %.1f\n", snap.Config.RequestTemperature)
	if snap.LastError != "" {
		r.failure.Fprintf(r.out, "Last error:  %s\n", snap.LastError)
	}
}

// PrintTranscript writes messages as a readable transcript.
func PrintTranscript(out io.Writer, messages []*domain.Message) {
	user := color.New(color.FgCyan, color.Bold)
	for _, m := range messages {
		if m.Role == domain.RoleUser {
			user.Fprintf(out, "user: ")
		} else {
			fmt.Fprint(out, "assistant: ")
		}
		fmt.Fprintln(out, m.Content)
	}
}
