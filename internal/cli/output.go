package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"petshop/internal/application/query/mall/dto"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (storage, domain error)
	ExitCommandError = 2 // Command error (bad flags, not configured)
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope for --format json.
type CLIResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// textual values render themselves for --format text.
type textual interface {
	Text() string
}

// Success outputs data in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}

	if t, ok := data.(textual); ok {
		_, err := io.WriteString(f.Writer, t.Text())
		return err
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// cartText renders a cart view.
type cartText struct {
	dto.CartDTO
}

func (c cartText) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cart %s (%s:%s)\n", c.ID, c.Owner.Kind, c.Owner.ID)
	for _, it := range c.Items {
		flag := ""
		if it.Unavailable {
			flag = "  [unavailable]"
		}
		fmt.Fprintf(&b, "  %-24s x%-3d %10s%s\n", it.ProductID, it.Quantity, it.LineTotal.StringFixed(2), flag)
	}
	fmt.Fprintf(&b, "  items=%d total=%s updated=%s", c.TotalQuantity, c.Total.StringFixed(2), c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	if c.ExpiresAt != nil {
		fmt.Fprintf(&b, " expires=%s", c.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	b.WriteString("\n")
	return b.String()
}

type messageText struct {
	Message string `json:"message"`
}

func (m messageText) Text() string { return m.Message + "\n" }

type sweepText struct {
	Deleted int `json:"deleted"`
}

func (s sweepText) Text() string { return fmt.Sprintf("deleted %d expired guest cart(s)\n", s.Deleted) }
