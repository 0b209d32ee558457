package transformation

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Transformer applies a transformation to one record's XML. Returned messages
// are per-application diagnostics (xsl:message output); they accompany both
// successful and no-diff results and never fail the call by themselves.
type Transformer interface {
	Apply(ctx context.Context, xml string, t Transformation, params map[string]string) (result string, messages []string, err error)
}

// Func adapts a function into a Transformer, mainly for tests.
type Func func(ctx context.Context, xml string, t Transformation, params map[string]string) (string, []string, error)

func (f Func) Apply(ctx context.Context, xml string, t Transformation, params map[string]string) (string, []string, error) {
	return f(ctx, xml, t, params)
}

// XSLTProc runs stylesheets through the libxslt `xsltproc` command. Each
// Apply call is independent: no shared processor state survives between
// records, so a Migrator can own one instance for its whole run.
type XSLTProc struct {
	// Command overrides the executable name, empty means "xsltproc".
	Command string
}

func (x *XSLTProc) command() string {
	if x.Command != "" {
		return x.Command
	}

	return "xsltproc"
}

func (x *XSLTProc) Apply(ctx context.Context, xml string, t Transformation, params map[string]string) (string, []string, error) {
	args := make([]string, 0, 2+3*len(params))

	for name, value := range params {
		args = append(args, "--stringparam", name, value)
	}

	args = append(args, t.Path, "-")

	cmd := exec.CommandContext(ctx, x.command(), args...)
	cmd.Stdin = strings.NewReader(xml)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	messages := splitMessages(stderr.String())

	if err != nil {
		detail := strings.Join(messages, "; ")
		if detail == "" {
			detail = err.Error()
		}

		return "", nil, fmt.Errorf("transformation %s failed: %s", t.Name(), detail)
	}

	return stdout.String(), messages, nil
}

func splitMessages(raw string) []string {
	var messages []string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			messages = append(messages, line)
		}
	}

	return messages
}

// Available reports whether the underlying command can be found, so callers
// can fail fast at startup instead of on the first record.
func (x *XSLTProc) Available() bool {
	_, err := exec.LookPath(x.command())

	return err == nil
}
