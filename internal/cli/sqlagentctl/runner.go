// Package sqlagentctl is the operator CLI for the sqlagent HTTP API.
package sqlagentctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// usageError marks failures that exit with code 2.
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

type requestError struct {
	status int
	body   string
}

func (e requestError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, e.body)
}

// Run executes one command and returns the process exit code: 0 on
// success, 1 when the request fails, 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	c := &cli{stdout: stdout, httpClient: defaults.HTTPClient}
	root := c.rootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var usage usageError
	if errors.As(err, &usage) {
		_, _ = fmt.Fprintf(stderr, "%s\n\n", usage.msg)
		_, _ = fmt.Fprint(stderr, root.UsageString())
		return 2
	}
	var reqErr requestError
	if errors.As(err, &reqErr) {
		_, _ = fmt.Fprintln(stderr, reqErr.Error())
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
	return 1
}

type cli struct {
	baseURL    string
	timeout    time.Duration
	stdout     io.Writer
	httpClient *http.Client
}

func (c *cli) rootCommand(defaults Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "sqlagentctl",
		Short:         "Talk to a running sqlagent API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{msg: fmt.Sprintf("unknown command %q", args[0])}
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return usageError{msg: "a command is required"}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})
	root.PersistentFlags().StringVar(&c.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "sqlagent API base URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", durationOr(defaults.Timeout, 5*time.Minute), "HTTP timeout (e.g. 30s)")

	root.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "GET /v1/health",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.call(cmd.Context(), http.MethodGet, "/v1/health", nil)
			},
		},
		&cobra.Command{
			Use:   "ready",
			Short: "GET /v1/ready",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.call(cmd.Context(), http.MethodGet, "/v1/ready", nil)
			},
		},
		&cobra.Command{
			Use:   "ask SESSION MESSAGE...",
			Short: "POST /v1/chat/{session_id} with a message",
			Args:  minArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.call(cmd.Context(), http.MethodPost, "/v1/chat/"+url.PathEscape(args[0]),
					map[string]string{"message": strings.Join(args[1:], " ")})
			},
		},
		&cobra.Command{
			Use:   "session SESSION",
			Short: "GET /v1/chat/{session_id}",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.call(cmd.Context(), http.MethodGet, "/v1/chat/"+url.PathEscape(args[0]), nil)
			},
		},
		&cobra.Command{
			Use:   "translate QUESTION...",
			Short: "POST /v1/query/translate without executing the SQL",
			Args:  minArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.call(cmd.Context(), http.MethodPost, "/v1/query/translate",
					map[string]string{"question": strings.Join(args, " ")})
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "GET /v1/schema",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.call(cmd.Context(), http.MethodGet, "/v1/schema", nil)
			},
		},
		c.tablesCommand(),
	)
	return root
}

func (c *cli) tablesCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "tables [TABLE]",
		Short: "GET /v1/tables, or preview rows with GET /v1/tables/{table}",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return c.call(cmd.Context(), http.MethodGet, "/v1/tables", nil)
			}
			path := "/v1/tables/" + url.PathEscape(args[0])
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			return c.call(cmd.Context(), http.MethodGet, path, nil)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "rows to preview (server default 20, max 500)")
	return cmd
}

func (c *cli) call(ctx context.Context, method, path string, payload any) error {
	client := c.httpClient
	if client == nil {
		client = &http.Client{Timeout: c.timeout}
	}
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, payload)
	if err != nil {
		return err
	}
	if code >= 400 {
		return requestError{status: code, body: strings.TrimSpace(string(responseBody))}
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(c.stdout, pretty)
		return nil
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(c.stdout, string(responseBody))
	}
	return nil
}

func doRequest(ctx context.Context, client *http.Client, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError{msg: fmt.Sprintf("%s: expected %d argument(s), got %d", cmd.Name(), n, len(args))}
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usageError{msg: fmt.Sprintf("%s: expected at most %d argument(s), got %d", cmd.Name(), n, len(args))}
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usageError{msg: fmt.Sprintf("%s: expected at least %d argument(s), got %d", cmd.Name(), n, len(args))}
		}
		return nil
	}
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
