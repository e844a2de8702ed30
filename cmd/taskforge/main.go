// Command taskforge is the Taskforge CLI client.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/taskforge-io/taskforge/internal/version"
)

const defaultServer = "http://localhost:7171"

func main() {
	var (
		serverURL = flag.String("server", defaultServer, "taskforge server URL")
		token     = flag.String("token", os.Getenv("TASKFORGE_TOKEN"), "JWT auth token")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		Token:      *token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "login":
		err = cli.cmdLogin(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "comment":
		err = cli.cmdComment(rest)
	case "timer":
		err = cli.cmdTimer(rest)
	case "stats":
		err = cli.cmdStats(rest)
	case "report":
		err = cli.cmdReport(rest)
	case "serve":
		fmt.Fprintln(os.Stderr, "use taskforged to run the server")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `taskforge — Taskforge CLI

Usage:
  taskforge [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:7171)
  --token   <token>  JWT auth token (or $TASKFORGE_TOKEN)

Commands:
  version                  print version
  status                   show server status
  login <email>            log in; prints a token for $TASKFORGE_TOKEN
  tasks                    list tasks through the active filters
  task create <title>      create a task
  task show <id>           show one task
  task done <id>           mark a task done
  task delete <id>         delete a task
  comment <id> <text>      comment on a task
  timer start <id>         start time tracking on a task
  timer stop <id>          stop time tracking on a task
  stats                    show task counts
  report [days]            per-day time report (manager only)
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("taskforge %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// do performs a request with the given method and decodes JSON into v
// (may be nil).
func (c *Client) do(method, path string, body io.Reader, v any) error {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil && resp.ContentLength != 0 {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func (c *Client) get(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

func (c *Client) post(path string, body io.Reader, v any) error {
	return c.do(http.MethodPost, path, body, v)
}

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result map[string]any
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Printf("status:  %s\n", strVal(result["status"]))
	fmt.Printf("version: %s\n", strVal(result["version"]))
	fmt.Printf("tasks:   %s\n", strVal(result["tasks"]))
	return nil
}

// --- login ---

func (c *Client) cmdLogin(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskforge login <email>")
	}
	email := args[0]
	fmt.Fprint(os.Stderr, "password: ")
	var password string
	if _, err := fmt.Scanln(&password); err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	var resp struct {
		Token string `json:"token"`
		User  struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := c.post("/api/auth/login", strings.NewReader(body), &resp); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "logged in as %s (%s)\n", resp.User.Name, resp.User.Role)
	fmt.Println(resp.Token)
	return nil
}

// --- tasks ---

func (c *Client) cmdTasks(_ []string) error {
	var tasks []map[string]any
	if err := c.get("/api/tasks/view", &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	fmt.Printf("%-36s %-30s %-12s %-8s\n", "ID", "TITLE", "STATUS", "PRIORITY")
	fmt.Println(strings.Repeat("-", 90))
	for _, t := range tasks {
		fmt.Printf("%-36s %-30s %-12s %-8s\n",
			strVal(t["id"]),
			truncate(strVal(t["title"]), 29),
			strVal(t["status"]),
			strVal(t["priority"]),
		)
	}
	return nil
}

// --- task subcommands ---

func (c *Client) cmdTask(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: taskforge task <create|show|done|delete> ...")
		os.Exit(1)
	}
	sub := args[0]
	switch sub {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: taskforge task create <title>")
		}
		title := strings.Join(args[1:], " ")
		body := fmt.Sprintf(`{"title":%q}`, title)
		var result map[string]any
		if err := c.post("/api/tasks", strings.NewReader(body), &result); err != nil {
			return err
		}
		fmt.Printf("created task %s\n", strVal(result["id"]))
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: taskforge task show <id>")
		}
		var t map[string]any
		if err := c.get("/api/tasks/"+args[1], &t); err != nil {
			return err
		}
		out, _ := json.MarshalIndent(t, "", "  ")
		fmt.Println(string(out))
	case "done":
		if len(args) < 2 {
			return fmt.Errorf("usage: taskforge task done <id>")
		}
		body := `{"status":"done"}`
		if err := c.do(http.MethodPut, "/api/tasks/"+args[1]+"/status", strings.NewReader(body), nil); err != nil {
			return err
		}
		fmt.Printf("task %s done\n", args[1])
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: taskforge task delete <id>")
		}
		if err := c.do(http.MethodDelete, "/api/tasks/"+args[1], nil, nil); err != nil {
			return err
		}
		fmt.Printf("task %s deleted\n", args[1])
	default:
		return fmt.Errorf("unknown task subcommand: %s", sub)
	}
	return nil
}

// --- comments ---

func (c *Client) cmdComment(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: taskforge comment <id> <text>")
	}
	id := args[0]
	body := fmt.Sprintf(`{"content":%q}`, strings.Join(args[1:], " "))
	var result map[string]any
	if err := c.post("/api/tasks/"+id+"/comments", strings.NewReader(body), &result); err != nil {
		return err
	}
	fmt.Printf("comment %s added\n", strVal(result["id"]))
	return nil
}

// --- timer ---

func (c *Client) cmdTimer(args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: taskforge timer <start|stop> <id>")
		os.Exit(1)
	}
	sub, id := args[0], args[1]
	switch sub {
	case "start":
		var entry map[string]any
		if err := c.post("/api/tasks/"+id+"/timer/start", nil, &entry); err != nil {
			return err
		}
		fmt.Printf("timer running on task %s\n", id)
	case "stop":
		var entry map[string]any
		if err := c.post("/api/tasks/"+id+"/timer/stop", nil, &entry); err != nil {
			return err
		}
		fmt.Printf("logged %sm on task %s\n", strVal(entry["duration"]), id)
	default:
		return fmt.Errorf("unknown timer subcommand: %s", sub)
	}
	return nil
}

// --- stats and reporting ---

func (c *Client) cmdStats(_ []string) error {
	var stats map[string]any
	if err := c.get("/api/stats", &stats); err != nil {
		return err
	}
	for _, k := range []string{"total", "todo", "in_progress", "review", "done", "high_priority", "overdue"} {
		fmt.Printf("%-14s %s\n", k+":", strVal(stats[k]))
	}
	return nil
}

func (c *Client) cmdReport(args []string) error {
	path := "/api/reports/time"
	if len(args) > 0 {
		path += "?days=" + args[0]
	}
	var report []struct {
		Date          string `json:"date"`
		TasksCreated  int    `json:"tasks_created"`
		MinutesLogged int    `json:"minutes_logged"`
	}
	if err := c.get(path, &report); err != nil {
		return err
	}
	fmt.Printf("%-12s %-14s %-14s\n", "DATE", "TASKS CREATED", "MINUTES LOGGED")
	fmt.Println(strings.Repeat("-", 42))
	for _, d := range report {
		fmt.Printf("%-12s %-14d %-14d\n", d.Date, d.TasksCreated, d.MinutesLogged)
	}
	return nil
}

// --- helpers ---

func strVal(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
