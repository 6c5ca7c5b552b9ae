package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/relaxr-go/internal/domain"
	"github.com/yourusername/relaxr-go/pkg/logger"
)

var (
	serverURL       string
	noAutoStart     bool
	verbose         bool
	log             *zap.Logger
	jobPollInterval = 2 * time.Second
	rootCmd     = &cobra.Command{
		Use:   "relaxr",
		Short: "Relaxr CLI - convert YouTube videos into tagged MP3 files",
		Long:  `A command-line interface for the Relaxr conversion server.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logger.NewCLI(verbose)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8765", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	dirCmd.AddCommand(dirSetCmd)
	dirCmd.AddCommand(dirGetCmd)

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(dirCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(logsCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// call sends a JSON request and decodes a JSON reply into out
func call(method, path string, payload interface{}, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug("Request", zap.String("method", method), zap.String("path", path))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(data)))
		}
	}
	return resp.StatusCode, nil
}

// commandResponse mirrors the server's command reply
type commandResponse struct {
	Success   bool    `json:"success"`
	Path      *string `json:"path"`
	FilePath  string  `json:"filePath"`
	FileName  string  `json:"fileName"`
	Message   string  `json:"message"`
	JobID     string  `json:"jobId"`
	ErrorKind string  `json:"errorKind"`
	Error     string  `json:"error"`
}

func (r commandResponse) failureText() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}

var convertCmd = &cobra.Command{
	Use:   "convert [url]",
	Short: "Convert a YouTube video into an MP3 file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		output, _ := cmd.Flags().GetString("output")
		noWait, _ := cmd.Flags().GetBool("no-wait")
		payload := map[string]string{"url": args[0]}
		if output != "" {
			payload["save_path"] = output
		}

		if noWait {
			var job domain.Job
			status, err := call(http.MethodPost, "/api/v1/jobs", payload, &job)
			if err != nil {
				fatal("%v", err)
			}
			if status != http.StatusAccepted {
				fatal("server returned %d", status)
			}
			fmt.Printf("Job submitted: %s\n", job.ID)
			return
		}

		if err := convertAndFollow(payload); err != nil {
			fatal("%v", err)
		}
	},
}

// convertAndFollow submits a job and prints its progress until it finishes.
// It falls back to the blocking endpoint when the event stream is unavailable.
func convertAndFollow(payload map[string]string) error {
	conn, err := dialEvents()
	if err != nil {
		log.Debug("Event stream unavailable, converting without progress", zap.Error(err))
		var resp commandResponse
		if _, err := call(http.MethodPost, "/api/v1/convert", payload, &resp); err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("%s", resp.failureText())
		}
		fmt.Printf("Saved to %s\n", resp.FilePath)
		return nil
	}
	defer conn.Close()

	var job domain.Job
	status, err := call(http.MethodPost, "/api/v1/jobs", payload, &job)
	if err != nil {
		return err
	}
	if status != http.StatusAccepted {
		return fmt.Errorf("server returned %d", status)
	}

	done := make(chan struct{})
	defer close(done)
	events := make(chan domain.Event)
	readErr := make(chan error, 1)
	go func() {
		for {
			var evt domain.Event
			if err := conn.ReadJSON(&evt); err != nil {
				readErr <- err
				return
			}
			select {
			case events <- evt:
			case <-done:
				return
			}
		}
	}()

	// The job status is polled as well, so a finished event that never
	// arrives does not leave the CLI waiting.
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	for {
		select {
		case evt := <-events:
			if evt.JobID != job.ID {
				continue
			}
			switch evt.Type {
			case domain.EventDownloadProgress:
				fmt.Printf("\rProgress: %3d%%", evt.Progress)
			case domain.EventJobFinished:
				fmt.Println()
				if evt.Job == nil {
					return fmt.Errorf("job %s finished without details", job.ID)
				}
				return finishedJob(evt.Job)
			}

		case err := <-readErr:
			return fmt.Errorf("event stream closed: %w", err)

		case <-ticker.C:
			var current domain.Job
			code, err := call(http.MethodGet, "/api/v1/jobs/"+job.ID, nil, &current)
			if err != nil || code != http.StatusOK {
				log.Debug("Job status poll failed", zap.Int("status", code), zap.Error(err))
				continue
			}
			if current.IsTerminal() {
				fmt.Println()
				return finishedJob(&current)
			}
		}
	}
}

// finishedJob reports a terminal job
func finishedJob(job *domain.Job) error {
	if job.Status != domain.StatusCompleted {
		return fmt.Errorf("%s", job.ErrorMessage)
	}
	fmt.Printf("Saved to %s\n", job.OutputPath)
	return nil
}

func dialEvents() (*websocket.Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/v1/events"

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	return conn, err
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List conversion jobs",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		status, _ := cmd.Flags().GetString("status")

		path := "/api/v1/jobs"
		if status != "" {
			path += "?status=" + url.QueryEscape(status)
		}

		var jobs []domain.Job
		code, err := call(http.MethodGet, path, nil, &jobs)
		if err != nil {
			fatal("%v", err)
		}
		if code != http.StatusOK {
			fatal("server returned %d", code)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tCREATED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\n",
				truncate(j.ID, 8),
				truncate(j.Title, 40),
				j.Status,
				j.Progress,
				j.CreatedAt.Format(time.DateTime))
		}
		w.Flush()
	},
}

var jobCmd = &cobra.Command{
	Use:   "job [id]",
	Short: "Show job details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var job domain.Job
		code, err := call(http.MethodGet, "/api/v1/jobs/"+url.PathEscape(args[0]), nil, &job)
		if err != nil {
			fatal("%v", err)
		}
		if code == http.StatusNotFound {
			fatal("job not found")
		}

		fmt.Printf("Job Details:\n")
		fmt.Printf("  ID:       %s\n", job.ID)
		fmt.Printf("  URL:      %s\n", job.SourceURL)
		fmt.Printf("  Status:   %s\n", job.Status)
		fmt.Printf("  Progress: %d%%\n", job.Progress)
		if job.Title != "" {
			fmt.Printf("  Title:    %s\n", job.Title)
			fmt.Printf("  Artist:   %s\n", job.Artist)
		}
		fmt.Printf("  Created:  %s\n", job.CreatedAt.Format(time.DateTime))
		if job.OutputPath != "" {
			fmt.Printf("  File:     %s\n", job.OutputPath)
		}
		if job.ErrorMessage != "" {
			fmt.Printf("  Error:    %s (%s)\n", job.ErrorMessage, job.ErrorKind)
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var stats domain.JobStats
		if _, err := call(http.MethodGet, "/api/v1/jobs/stats", nil, &stats); err != nil {
			fatal("%v", err)
		}

		fmt.Println("Job Statistics:")
		fmt.Printf("  Total:       %d\n", stats.Total)
		fmt.Printf("  Pending:     %d\n", stats.Pending)
		fmt.Printf("  Downloading: %d\n", stats.Downloading)
		fmt.Printf("  Completed:   %d\n", stats.Completed)
		fmt.Printf("  Failed:      %d\n", stats.Failed)
	},
}

var dirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Manage the default save directory",
}

var dirSetCmd = &cobra.Command{
	Use:   "set [path]",
	Short: "Set the default save directory (opens a picker without a path)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		payload := map[string]string{}
		if len(args) == 1 {
			payload["path"] = args[0]
		}

		var resp commandResponse
		if _, err := call(http.MethodPut, "/api/v1/preferences/default-directory", payload, &resp); err != nil {
			fatal("%v", err)
		}
		if !resp.Success || resp.Path == nil {
			fatal("%s", resp.failureText())
		}
		fmt.Printf("Default directory: %s\n", *resp.Path)
	},
}

var dirGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the default save directory",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var resp commandResponse
		if _, err := call(http.MethodGet, "/api/v1/preferences/default-directory", nil, &resp); err != nil {
			fatal("%v", err)
		}
		if resp.Path == nil {
			fmt.Println("No default directory set")
			return
		}
		fmt.Println(*resp.Path)
	},
}

var openCmd = &cobra.Command{
	Use:   "open [file]",
	Short: "Open the folder containing a converted file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var resp commandResponse
		if _, err := call(http.MethodPost, "/api/v1/files/open", map[string]string{"path": args[0]}, &resp); err != nil {
			fatal("%v", err)
		}
		if !resp.Success {
			fatal("%s", resp.failureText())
		}
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [jobs|error]",
	Short: "View server category logs",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		category := string(logger.CategoryJobs)
		if len(args) == 1 {
			category = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")
		search, _ := cmd.Flags().GetString("search")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		query := url.Values{}
		query.Set("limit", fmt.Sprint(limit))
		if search != "" {
			query.Set("q", search)
		}

		var result struct {
			Entries []logger.LogEntry `json:"entries"`
			Error   string            `json:"error"`
		}
		code, err := call(http.MethodGet, "/api/v1/logs/"+url.PathEscape(category)+"?"+query.Encode(), nil, &result)
		if err != nil {
			fatal("%v", err)
		}
		if code != http.StatusOK {
			fatal("%s", result.Error)
		}

		if jsonOutput {
			prettyJSON, _ := json.MarshalIndent(result.Entries, "", "  ")
			fmt.Println(string(prettyJSON))
			return
		}
		for _, e := range result.Entries {
			fmt.Printf("%s [%s] %s\n", e.Timestamp, strings.ToUpper(e.Level), e.Message)
		}
	},
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "Output file path")
	convertCmd.Flags().Bool("no-wait", false, "Submit the job and return immediately")
	jobsCmd.Flags().StringP("status", "s", "", "Filter by status (pending, downloading, completed, error)")
	logsCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries")
	logsCmd.Flags().StringP("search", "q", "", "Only show entries containing this text")
	logsCmd.Flags().BoolP("json", "j", false, "Output in JSON format")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
