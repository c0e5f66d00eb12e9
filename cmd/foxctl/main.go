package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *client) request(method, path string, body any) (int, []byte, error) {
	var buf *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		buf = bytes.NewReader(b)
	} else {
		buf = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.baseURL+path, buf)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

func (c *client) uploadFile(sessionID, slot, file string) (int, []byte, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, nil, err
	}
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("image", filepath.Base(file))
	if err != nil {
		return 0, nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return 0, nil, err
	}
	_ = w.Close()

	path := fmt.Sprintf("/v1/qa/sessions/%s/images/%s", url.PathEscape(sessionID), url.PathEscape(slot))
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

type profile struct {
	BaseURL string `yaml:"baseUrl"`
	Token   string `yaml:"token"`
}

func configPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".foxctl.yaml"
	}
	return filepath.Join(home, ".foxctl.yaml")
}

func loadProfile() profile {
	var p profile
	data, err := os.ReadFile(configPath())
	if err != nil {
		return p
	}
	_ = yaml.Unmarshal(data, &p)
	return p
}

func saveProfile(p profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath(), data, 0o600)
}

// requiredSlots mirrors the server-side canonical slot order.
var requiredSlots = []string{
	"exterior_front",
	"exterior_back",
	"exterior_left",
	"exterior_right",
	"interior_dashboard",
	"interior_seats",
	"interior_floor",
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	prof := loadProfile()
	baseURL := getenv("FLEETFOX_BASE_URL", prof.BaseURL)
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := getenv("FLEETFOX_TOKEN", prof.Token)
	u := newUI()

	root := &cobra.Command{
		Use:   "foxctl",
		Short: "FleetFox CLI",
		Long:  "FleetFox CLI for vehicle QA photo sessions, submissions, and verdicts.",
	}
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "FleetFox server base URL")
	root.PersistentFlags().StringVar(&token, "token", token, "Bearer token")

	root.AddCommand(initCmd(u))
	root.AddCommand(configCmd(&baseURL, &token, u))
	root.AddCommand(clientsCmd(&baseURL, &token, u))
	root.AddCommand(sessionCmd(&baseURL, &token, u))
	root.AddCommand(uploadCmd(&baseURL, &token, u))
	root.AddCommand(rmCmd(&baseURL, &token, u))
	root.AddCommand(submitCmd(&baseURL, &token, u))
	root.AddCommand(verdictCmd(&baseURL, &token, u))
	root.AddCommand(watchCmd(&baseURL, u))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, u.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func initCmd(u *ui) *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Store server URL and token in ~/.foxctl.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = "http://localhost:8080"
			}
			fmt.Print("Token (empty for guest access): ")
			var tok string
			if term.IsTerminal(int(os.Stdin.Fd())) {
				b, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Println()
				if err != nil {
					return err
				}
				tok = string(b)
			} else {
				_, _ = fmt.Scanln(&tok)
			}
			if err := saveProfile(profile{BaseURL: baseURL, Token: strings.TrimSpace(tok)}); err != nil {
				return err
			}
			fmt.Printf("%s Profile written to %s\n", u.ok("[OK]"), configPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "server", "", "Server base URL")
	return cmd
}

func configCmd(baseURL, token *string, u *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the server's public runtime configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			status, resp, err := c.request("GET", "/api/config", nil)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			fmt.Println(string(resp))
			return nil
		},
	}
}

func clientsCmd(baseURL, token *string, u *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List client codes accepted on submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			status, resp, err := c.request("GET", "/v1/qa/clients", nil)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			var out struct {
				Clients []string `json:"clients"`
			}
			if err := json.Unmarshal(resp, &out); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			for _, cl := range out.Clients {
				fmt.Println(cl)
			}
			return nil
		},
	}
}

func sessionCmd(baseURL, token *string, u *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "session <session-id>",
		Short: "Show a session: filled slots, missing photos, submission state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Restoring session..."
			spin.Start()
			status, resp, err := c.request("GET", "/v1/qa/sessions/"+url.PathEscape(args[0]), nil)
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			var out struct {
				TaskID  string   `json:"task_id"`
				FoxID   string   `json:"fox_id"`
				Missing []string `json:"missing_slots"`
			}
			if err := json.Unmarshal(resp, &out); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			fmt.Printf("%s %s\n", u.title("Session"), args[0])
			fmt.Printf("  task: %s\n  fox:  %s\n", out.TaskID, out.FoxID)
			if len(out.Missing) == 0 {
				fmt.Printf("  %s all 7 photos uploaded\n", u.ok("complete:"))
			} else {
				fmt.Printf("  %s %s\n", u.warn("missing:"), strings.Join(out.Missing, ", "))
			}
			return nil
		},
	}
}

func uploadCmd(baseURL, token *string, u *ui) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:     "upload <session-id> [slot file]",
		Short:   "Upload one photo, or a whole directory of slot-named photos",
		Example: "foxctl upload s1 exterior_front front.jpg\nfoxctl upload s1 --dir ./photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("session id is required")
			}
			sessionID := args[0]
			c := newClient(*baseURL, *token)

			if dir != "" {
				return uploadDir(c, sessionID, dir, u)
			}
			if len(args) != 3 {
				return errors.New("expected: upload <session-id> <slot> <file> (or --dir)")
			}
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Uploading " + args[1] + "..."
			spin.Start()
			status, resp, err := c.uploadFile(sessionID, args[1], args[2])
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			fmt.Printf("%s Uploaded %s\n", u.ok("[OK]"), args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory holding <slot>.jpg files for every required slot")
	return cmd
}

// uploadDir uploads <slot>.jpg (or .png) for each required slot found in dir.
func uploadDir(c *client, sessionID, dir string, u *ui) error {
	type entry struct{ slot, file string }
	var entries []entry
	for _, slot := range requiredSlots {
		for _, ext := range []string{".jpg", ".jpeg", ".png"} {
			file := filepath.Join(dir, slot+ext)
			if _, err := os.Stat(file); err == nil {
				entries = append(entries, entry{slot: slot, file: file})
				break
			}
		}
	}
	if len(entries) == 0 {
		return fmt.Errorf("no slot-named images found in %s", dir)
	}

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("Uploading photos"),
		progressbar.OptionSetWidth(18),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	for _, e := range entries {
		status, resp, err := c.uploadFile(sessionID, e.slot, e.file)
		if err != nil {
			return err
		}
		if status >= 300 {
			return fmt.Errorf("upload %s failed (%d): %s", e.slot, status, string(resp))
		}
		_ = bar.Add(1)
	}
	fmt.Printf("%s Uploaded %d photos\n", u.ok("[OK]"), len(entries))
	if len(entries) < len(requiredSlots) {
		fmt.Printf("%s %d slots still missing\n", u.warn("[WARN]"), len(requiredSlots)-len(entries))
	}
	return nil
}

func rmCmd(baseURL, token *string, u *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session-id> <slot>",
		Short: "Remove a photo from a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			path := fmt.Sprintf("/v1/qa/sessions/%s/images/%s", url.PathEscape(args[0]), url.PathEscape(args[1]))
			status, resp, err := c.request("DELETE", path, nil)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			fmt.Printf("%s Removed %s\n", u.ok("[OK]"), args[1])
			return nil
		},
	}
}

func submitCmd(baseURL, token *string, u *ui) *cobra.Command {
	var clientID, vehicleID, foxID string
	cmd := &cobra.Command{
		Use:   "submit <session-id>",
		Short: "Submit a complete session to the quality-check workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			body := map[string]any{}
			if clientID != "" {
				body["client_id"] = clientID
			}
			if vehicleID != "" {
				body["vehicle_id"] = vehicleID
			}
			if foxID != "" {
				body["fox_id"] = foxID
			}

			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Submitting batch..."
			spin.Start()
			status, resp, err := c.request("POST", "/v1/qa/sessions/"+url.PathEscape(args[0])+"/submit", body)
			spin.Stop()
			if err != nil {
				return err
			}

			var out struct {
				State struct {
					Phase  string `json:"phase"`
					TaskID string `json:"task_id"`
					Result *struct {
						Status      string `json:"status"`
						TotalIssues int    `json:"total_issues"`
						Feedback    string `json:"feedback,omitempty"`
					} `json:"result"`
				} `json:"state"`
				MissingPhotos []string `json:"missing_photos"`
			}
			if err := json.Unmarshal(resp, &out); err != nil {
				fmt.Println(string(resp))
				return nil
			}

			switch out.State.Phase {
			case "RESOLVED":
				r := out.State.Result
				verdict := u.ok(strings.ToUpper(r.Status))
				if r.Status != "pass" {
					verdict = u.warn(strings.ToUpper(r.Status))
				}
				fmt.Printf("%s Verdict: %s (%d issues)\n", u.ok("[OK]"), verdict, r.TotalIssues)
				if r.Feedback != "" {
					fmt.Printf("  %s\n", u.dim(r.Feedback))
				}
			case "ACCEPTED":
				fmt.Printf("%s Batch accepted; verdict arrives asynchronously\n", u.ok("[OK]"))
			case "PENDING":
				fmt.Printf("%s Batch delivered; waiting for the workflow verdict (task %s)\n", u.info("[INFO]"), out.State.TaskID)
			case "AWAITING_COMPLETION":
				fmt.Printf("%s Missing photos: %s\n", u.warn("[WARN]"), strings.Join(out.MissingPhotos, ", "))
			default:
				fmt.Printf("%s Submission failed (%d): %s\n", u.err("[ERROR]"), status, string(resp))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Client code")
	cmd.Flags().StringVar(&vehicleID, "vehicle", "", "Vehicle identifier")
	cmd.Flags().StringVar(&foxID, "fox", "", "Submitter identity (guests only)")
	return cmd
}

func verdictCmd(baseURL, token *string, u *ui) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "verdict [task-id]",
		Short: "Show one verdict, or the most recent ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			path := fmt.Sprintf("/v1/qa/verdicts?limit=%d", limit)
			if len(args) == 1 {
				path = "/v1/qa/verdicts/" + url.PathEscape(args[0])
			}
			status, resp, err := c.request("GET", path, nil)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			fmt.Println(string(resp))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "How many recent verdicts to list")
	return cmd
}

func watchCmd(baseURL *string, u *ui) *cobra.Command {
	var foxID, clientID string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream verdicts live over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			wsURL, err := toWebsocketURL(*baseURL, foxID, clientID)
			if err != nil {
				return err
			}

			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				return fmt.Errorf("connect %s: %w", wsURL, err)
			}
			defer conn.Close()
			fmt.Printf("%s Connected. Waiting for verdicts...\n", u.info("[INFO]"))

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			go func() {
				<-ctx.Done()
				_ = conn.Close()
			}()

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				printVerdictFrame(msg, u)
			}
		},
	}
	cmd.Flags().StringVar(&foxID, "fox-id", "", "Only verdicts for this submitter")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Only verdicts for this client")
	return cmd
}

func toWebsocketURL(base, foxID, clientID string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = "/ws"
	q := parsed.Query()
	if foxID != "" {
		q.Set("fox_id", foxID)
	}
	if clientID != "" {
		q.Set("client_id", clientID)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func printVerdictFrame(msg []byte, u *ui) {
	var frame struct {
		Verdict struct {
			TaskID        string `json:"task_id"`
			OverallStatus string `json:"overall_status"`
			TotalIssues   int    `json:"total_issues"`
			FeedbackText  string `json:"feedback_text"`
		} `json:"verdict"`
	}
	if err := json.Unmarshal(msg, &frame); err != nil {
		fmt.Println(string(msg))
		return
	}
	v := frame.Verdict
	badge := u.ok(strings.ToUpper(v.OverallStatus))
	switch v.OverallStatus {
	case "fail":
		badge = u.err(strings.ToUpper(v.OverallStatus))
	case "review_needed":
		badge = u.warn(strings.ToUpper(v.OverallStatus))
	}
	fmt.Printf("%s %s  %s  issues=%d\n", u.dim(time.Now().Format("15:04:05")), badge, v.TaskID, v.TotalIssues)
	if v.FeedbackText != "" {
		fmt.Printf("  %s\n", u.dim(v.FeedbackText))
	}
}
