package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RizleneBERRAG/PIXELCRM-IA/config"
)

// ExtractService is the client of the OCR text-extraction task API. Each
// uploaded PDF becomes one extraction task; the result is the document's
// text (native extraction with OCR fallback happens on the remote side).
type ExtractService struct {
	config     *config.ExtractConfig
	httpClient *http.Client

	mu      sync.Mutex
	waiters map[string]chan string // data_id -> extracted text, fed by callback
}

// ExtractTaskRequest represents the request to create an extraction task
type ExtractTaskRequest struct {
	URL       string `json:"url"`
	Languages string `json:"languages"`
	Callback  string `json:"callback,omitempty"`
	Seed      string `json:"seed,omitempty"`
	DataID    string `json:"data_id,omitempty"`
}

// ExtractTaskResponse represents the response from task creation
type ExtractTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// ExtractTaskStatusResponse represents the task status query response
type ExtractTaskStatusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		TaskID     string `json:"task_id"`
		DataID     string `json:"data_id"`
		State      string `json:"state"` // pending, running, done, failed
		TextZipURL string `json:"text_zip_url,omitempty"`
		ErrorMsg   string `json:"err_msg,omitempty"`
	} `json:"data"`
}

func NewExtractService(cfg *config.ExtractConfig) *ExtractService {
	return &ExtractService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		waiters: make(map[string]chan string),
	}
}

// CreateTask creates a new extraction task for a stored PDF
func (s *ExtractService) CreateTask(pdfURL, dataID string) (*ExtractTaskResponse, error) {
	reqBody := ExtractTaskRequest{
		URL:       pdfURL,
		Languages: s.config.Languages,
		DataID:    dataID,
	}

	if s.config.CallbackURL != "" {
		reqBody.Callback = s.config.CallbackURL
		reqBody.Seed = s.config.Seed
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", s.config.APIURL+"/extract/task", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result ExtractTaskResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	if result.Code != 0 {
		return nil, fmt.Errorf("extraction API error: %s", result.Message)
	}

	return &result, nil
}

// GetTaskStatus queries the status of a task
func (s *ExtractService) GetTaskStatus(taskID string) (*ExtractTaskStatusResponse, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("%s/extract/task/%s", s.config.APIURL, taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Accept", "*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result ExtractTaskStatusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Code != 0 {
		return nil, fmt.Errorf("extraction API error: %s", result.Message)
	}

	return &result, nil
}

// VerifyCallback verifies the callback checksum.
// Checksum = SHA256(uid + seed + content)
func (s *ExtractService) VerifyCallback(checksum, content, uid string) bool {
	data := uid + s.config.Seed + content
	hash := sha256.Sum256([]byte(data))
	expected := hex.EncodeToString(hash[:])
	return checksum == expected
}

// FetchZipAndExtractText downloads the result ZIP and concatenates the text
// files it contains (.md or .txt, one per page), in page order.
func (s *ExtractService) FetchZipAndExtractText(zipURL string) (string, error) {
	resp, err := s.httpClient.Get(zipURL)
	if err != nil {
		return "", fmt.Errorf("failed to download ZIP: %w", err)
	}
	defer resp.Body.Close()

	zipData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ZIP: %w", err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return "", fmt.Errorf("failed to open ZIP: %w", err)
	}

	var names []string
	for _, file := range zipReader.File {
		if strings.HasSuffix(file.Name, ".md") || strings.HasSuffix(file.Name, ".txt") {
			names = append(names, file.Name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no text file found in ZIP")
	}
	sort.Strings(names)

	var pages []string
	for _, name := range names {
		for _, file := range zipReader.File {
			if file.Name != name {
				continue
			}
			rc, err := file.Open()
			if err != nil {
				continue
			}
			content, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				continue
			}
			pages = append(pages, string(content))
		}
	}

	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

// ExtractText runs one extraction end to end: create the task, then wait for
// the callback (when configured) or poll. The waiter is registered before the
// task is created so a callback that arrives before CreateTask returns is not
// dropped. Extraction failures degrade to an empty text: an unreadable scan
// is a finding for the rule engine, not an error that should abort the audit.
func (s *ExtractService) ExtractText(ctx context.Context, pdfURL, dataID string) string {
	var ch chan string
	if s.config.CallbackURL != "" {
		ch = s.registerWaiter(dataID)
		defer s.removeWaiter(dataID)
	}

	resp, err := s.CreateTask(pdfURL, dataID)
	if err != nil {
		slog.Warn("extraction task creation failed", "data_id", dataID, "error", err)
		return ""
	}

	if ch != nil {
		return s.waitForCallback(ctx, dataID, ch)
	}
	return s.pollTask(ctx, resp.Data.TaskID, dataID)
}

func (s *ExtractService) registerWaiter(dataID string) chan string {
	ch := make(chan string, 1)
	s.mu.Lock()
	s.waiters[dataID] = ch
	s.mu.Unlock()
	return ch
}

func (s *ExtractService) removeWaiter(dataID string) {
	s.mu.Lock()
	delete(s.waiters, dataID)
	s.mu.Unlock()
}

func (s *ExtractService) pollTask(ctx context.Context, taskID, dataID string) string {
	interval := time.Duration(s.config.PollSeconds) * time.Second

	for i := 0; i < s.config.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(interval):
		}

		status, err := s.GetTaskStatus(taskID)
		if err != nil {
			slog.Warn("extraction poll failed", "task_id", taskID, "attempt", i+1, "error", err)
			continue
		}

		switch status.Data.State {
		case "done":
			if status.Data.TextZipURL == "" {
				return ""
			}
			text, err := s.FetchZipAndExtractText(status.Data.TextZipURL)
			if err != nil {
				slog.Warn("extraction result fetch failed", "task_id", taskID, "error", err)
				return ""
			}
			return text
		case "failed":
			slog.Warn("extraction task failed", "task_id", taskID, "error", status.Data.ErrorMsg)
			return ""
		}
	}

	slog.Warn("extraction task polling timeout", "task_id", taskID, "data_id", dataID)
	return ""
}

// waitForCallback blocks until DeliverCallback hands over the text for this
// data ID, bounded by the same budget as polling.
func (s *ExtractService) waitForCallback(ctx context.Context, dataID string, ch chan string) string {
	budget := time.Duration(s.config.MaxPolls*s.config.PollSeconds) * time.Second
	select {
	case text := <-ch:
		return text
	case <-time.After(budget):
		slog.Warn("extraction callback timeout", "data_id", dataID)
		return ""
	case <-ctx.Done():
		return ""
	}
}

// DeliverCallback hands a finished extraction to the audit waiting on it.
// Unknown data IDs are ignored: the audit may already have timed out.
func (s *ExtractService) DeliverCallback(dataID, text string) {
	s.mu.Lock()
	ch, ok := s.waiters[dataID]
	s.mu.Unlock()

	if !ok {
		slog.Warn("extraction callback for unknown data id", "data_id", dataID)
		return
	}

	select {
	case ch <- text:
	default:
	}
}
