package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RizleneBERRAG/PIXELCRM-IA/config"
)

func TestExtractServiceCreateTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract/task" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Missing auth header, got %q", r.Header.Get("Authorization"))
		}

		var req ExtractTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.URL != "http://minio/devis.pdf" {
			t.Errorf("Unexpected url %s", req.URL)
		}
		if req.DataID != "audit-1:devis.pdf" {
			t.Errorf("Unexpected data_id %s", req.DataID)
		}
		if req.Callback != "http://localhost/cb" || req.Seed != "seed" {
			t.Errorf("Expected callback fields, got %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"msg":  "ok",
			"data": map[string]string{"task_id": "task-42"},
		})
	}))
	defer server.Close()

	svc := NewExtractService(&config.ExtractConfig{
		APIURL:      server.URL,
		APIToken:    "test-token",
		Languages:   "fra+eng",
		CallbackURL: "http://localhost/cb",
		Seed:        "seed",
	})

	resp, err := svc.CreateTask("http://minio/devis.pdf", "audit-1:devis.pdf")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if resp.Data.TaskID != "task-42" {
		t.Errorf("Expected task-42, got %s", resp.Data.TaskID)
	}
}

func TestExtractServiceCreateTaskAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 1, "msg": "quota exceeded"})
	}))
	defer server.Close()

	svc := NewExtractService(&config.ExtractConfig{APIURL: server.URL})

	if _, err := svc.CreateTask("http://minio/devis.pdf", "x"); err == nil {
		t.Error("Expected error for non-zero API code")
	}
}

func TestExtractServiceGetTaskStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract/task/task-42" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": map[string]string{
				"task_id":      "task-42",
				"state":        "done",
				"text_zip_url": "http://example/result.zip",
			},
		})
	}))
	defer server.Close()

	svc := NewExtractService(&config.ExtractConfig{APIURL: server.URL})

	status, err := svc.GetTaskStatus("task-42")
	if err != nil {
		t.Fatalf("GetTaskStatus failed: %v", err)
	}
	if status.Data.State != "done" || status.Data.TextZipURL == "" {
		t.Errorf("Unexpected status %+v", status.Data)
	}
}

func TestVerifyCallback(t *testing.T) {
	svc := NewExtractService(&config.ExtractConfig{Seed: "seed"})

	content := `{"task_id":"t","data_id":"d","state":"done"}`
	hash := sha256.Sum256([]byte("d" + "seed" + content))
	checksum := hex.EncodeToString(hash[:])

	if !svc.VerifyCallback(checksum, content, "d") {
		t.Error("Expected valid checksum to verify")
	}
	if svc.VerifyCallback("deadbeef", content, "d") {
		t.Error("Expected invalid checksum to fail")
	}
	if svc.VerifyCallback(checksum, content, "other") {
		t.Error("Expected checksum bound to the data id")
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create zip entry: %v", err)
		}
		f.Write([]byte(content))
	}
	w.Close()
	return buf.Bytes()
}

func TestFetchZipAndExtractText(t *testing.T) {
	zipData := buildZip(t, map[string]string{
		"page_2.md":   "deuxieme page",
		"page_1.md":   "premiere page",
		"layout.json": `{"ignored":true}`,
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipData)
	}))
	defer server.Close()

	svc := NewExtractService(&config.ExtractConfig{})

	text, err := svc.FetchZipAndExtractText(server.URL)
	if err != nil {
		t.Fatalf("FetchZipAndExtractText failed: %v", err)
	}
	if text != "premiere page\ndeuxieme page" {
		t.Errorf("Expected pages joined in name order, got %q", text)
	}
}

func TestFetchZipNoTextFile(t *testing.T) {
	zipData := buildZip(t, map[string]string{"layout.json": "{}"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipData)
	}))
	defer server.Close()

	svc := NewExtractService(&config.ExtractConfig{})

	if _, err := svc.FetchZipAndExtractText(server.URL); err == nil {
		t.Error("Expected error for ZIP without text files")
	}
}

func TestCallbackDelivery(t *testing.T) {
	svc := NewExtractService(&config.ExtractConfig{PollSeconds: 1, MaxPolls: 3})

	ch := svc.registerWaiter("audit-1:devis.pdf")
	defer svc.removeWaiter("audit-1:devis.pdf")

	// The channel is buffered, so delivery before the wait must not be lost
	svc.DeliverCallback("audit-1:devis.pdf", "texte extrait")

	text := svc.waitForCallback(context.Background(), "audit-1:devis.pdf", ch)
	if text != "texte extrait" {
		t.Errorf("Expected delivered text, got %q", text)
	}
}

// A callback can arrive while the task-creation request is still in flight.
// The extraction must still pick it up instead of timing out with empty text.
func TestExtractTextCallbackDuringTaskCreation(t *testing.T) {
	var svc *ExtractService

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svc.DeliverCallback("audit-2:facture.pdf", "texte precoce")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": map[string]string{"task_id": "task-7"},
		})
	}))
	defer server.Close()

	svc = NewExtractService(&config.ExtractConfig{
		APIURL:      server.URL,
		CallbackURL: "http://localhost/cb",
		Seed:        "seed",
		PollSeconds: 1,
		MaxPolls:    2,
	})

	done := make(chan string, 1)
	go func() {
		done <- svc.ExtractText(context.Background(), "http://minio/facture.pdf", "audit-2:facture.pdf")
	}()

	select {
	case text := <-done:
		if text != "texte precoce" {
			t.Errorf("Expected the early callback text, got %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Extraction did not pick up the early callback")
	}
}

func TestDeliverCallbackUnknownDataID(t *testing.T) {
	svc := NewExtractService(&config.ExtractConfig{})
	// Must not panic or block
	svc.DeliverCallback("never-registered", "texte")
}

func TestExtractTextTaskCreationFailure(t *testing.T) {
	svc := NewExtractService(&config.ExtractConfig{APIURL: "http://127.0.0.1:1"})

	text := svc.ExtractText(context.Background(), "http://minio/devis.pdf", "x")
	if text != "" {
		t.Errorf("Expected empty text on task creation failure, got %q", text)
	}
}
