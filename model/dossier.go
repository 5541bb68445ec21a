package model

import (
	"time"

	"github.com/RizleneBERRAG/PIXELCRM-IA/rules"
)

// Dossier is one compliance case as submitted for audit: the CRM identity
// fields plus the names of the uploaded PDF files.
type Dossier struct {
	IEN         string            `json:"ien"`
	ClientName  string            `json:"client_nom"`
	Delegataire string            `json:"delegataire"`
	Fields      map[string]string `json:"fields"`
	Files       []string          `json:"files"`
}

// Label is the human folder name used for exports: "IEN - CLIENT".
func (d *Dossier) Label() string {
	return d.IEN + " - " + d.ClientName
}

// FieldResult is the CRM checklist outcome: which required fields and
// which CRM-declared documents are missing.
type FieldResult struct {
	Status           string   `json:"status"`
	MissingFields    []string `json:"missing_fields"`
	MissingDocuments []string `json:"missing_documents"`
}

// DocumentPresence reports whether a required document type was detected
// among the uploaded filenames, with an example match when it was.
type DocumentPresence struct {
	Type    string `json:"type"`
	Present bool   `json:"present"`
	Example string `json:"example,omitempty"`
}

// Summary carries the first few reasons shown to the auditor up front.
type Summary struct {
	MainReasons []string `json:"main_reasons"`
}

// AuditResult is the full outcome of one dossier validation. Its JSON shape
// is shared with the AI checker used for other delegates; downstream export
// and reporting consume it as-is.
type AuditResult struct {
	Dossier          string             `json:"dossier"`
	Delegataire      string             `json:"delegataire"`
	Status           string             `json:"status"`
	FieldResult      FieldResult        `json:"field_result"`
	PDFResult        rules.Verdict      `json:"pdf_result"`
	DocumentPresence []DocumentPresence `json:"document_presence"`
	Problems         []string           `json:"problems"`
	Summary          Summary            `json:"summary"`
	ExportURL        string             `json:"export_url,omitempty"`
}

// Audit is the stored lifecycle record of one audit request.
type Audit struct {
	ID          string       `json:"id"`
	IEN         string       `json:"ien"`
	ClientName  string       `json:"client_nom"`
	Delegataire string       `json:"delegataire"`
	Tenant      string       `json:"tenant"`
	Status      string       `json:"status"` // pending, processing, completed, failed
	Files       []string     `json:"files"`
	Result      *AuditResult `json:"result,omitempty"`
	ErrorMsg    string       `json:"error_msg,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Audit lifecycle statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
