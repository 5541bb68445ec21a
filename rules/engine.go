// Package rules implements the HOMELIOR document rule engine: it classifies
// the uploaded PDFs into functional roles by filename, extracts dates and
// amounts from their OCR text with tolerant matching, and cross-checks the
// documents against each other and against the CRM case fields.
//
// The engine is a pure function of its inputs. Data-quality issues never
// surface as errors: everything the paperwork fails to prove becomes one
// human-readable problem string in the verdict.
package rules

import (
	"time"

	"github.com/shopspring/decimal"
)

// Verdict statuses. The shape {status, problems} is a contract shared with
// the AI checker used for other delegates; keep it stable.
const (
	StatusCompliant    = "compliant"
	StatusNonCompliant = "non_compliant"
)

// Verdict is the aggregate outcome of one evaluation: non-compliant exactly
// when at least one problem was reported.
type Verdict struct {
	Status   string   `json:"status"`
	Problems []string `json:"problems"`
}

// Config carries the rule thresholds that are versioned outside the code:
// the acceptance window for the quote date, the expected unit price range,
// the amount comparison tolerance and the case field holding the declared
// subsidy amount.
type Config struct {
	QuoteDateFrom       time.Time
	QuoteDateTo         time.Time
	UnitPriceMin        decimal.Decimal
	UnitPriceMax        decimal.Decimal
	AmountTolerance     decimal.Decimal
	DeclaredAmountField string
}

// DefaultConfig is the 2024 HOMELIOR campaign rule set.
func DefaultConfig() Config {
	return Config{
		QuoteDateFrom:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		QuoteDateTo:         time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
		UnitPriceMin:        decimal.NewFromFloat(42.0),
		UnitPriceMax:        decimal.NewFromFloat(43.0),
		AmountTolerance:     decimal.NewFromFloat(0.01),
		DeclaredAmountField: "Prime CEE",
	}
}

// roleLabels are the uppercase document labels used as problem prefixes,
// the same vocabulary the auditors use when reading the reports.
var roleLabels = map[Role]string{
	RoleQuote:                 "DEVIS",
	RoleContributionFrame:     "CADRE",
	RoleInvoice:               "FACTURE",
	RoleDeliveryNote:          "BON DE LIVRAISON",
	RoleHonorStatement:        "AH",
	RoleCompletionCertificate: "AFT",
}

// roleSpec describes one role as data: its missing-document problem and the
// ordered checks to run when the document is present. The six roles differ
// only in this data; a single loop interprets all of them.
type roleSpec struct {
	role    Role
	missing string
	checks  []checkFunc
}

var roleTable = []roleSpec{
	{
		role:    RoleQuote,
		missing: "DEVIS: no document whose filename contains 'devis' was found.",
		checks: []checkFunc{
			checkQuoteHeader,
			checkLightingClass,
			checkUnitPrice,
			checkQuoteDateWindow,
			checkBalanceDue,
		},
	},
	{
		role:    RoleContributionFrame,
		missing: "CADRE: no document whose filename contains 'cadre' was found.",
		checks: []checkFunc{
			checkFrameSubsidyAmount,
			checkFrameProposalDate,
		},
	},
	{
		role:    RoleInvoice,
		missing: "FACTURE: no document whose filename contains 'facture' was found.",
		checks: []checkFunc{
			checkBalanceDue,
		},
	},
	{
		role:    RoleDeliveryNote,
		missing: "BON DE LIVRAISON: no document whose filename contains 'bon de livraison' was found.",
		checks: []checkFunc{
			checkDeliveryDate,
		},
	},
	{
		role:    RoleHonorStatement,
		missing: "AH: no honor statement (AH) detected among the PDFs (to verify manually).",
		checks: []checkFunc{
			checkHonorPhrase,
		},
	},
	{
		role:    RoleCompletionCertificate,
		missing: "AFT: no completion certificate (AFT) detected among the PDFs (to verify manually).",
		checks: []checkFunc{
			checkCompletionDate,
		},
	},
}

// Engine evaluates HOMELIOR dossiers against a fixed rule configuration.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate runs the full rule set over the extracted text bundle and the CRM
// case fields. Roles are processed in a fixed order (quote, frame, invoice,
// delivery note, AH, AFT) so identical inputs always yield byte-identical
// verdicts. A missing role contributes exactly its absence problem; a
// present document runs all of its checks, no short-circuit.
func (e *Engine) Evaluate(bundle Bundle, fields map[string]string) Verdict {
	docs := Classify(bundle)

	ctx := &checkContext{
		docs:   docs,
		facts:  resolveFacts(docs),
		fields: fields,
		cfg:    e.cfg,
	}

	var problems []string
	for _, spec := range roleTable {
		doc := docs[spec.role]
		if doc == nil {
			problems = append(problems, spec.missing)
			continue
		}
		for _, check := range spec.checks {
			problems = append(problems, check(doc, ctx)...)
		}
	}

	status := StatusCompliant
	if len(problems) > 0 {
		status = StatusNonCompliant
	}
	return Verdict{Status: status, Problems: problems}
}
