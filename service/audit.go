package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/RizleneBERRAG/PIXELCRM-IA/config"
	"github.com/RizleneBERRAG/PIXELCRM-IA/model"
	"github.com/RizleneBERRAG/PIXELCRM-IA/rules"
	"github.com/shopspring/decimal"
)

// Checker inspects the extracted PDF texts of a dossier and renders a
// verdict. The HOMELIOR rule engine is one implementation; delegates with
// no codified rule set go through an externally provided fallback (the AI
// checker), injected at wiring time.
type Checker interface {
	Check(ctx context.Context, dossier *model.Dossier, bundle rules.Bundle) rules.Verdict
}

// docLabels maps rule-file document types to display labels.
var docLabels = map[string]string{
	"devis":                   "Devis",
	"facture":                 "Facture",
	"attestation_sur_honneur": "Attestation sur l'honneur",
	"attestation_fin_travaux": "Attestation de fin de travaux",
	"bon_livraison":           "Bon de livraison",
	"cadre_contribution":      "Cadre de contribution",
}

// AuditService runs the full dossier validation: CRM field checklist,
// structural PDF checks, document presence detection, the per-delegate PDF
// checker, and the final aggregation.
type AuditService struct {
	ruleStore *config.RuleStore
	fallback  Checker // nil when no AI checker is wired
}

func NewAuditService(ruleStore *config.RuleStore, fallback Checker) *AuditService {
	return &AuditService{
		ruleStore: ruleStore,
		fallback:  fallback,
	}
}

// engineConfig converts the yaml thresholds into the rule engine config,
// keeping the defaults for anything missing or unparsable.
func engineConfig(h config.HomeliorRules) rules.Config {
	cfg := rules.DefaultConfig()

	if d, ok := rules.ParseDate(h.QuoteDateFrom); ok {
		cfg.QuoteDateFrom = d
	}
	if d, ok := rules.ParseDate(h.QuoteDateTo); ok {
		cfg.QuoteDateTo = d
	}
	if h.UnitPriceMin > 0 {
		cfg.UnitPriceMin = decimal.NewFromFloat(h.UnitPriceMin)
	}
	if h.UnitPriceMax > 0 {
		cfg.UnitPriceMax = decimal.NewFromFloat(h.UnitPriceMax)
	}
	if tol, err := decimal.NewFromString(h.AmountTolerance); err == nil && tol.IsPositive() {
		cfg.AmountTolerance = tol
	}
	if h.DeclaredField != "" {
		cfg.DeclaredAmountField = h.DeclaredField
	}

	return cfg
}

// Validate audits one dossier against its delegate's rules and the
// extracted PDF texts. It always returns a complete result; data-quality
// issues become problems, never errors.
func (s *AuditService) Validate(ctx context.Context, dossier *model.Dossier, bundle rules.Bundle) *model.AuditResult {
	ruleSet := s.ruleStore.Get()
	delegRules := ruleSet.ForDelegate(dossier.Delegataire)

	fieldResult := checkFields(dossier, delegRules)
	techProblems := checkExploitableText(bundle)
	presence, missingDocs := detectDocuments(dossier.Files, delegRules.RequiredDocuments)
	pdfResult := s.checkPDFs(ctx, dossier, bundle, delegRules, ruleSet)

	status := rules.StatusCompliant
	var problems []string

	if fieldResult.Status != rules.StatusCompliant {
		status = rules.StatusNonCompliant
		problems = append(problems, fmt.Sprintf("Missing fields: %v", fieldResult.MissingFields))
		problems = append(problems, fmt.Sprintf("Missing documents (per CRM): %v", fieldResult.MissingDocuments))
	}

	if len(techProblems) > 0 {
		status = rules.StatusNonCompliant
		problems = append(problems, techProblems...)
	}

	if len(missingDocs) > 0 {
		status = rules.StatusNonCompliant
		problems = append(problems, missingDocs...)
	}

	if pdfResult.Status != rules.StatusCompliant {
		status = rules.StatusNonCompliant
		problems = append(problems, pdfResult.Problems...)
	}

	var reasons []string
	if status == rules.StatusCompliant {
		reasons = []string{"Dossier compliant: no major deviation detected."}
	} else if len(problems) > 0 {
		n := ruleSet.SummaryReasons
		if n > len(problems) {
			n = len(problems)
		}
		reasons = problems[:n]
	} else {
		reasons = []string{"Dossier non-compliant without identified detail."}
	}

	return &model.AuditResult{
		Dossier:          dossier.IEN,
		Delegataire:      dossier.Delegataire,
		Status:           status,
		FieldResult:      fieldResult,
		PDFResult:        pdfResult,
		DocumentPresence: presence,
		Problems:         problems,
		Summary:          model.Summary{MainReasons: reasons},
	}
}

// AppendProblem records a problem discovered after validation (upload-side
// issues such as ignored empty files) and rebuilds the status and summary
// from the full problem list.
func (s *AuditService) AppendProblem(result *model.AuditResult, problem string) {
	result.Status = rules.StatusNonCompliant
	result.Problems = append(result.Problems, problem)

	n := s.ruleStore.Get().SummaryReasons
	if n > len(result.Problems) {
		n = len(result.Problems)
	}
	result.Summary.MainReasons = result.Problems[:n]
}

// checkPDFs dispatches to the checker for this delegate. HOMELIOR runs the
// local rule engine; other delegates need the fallback checker.
func (s *AuditService) checkPDFs(ctx context.Context, dossier *model.Dossier, bundle rules.Bundle, delegRules config.DelegateRules, ruleSet *config.RuleSet) rules.Verdict {
	if len(bundle) == 0 {
		return rules.Verdict{
			Status:   rules.StatusNonCompliant,
			Problems: []string{"No PDF provided for this dossier."},
		}
	}

	useEngine := delegRules.Engine == "rules" ||
		(delegRules.Engine == "" && strings.EqualFold(dossier.Delegataire, "HOMELIOR"))

	if useEngine {
		engine := rules.NewEngine(engineConfig(ruleSet.Homelior))
		return engine.Evaluate(bundle, dossier.Fields)
	}

	if s.fallback != nil {
		return s.fallback.Check(ctx, dossier, bundle)
	}

	return rules.Verdict{
		Status: rules.StatusNonCompliant,
		Problems: []string{fmt.Sprintf(
			"No automated PDF checker available for delegate %q; manual review required.",
			dossier.Delegataire,
		)},
	}
}

// checkFields verifies the CRM checklist: required field values and the
// DOC::-prefixed indicators the CRM sets when a document was registered.
func checkFields(dossier *model.Dossier, delegRules config.DelegateRules) model.FieldResult {
	var missingFields []string
	for _, f := range delegRules.RequiredFields {
		if strings.TrimSpace(dossier.Fields[f]) == "" {
			missingFields = append(missingFields, f)
		}
	}

	var missingDocs []string
	for _, d := range delegRules.RequiredDocuments {
		if strings.TrimSpace(dossier.Fields["DOC::"+d]) == "" {
			missingDocs = append(missingDocs, d)
		}
	}

	status := rules.StatusCompliant
	if len(missingFields) > 0 || len(missingDocs) > 0 {
		status = rules.StatusNonCompliant
	}

	return model.FieldResult{
		Status:           status,
		MissingFields:    missingFields,
		MissingDocuments: missingDocs,
	}
}

// checkExploitableText flags files whose extraction produced nothing: the
// upload was non-empty, so this is most likely a scan the OCR gave up on.
func checkExploitableText(bundle rules.Bundle) []string {
	var problems []string
	for _, f := range bundle {
		if f.Text == "" {
			problems = append(problems, fmt.Sprintf(
				"PDF file '%s' contains no exploitable text (probably a scan/image). Some checks will have to be done manually.",
				f.Name,
			))
		}
	}
	return problems
}

// detectDocuments checks that each required document type can be recognized
// among the uploaded filenames. The heuristics are looser than the rule
// engine's classification on purpose: they accept the short codes the field
// teams actually use (fac_, fs_, bl, attest…).
func detectDocuments(fileNames []string, requiredDocs []string) ([]model.DocumentPresence, []string) {
	lower := make([]string, len(fileNames))
	for i, n := range fileNames {
		lower[i] = strings.ToLower(n)
	}

	firstMatch := func(accept func(string) bool) string {
		for _, n := range lower {
			if accept(n) {
				return n
			}
		}
		return ""
	}

	var presence []model.DocumentPresence
	var problems []string

	for _, docType := range requiredDocs {
		label := docLabels[docType]
		if label == "" {
			label = docType
		}

		var detected string
		switch docType {
		case "devis":
			detected = firstMatch(func(n string) bool { return strings.Contains(n, "devis") })
			if detected == "" {
				problems = append(problems, "Document 'devis' not detected among the uploaded PDFs (filename without 'devis').")
			}
		case "facture":
			detected = firstMatch(func(n string) bool {
				return strings.Contains(n, "facture") || strings.Contains(n, "fac_") || strings.Contains(n, "fs_")
			})
			if detected == "" {
				problems = append(problems, "Document 'facture' not detected among the uploaded PDFs.")
			}
		case "attestation_sur_honneur":
			detected = firstMatch(func(n string) bool {
				return strings.Contains(n, "attest") || strings.Contains(n, "aft")
			})
			if detected == "" {
				problems = append(problems, "Honor statement not detected among the uploaded PDFs (expected filename containing 'attest' or 'aft').")
			}
		case "attestation_fin_travaux":
			detected = firstMatch(func(n string) bool {
				return strings.Contains(n, "fin de travaux") || strings.Contains(n, "aft")
			})
			if detected == "" {
				problems = append(problems, "Completion certificate not detected among the uploaded PDFs.")
			}
		case "bon_livraison":
			detected = firstMatch(func(n string) bool {
				return strings.Contains(n, "bl") || strings.Contains(n, "livraison")
			})
			if detected == "" {
				problems = append(problems, "Delivery note not detected among the uploaded PDFs (filename containing 'bl' or 'livraison' expected).")
			}
		case "cadre_contribution":
			detected = firstMatch(func(n string) bool {
				return strings.Contains(n, "cadre") || strings.Contains(n, "contribution")
			})
			if detected == "" {
				problems = append(problems, "Contribution frame not detected among the uploaded PDFs.")
			}
		}

		presence = append(presence, model.DocumentPresence{
			Type:    label,
			Present: detected != "",
			Example: detected,
		})
	}

	return presence, problems
}
