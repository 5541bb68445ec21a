package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Fixed phrases the HOMELIOR paperwork must carry. Matching happens on
// normalized text, so the literals are accent-free and lower-case.
const (
	lightingLabelA    = "type d eclairage"
	lightingLabelB    = "type d'eclairage"
	lightingAmbiance  = "eclairage ambiance"
	lightingPrivate   = "prive"
	lineItemPhrase    = "mise en place de luminaires neufs"
	subsidyPhrase     = "une prime d un montant de"
	honorPhraseSpaced = "attestation sur l honneur"
	honorPhraseQuoted = "attestation sur l'honneur"
)

var (
	quoteHeaderRe = regexp.MustCompile(`devis\s+2024[- ]?\d{4,}`)
	balanceDueRe  = regexp.MustCompile(`reste a payer\s*0\.0{2}`)
	signedOnRe    = regexp.MustCompile(`\ble\s*[:\-]?\s*(\d{2}/\d{2}/\d{4})`)
)

// checkContext is the read-only state shared by every role check: the full
// classification (for cross-document phrase lookups), the resolved facts,
// the CRM case fields and the rule thresholds.
type checkContext struct {
	docs   map[Role]*Document
	facts  Facts
	fields map[string]string
	cfg    Config
}

// checkFunc inspects one classified document and reports zero or more
// problems. Checks never abort the evaluation and never return errors:
// anything that cannot be verified becomes a problem string.
type checkFunc func(doc *Document, ctx *checkContext) []string

// ---------------------------------------------------------------------------
// DEVIS (quote)
// ---------------------------------------------------------------------------

func checkQuoteHeader(doc *Document, _ *checkContext) []string {
	if !quoteHeaderRe.MatchString(doc.Norm) {
		return []string{`DEVIS: header of the form "DEVIS 2024-xxxx" was not clearly found.`}
	}
	return nil
}

// The lighting classification may appear on the quote, the invoice or the
// honor statement: OCR regularly drops it from one of the three.
func checkLightingClass(doc *Document, ctx *checkContext) []string {
	targets := []string{doc.Norm}
	if invoice := ctx.docs[RoleInvoice]; invoice != nil {
		targets = append(targets, invoice.Norm)
	}
	if ah := ctx.docs[RoleHonorStatement]; ah != nil {
		targets = append(targets, ah.Norm)
	}

	for _, text := range targets {
		hasLabel := strings.Contains(text, lightingLabelA) || strings.Contains(text, lightingLabelB)
		if hasLabel && strings.Contains(text, lightingAmbiance) && strings.Contains(text, lightingPrivate) {
			return nil
		}
	}
	return []string{`DEVIS: lighting type "Eclairage ambiance ou prive" was not clearly found in the documents (devis / facture / AH).`}
}

func checkUnitPrice(doc *Document, ctx *checkContext) []string {
	if !strings.Contains(doc.Norm, lineItemPhrase) {
		return nil
	}

	raw, found := FindAmountNear(doc.Norm, lineItemPhrase)
	if !found {
		return []string{fmt.Sprintf("DEVIS: no clear unit price found for '%s'.", lineItemPhrase)}
	}

	price, err := ParseAmount(raw)
	if err != nil {
		return []string{fmt.Sprintf("DEVIS: unit price for '%s' is not interpretable.", lineItemPhrase)}
	}

	if price.Cmp(ctx.cfg.UnitPriceMin) < 0 || price.Cmp(ctx.cfg.UnitPriceMax) > 0 {
		return []string{fmt.Sprintf(
			"DEVIS: unit price for '%s' expected between %s and %s, found %s.",
			lineItemPhrase, ctx.cfg.UnitPriceMin, ctx.cfg.UnitPriceMax, raw,
		)}
	}
	return nil
}

func checkQuoteDateWindow(_ *Document, ctx *checkContext) []string {
	window := fmt.Sprintf("%s and %s", FormatDate(ctx.cfg.QuoteDateFrom), FormatDate(ctx.cfg.QuoteDateTo))

	d := ctx.facts.QuoteDate
	if d == nil {
		return []string{fmt.Sprintf("DEVIS: unable to determine the quote date (expected between %s).", window)}
	}
	if d.Before(ctx.cfg.QuoteDateFrom) || d.After(ctx.cfg.QuoteDateTo) {
		return []string{fmt.Sprintf("DEVIS: quote date %s is not between %s.", FormatDate(*d), window)}
	}
	return nil
}

// checkBalanceDue verifies the "reste a payer 0,00" mention; shared by the
// quote and the invoice, which both must show a zero balance.
func checkBalanceDue(doc *Document, _ *checkContext) []string {
	if !balanceDueRe.MatchString(foldDecimals(doc.Norm)) {
		return []string{fmt.Sprintf(`%s: mention "Reste a payer 0,00" was not clearly found.`, roleLabels[doc.Role])}
	}
	return nil
}

// ---------------------------------------------------------------------------
// CADRE DE CONTRIBUTION (contribution frame)
// ---------------------------------------------------------------------------

func checkFrameSubsidyAmount(doc *Document, ctx *checkContext) []string {
	if !strings.Contains(doc.Norm, subsidyPhrase) {
		return []string{`CADRE: phrase "une prime d'un montant de ... euros" was not clearly found.`}
	}

	declared := strings.TrimSpace(ctx.fields[ctx.cfg.DeclaredAmountField])
	if declared == "" {
		// Nothing entered in the case file, nothing to compare against.
		return nil
	}

	declaredVal, err := ParseAmount(declared)
	if err != nil {
		return []string{fmt.Sprintf(`CADRE: declared subsidy amount "%s" is not interpretable as a number.`, declared)}
	}

	raw, found := FindAmountNear(doc.Norm, subsidyPhrase)
	if !found {
		return []string{"CADRE: the subsidy amount phrase is not clearly exploitable."}
	}

	frameVal, err := ParseAmount(raw)
	if err != nil {
		return []string{"CADRE: unable to interpret the subsidy amount on the contribution frame."}
	}

	if frameVal.Sub(declaredVal).Abs().Cmp(ctx.cfg.AmountTolerance) > 0 {
		return []string{fmt.Sprintf(
			"CADRE: subsidy amount (%s) does not match the declared amount (%s).", raw, declared,
		)}
	}
	return nil
}

func checkFrameProposalDate(doc *Document, ctx *checkContext) []string {
	raw, found := FindLabeledDateRaw(doc.Norm, proposalDateLabel)
	if !found {
		return []string{`CADRE: mention "Date de cette proposition" was not found.`}
	}
	d, ok := ParseDate(raw)
	if ok && ctx.facts.QuoteDate != nil && !d.Equal(*ctx.facts.QuoteDate) {
		return []string{`CADRE: "Date de cette proposition" is inconsistent with the quote date.`}
	}
	return nil
}

// ---------------------------------------------------------------------------
// BON DE LIVRAISON (delivery note)
// ---------------------------------------------------------------------------

func checkDeliveryDate(_ *Document, ctx *checkContext) []string {
	inv, bl := ctx.facts.InvoiceDate, ctx.facts.DeliveryDate
	if inv == nil || bl == nil || inv.Equal(*bl) {
		return nil
	}
	return []string{fmt.Sprintf(
		"BON DE LIVRAISON: delivery note date (%s) differs from the invoice date (%s).",
		FormatDate(*bl), FormatDate(*inv),
	)}
}

// ---------------------------------------------------------------------------
// AH (honor statement)
// ---------------------------------------------------------------------------

func checkHonorPhrase(doc *Document, _ *checkContext) []string {
	if strings.Contains(doc.Norm, honorPhraseSpaced) || strings.Contains(doc.Norm, honorPhraseQuoted) {
		return nil
	}
	return []string{`AH: document present but the mention "attestation sur l'honneur" is not clearly readable (OCR) - to verify manually.`}
}

// ---------------------------------------------------------------------------
// AFT (completion certificate)
// ---------------------------------------------------------------------------

// The certificate is dated "Le : dd/mm/yyyy" at the bottom; that date must
// match both the invoice and the delivery note when those dates resolved.
// Each mismatch is its own problem.
func checkCompletionDate(doc *Document, ctx *checkContext) []string {
	m := signedOnRe.FindStringSubmatch(doc.Norm)
	if m == nil {
		return []string{`AFT: no date of the form "Le : dd/mm/yyyy" was clearly found on the completion certificate.`}
	}

	d, ok := ParseDate(m[1])
	if !ok {
		return nil
	}

	var problems []string
	if inv := ctx.facts.InvoiceDate; inv != nil && !d.Equal(*inv) {
		problems = append(problems, fmt.Sprintf(
			`AFT: date "Le %s" differs from the invoice date (%s).`, m[1], FormatDate(*inv),
		))
	}
	if bl := ctx.facts.DeliveryDate; bl != nil && !d.Equal(*bl) {
		problems = append(problems, fmt.Sprintf(
			`AFT: date "Le %s" differs from the delivery note date (%s).`, m[1], FormatDate(*bl),
		))
	}
	return problems
}
