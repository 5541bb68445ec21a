package rules

import "time"

// Facts are the cross-document reference dates resolved once, before any
// role check runs. Checks read them, never write them.
type Facts struct {
	QuoteDate    *time.Time
	InvoiceDate  *time.Time
	DeliveryDate *time.Time
}

const (
	proposalDateLabel = "date de cette proposition"
	invoiceDateLabel  = "date de facture"
	quoteCrossRef     = "devis"
)

// resolveFacts builds the shared fact set from the classified documents.
//
// The quote date follows a fixed trust chain, first hit wins:
//  1. the labeled "date de cette proposition" on the contribution frame,
//  2. the "devis … dd/mm/yyyy" cross-reference on the invoice,
//  3. the first bare date on the contribution frame,
//  4. the first bare date on the invoice.
//
// Explicit labels beat cross-references beat unlabeled dates, and the frame
// document is trusted over the invoice.
func resolveFacts(docs map[Role]*Document) Facts {
	var facts Facts

	var bareCandidates []string

	if frame := docs[RoleContributionFrame]; frame != nil {
		if d, ok := FindLabeledDate(frame.Norm, proposalDateLabel); ok {
			facts.QuoteDate = &d
		}
		bareCandidates = append(bareCandidates, frame.Norm)
	}

	if invoice := docs[RoleInvoice]; invoice != nil {
		if facts.QuoteDate == nil {
			if d, ok := FindLabeledDate(invoice.Norm, quoteCrossRef); ok {
				facts.QuoteDate = &d
			}
		}
		bareCandidates = append(bareCandidates, invoice.Norm)

		if d, ok := FindLabeledDate(invoice.Norm, invoiceDateLabel); ok {
			facts.InvoiceDate = &d
		} else if d, ok := FindDate(invoice.Norm); ok {
			facts.InvoiceDate = &d
		}
	}

	if facts.QuoteDate == nil {
		for _, text := range bareCandidates {
			if d, ok := FindDate(text); ok {
				facts.QuoteDate = &d
				break
			}
		}
	}

	if bl := docs[RoleDeliveryNote]; bl != nil {
		if d, ok := FindDate(bl.Norm); ok {
			facts.DeliveryDate = &d
		}
	}

	return facts
}
