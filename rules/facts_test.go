package rules

import "testing"

func classifyTexts(t *testing.T, frame, invoice, delivery string) map[Role]*Document {
	t.Helper()
	var bundle Bundle
	if frame != "" {
		bundle = append(bundle, File{Name: "cadre.pdf", Text: frame})
	}
	if invoice != "" {
		bundle = append(bundle, File{Name: "facture.pdf", Text: invoice})
	}
	if delivery != "" {
		bundle = append(bundle, File{Name: "bon_livraison.pdf", Text: delivery})
	}
	return Classify(bundle)
}

func TestResolveFactsQuoteDateTrustChain(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		invoice  string
		expected string
	}{
		{
			name:     "labeled frame date wins over everything",
			frame:    "etabli le 10/01/2024. date de cette proposition : 15/01/2024",
			invoice:  "devis du 20/01/2024",
			expected: "15/01/2024",
		},
		{
			name:     "invoice cross-reference beats bare frame date",
			frame:    "document du 10/01/2024 sans label",
			invoice:  "conformement au devis du 20/01/2024",
			expected: "20/01/2024",
		},
		{
			name:     "bare frame date beats bare invoice date",
			frame:    "document du 10/01/2024 sans label",
			invoice:  "facture du 25/02/2024",
			expected: "10/01/2024",
		},
		{
			name:     "bare invoice date as last resort",
			invoice:  "facture du 25/02/2024",
			expected: "25/02/2024",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := resolveFacts(classifyTexts(t, tt.frame, tt.invoice, ""))
			if facts.QuoteDate == nil {
				t.Fatal("Expected quote date to resolve")
			}
			if FormatDate(*facts.QuoteDate) != tt.expected {
				t.Errorf("Quote date = %s, want %s", FormatDate(*facts.QuoteDate), tt.expected)
			}
		})
	}
}

func TestResolveFactsQuoteDateAbsent(t *testing.T) {
	facts := resolveFacts(classifyTexts(t, "aucune date ici", "rien non plus", ""))
	if facts.QuoteDate != nil {
		t.Errorf("Expected no quote date, got %s", FormatDate(*facts.QuoteDate))
	}
}

func TestResolveFactsInvoiceDate(t *testing.T) {
	// Labeled invoice date preferred over the first bare date
	docs := classifyTexts(t, "", "emise le 01/02/2024. date de facture : 20/02/2024", "")
	facts := resolveFacts(docs)
	if facts.InvoiceDate == nil || FormatDate(*facts.InvoiceDate) != "20/02/2024" {
		t.Error("Expected labeled invoice date 20/02/2024")
	}

	// Bare fallback
	docs = classifyTexts(t, "", "emise le 01/02/2024", "")
	facts = resolveFacts(docs)
	if facts.InvoiceDate == nil || FormatDate(*facts.InvoiceDate) != "01/02/2024" {
		t.Error("Expected bare invoice date 01/02/2024")
	}
}

func TestResolveFactsDeliveryDate(t *testing.T) {
	facts := resolveFacts(classifyTexts(t, "", "", "livre le 20/02/2024"))
	if facts.DeliveryDate == nil || FormatDate(*facts.DeliveryDate) != "20/02/2024" {
		t.Error("Expected delivery date 20/02/2024")
	}
}
