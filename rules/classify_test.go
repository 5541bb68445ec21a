package rules

import "testing"

func TestClassifyByKeyword(t *testing.T) {
	bundle := Bundle{
		{Name: "Devis_HOMELIOR.pdf", Text: "devis"},
		{Name: "cadre_contribution.pdf", Text: "cadre"},
		{Name: "FACTURE_0012.pdf", Text: "facture"},
		{Name: "bon_de_livraison.pdf", Text: "bl"},
		{Name: "AH_signee.pdf", Text: "ah"},
		{Name: "AFT_chantier.pdf", Text: "aft"},
	}

	docs := Classify(bundle)

	expected := map[Role]string{
		RoleQuote:                 "Devis_HOMELIOR.pdf",
		RoleContributionFrame:     "cadre_contribution.pdf",
		RoleInvoice:               "FACTURE_0012.pdf",
		RoleDeliveryNote:          "bon_de_livraison.pdf",
		RoleHonorStatement:        "AH_signee.pdf",
		RoleCompletionCertificate: "AFT_chantier.pdf",
	}

	for role, name := range expected {
		doc := docs[role]
		if doc == nil {
			t.Errorf("Expected role %s to be bound", role)
			continue
		}
		if doc.Name != name {
			t.Errorf("Role %s bound to %s, want %s", role, doc.Name, name)
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	bundle := Bundle{
		{Name: "devis_v1.pdf", Text: "first"},
		{Name: "devis_v2.pdf", Text: "second"},
	}

	docs := Classify(bundle)
	if docs[RoleQuote] == nil || docs[RoleQuote].Name != "devis_v1.pdf" {
		t.Errorf("Expected first matching file to win, got %+v", docs[RoleQuote])
	}
}

func TestClassifyFallbackKeywords(t *testing.T) {
	bundle := Bundle{
		{Name: "attestation_honneur.pdf", Text: ""},
		{Name: "fin_de_travaux.pdf", Text: ""},
	}

	docs := Classify(bundle)
	if docs[RoleHonorStatement] == nil || docs[RoleHonorStatement].Name != "attestation_honneur.pdf" {
		t.Error("Expected honor statement matched via spelled-out fallback")
	}
	if docs[RoleCompletionCertificate] == nil || docs[RoleCompletionCertificate].Name != "fin_de_travaux.pdf" {
		t.Error("Expected completion certificate matched via spelled-out fallback")
	}
}

// One file can legitimately serve several roles when its name satisfies
// several keyword sets.
func TestClassifySharedFile(t *testing.T) {
	bundle := Bundle{
		{Name: "attestation_honneur_aft.pdf", Text: "attestation sur l honneur"},
	}

	docs := Classify(bundle)
	ah := docs[RoleHonorStatement]
	aft := docs[RoleCompletionCertificate]
	if ah == nil || aft == nil {
		t.Fatal("Expected the same file to bind both AH and AFT roles")
	}
	if ah.Name != aft.Name {
		t.Errorf("Expected same file for both roles, got %s and %s", ah.Name, aft.Name)
	}
}

func TestClassifyUnboundRoles(t *testing.T) {
	docs := Classify(Bundle{{Name: "notes.pdf", Text: "rien"}})
	for _, role := range []Role{RoleQuote, RoleContributionFrame, RoleInvoice, RoleDeliveryNote, RoleHonorStatement, RoleCompletionCertificate} {
		if docs[role] != nil {
			t.Errorf("Expected role %s to stay unbound", role)
		}
	}
}

func TestClassifyNormalizesText(t *testing.T) {
	bundle := Bundle{{Name: "devis.pdf", Text: "DEVIS  Num\u00e9ro 2024-0001"}}
	doc := Classify(bundle)[RoleQuote]
	if doc == nil {
		t.Fatal("Expected quote to be bound")
	}
	if doc.Norm != "devis numero 2024-0001" {
		t.Errorf("Unexpected normalized text %q", doc.Norm)
	}
}

