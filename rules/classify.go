package rules

import "strings"

// Role is the functional category a document plays in a dossier.
type Role string

const (
	RoleQuote                 Role = "quote"
	RoleContributionFrame     Role = "contribution_frame"
	RoleInvoice               Role = "invoice"
	RoleDeliveryNote          Role = "delivery_note"
	RoleHonorStatement        Role = "honor_statement"
	RoleCompletionCertificate Role = "completion_certificate"
)

// File is one uploaded document: filename plus the text the extraction
// collaborator produced for it (possibly empty for unreadable scans).
type File struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Bundle is the set of extracted documents in upload order. Order matters:
// when several filenames satisfy a role's keywords, the first one wins.
type Bundle []File

// Document is a classified file with its normalized text precomputed.
type Document struct {
	Role Role
	Name string
	Text string
	Norm string
}

// roleKeywords lists, per role, the ordered keyword-set alternatives tried
// against lower-cased filenames. A filename matches a set when it contains
// every keyword of the set. AH and AFT carry a short-code set first and a
// spelled-out fallback, matching how installers actually name their scans.
var roleKeywords = map[Role][][]string{
	RoleQuote:                 {{"devis"}},
	RoleContributionFrame:     {{"cadre"}},
	RoleInvoice:               {{"facture"}},
	RoleDeliveryNote:          {{"bon", "livraison"}},
	RoleHonorStatement:        {{"ah"}, {"attestation", "honneur"}},
	RoleCompletionCertificate: {{"aft"}, {"fin", "travaux"}},
}

// Classify binds each role to the first file of the bundle whose name
// contains all keywords of one of the role's alternatives. A role can stay
// unbound, and a single file can legitimately serve several roles.
func Classify(bundle Bundle) map[Role]*Document {
	docs := make(map[Role]*Document, len(roleKeywords))
	for role, alternatives := range roleKeywords {
		for _, keywords := range alternatives {
			if doc := findByName(bundle, role, keywords); doc != nil {
				docs[role] = doc
				break
			}
		}
	}
	return docs
}

func findByName(bundle Bundle, role Role, keywords []string) *Document {
	for _, f := range bundle {
		name := strings.ToLower(f.Name)
		if containsAll(name, keywords) {
			return &Document{
				Role: role,
				Name: f.Name,
				Text: f.Text,
				Norm: Normalize(f.Text),
			}
		}
	}
	return nil
}

func containsAll(s string, keywords []string) bool {
	for _, k := range keywords {
		if !strings.Contains(s, k) {
			return false
		}
	}
	return true
}
