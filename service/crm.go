package service

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/RizleneBERRAG/PIXELCRM-IA/config"
)

// CRMService logs into PixelCRM with a browser-like session and reads the
// dossier sheet to prefill the audit form. The CRM has no API: the values
// come from the input fields of the search result page.
type CRMService struct {
	config     *config.CRMConfig
	httpClient *http.Client
}

var (
	ienRe       = regexp.MustCompile(`IEN-\d{4}-\d+`)
	forgeryRe   = regexp.MustCompile(`name="__RequestVerificationToken"[^>]*value="([^"]*)"`)
	loginFailed = "Se connecter"
)

// prefillInputs maps the CRM form input names to the prefill field keys.
var prefillInputs = map[string]string{
	"Dossier.Beneficiaire_RaisonSociale": "client_nom",
	"Dossier.Delegataire_Libelle":        "delegataire",
	"Dossier.Beneficiaire_Siret":         "siret",
	"Dossier.TypeOperationCEE_Libelle":   "type_operation",
	"Dossier.PrimeCEE":                   "prime_cee",
	"Dossier.NumeroPrimeCEE":             "numero_prime",
}

func NewCRMService(cfg *config.CRMConfig) (*CRMService, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &CRMService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}, nil
}

// CleanIEN strips the "N°" prefix and extracts the canonical IEN-yyyy-n
// form when present.
func CleanIEN(ien string) string {
	s := strings.TrimSpace(ien)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "n°") || strings.HasPrefix(lower, "nº") {
		s = strings.TrimSpace(s[len("n°"):])
	}
	if m := ienRe.FindString(s); m != "" {
		return m
	}
	return s
}

func (s *CRMService) loginURL() string {
	return s.config.AuthBaseURL + "/Account/Login"
}

func (s *CRMService) searchURL() string {
	return s.config.AppBaseURL + "/Dossiers/Calorifuge/Fiche/Recherche"
}

// login opens a CRM session: fetch the login page for the anti-forgery
// token, then post the credentials.
func (s *CRMService) login() error {
	if s.config.Company == "" || s.config.Username == "" || s.config.Password == "" {
		return fmt.Errorf("CRM credentials are not configured")
	}

	resp, err := s.httpClient.Get(s.loginURL())
	if err != nil {
		return fmt.Errorf("failed to fetch login page: %w", err)
	}
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read login page: %w", err)
	}

	token := ""
	if m := forgeryRe.FindSubmatch(page); m != nil {
		token = string(m[1])
	}

	form := url.Values{
		"Input.CustomerCode":         {s.config.Company},
		"Input.UserName":             {s.config.Username},
		"Input.Password":             {s.config.Password},
		"Input.RememberMe":           {"false"},
		"__RequestVerificationToken": {token},
	}

	loginResp, err := s.httpClient.PostForm(s.loginURL(), form)
	if err != nil {
		return fmt.Errorf("failed to post login: %w", err)
	}
	defer loginResp.Body.Close()

	if loginResp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("CRM access blocked (403), likely anti-bot protection")
	}
	if loginResp.StatusCode >= 400 {
		return fmt.Errorf("CRM login failed with status %d", loginResp.StatusCode)
	}

	body, err := io.ReadAll(loginResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read login response: %w", err)
	}
	// The login form being served back means the credentials were rejected
	if strings.Contains(string(body), loginFailed) && strings.Contains(string(body), "Mot de passe") {
		return fmt.Errorf("CRM login rejected, check credentials")
	}

	return nil
}

// GetDossier searches the CRM by IEN and returns the prefill fields, or nil
// when the dossier is unknown.
func (s *CRMService) GetDossier(ien string) (map[string]string, error) {
	ienClean := CleanIEN(ien)

	if err := s.login(); err != nil {
		return nil, err
	}

	u, err := url.Parse(s.searchURL())
	if err != nil {
		return nil, fmt.Errorf("invalid search URL: %w", err)
	}
	q := u.Query()
	q.Set("handler", "Search")
	q.Set("NumDossierInterne", ienClean)
	u.RawQuery = q.Encode()

	resp, err := s.httpClient.Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to search dossier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("CRM search failed with status %d", resp.StatusCode)
	}

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search result: %w", err)
	}
	html := string(page)

	data := map[string]string{"ien": ienClean}
	found := false
	for input, field := range prefillInputs {
		value := inputValue(html, input)
		data[field] = value
		if value != "" {
			found = true
		}
	}

	if !found {
		return nil, nil
	}
	return data, nil
}

// inputValue extracts the value attribute of the named input tag.
func inputValue(html, name string) string {
	re := regexp.MustCompile(`name="` + regexp.QuoteMeta(name) + `"[^>]*value="([^"]*)"`)
	if m := re.FindStringSubmatch(html); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
