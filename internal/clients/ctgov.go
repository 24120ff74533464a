package clients

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trialmatch/internal/model"
)

// #endregion

// #region config

// DefaultSearchBaseURL is the ClinicalTrials.gov v2 studies endpoint.
const DefaultSearchBaseURL = "https://clinicaltrials.gov/api/v2/studies"

// activeStatuses is the registry-side status filter: only trials a
// patient could plausibly enroll in.
const activeStatuses = "RECRUITING,NOT_YET_RECRUITING,ACTIVE_NOT_RECRUITING"

// #endregion config

// #region client

// CTGovClient searches ClinicalTrials.gov over its v2 JSON API.
type CTGovClient struct {
	baseURL  string
	pageSize int
	http     *http.Client
}

// NewCTGovClient returns a registry client. pageSize caps results per
// query (the API itself caps at 100).
func NewCTGovClient(baseURL string, pageSize int, timeout time.Duration) *CTGovClient {
	if baseURL == "" {
		baseURL = DefaultSearchBaseURL
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 25
	}
	return &CTGovClient{
		baseURL:  baseURL,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
	}
}

// #endregion client

// #region search

// Search queries the registry with the given condition terms OR-joined.
// An empty result page returns an empty slice and nil error.
func (c *CTGovClient) Search(ctx context.Context, terms []string) ([]model.CandidateItem, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query.cond", strings.Join(terms, " OR "))
	params.Set("filter.overallStatus", activeStatuses)
	params.Set("pageSize", fmt.Sprintf("%d", c.pageSize))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trial search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("trial search: status %d: %s", resp.StatusCode, string(body))
	}

	var page studiesPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]model.CandidateItem, 0, len(page.Studies))
	for _, st := range page.Studies {
		item, ok := parseStudy(st)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// #endregion search

// #region wire-types

type studiesPage struct {
	Studies []study `json:"studies"`
}

type study struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID      string `json:"nctId"`
			BriefTitle string `json:"briefTitle"`
		} `json:"identificationModule"`
		StatusModule struct {
			OverallStatus string `json:"overallStatus"`
		} `json:"statusModule"`
		DescriptionModule struct {
			BriefSummary string `json:"briefSummary"`
		} `json:"descriptionModule"`
		DesignModule struct {
			Phases []string `json:"phases"`
		} `json:"designModule"`
		EligibilityModule struct {
			EligibilityCriteria string `json:"eligibilityCriteria"`
		} `json:"eligibilityModule"`
		ConditionsModule struct {
			Conditions []string `json:"conditions"`
		} `json:"conditionsModule"`
	} `json:"protocolSection"`
}

// #endregion wire-types

// #region parse

// parseStudy maps a v2 study record into a CandidateItem. Records
// without an NCT ID are unusable and dropped.
func parseStudy(st study) (model.CandidateItem, bool) {
	ps := st.ProtocolSection
	if ps.IdentificationModule.NCTID == "" {
		return model.CandidateItem{}, false
	}

	phase := ""
	if len(ps.DesignModule.Phases) > 0 {
		phase = ps.DesignModule.Phases[0]
	}

	desc := ps.DescriptionModule.BriefSummary
	if len(ps.ConditionsModule.Conditions) > 0 {
		desc = desc + "\nConditions: " + strings.Join(ps.ConditionsModule.Conditions, ", ")
	}

	return model.CandidateItem{
		ID:          ps.IdentificationModule.NCTID,
		Title:       ps.IdentificationModule.BriefTitle,
		Description: desc,
		Phase:       phase,
		Status:      ps.StatusModule.OverallStatus,
		Criteria:    ps.EligibilityModule.EligibilityCriteria,
	}, true
}

// #endregion parse
