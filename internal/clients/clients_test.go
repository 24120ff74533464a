package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trialmatch/internal/model"
)

// #region ctgov-tests

const studiesResponse = `{
  "studies": [
    {
      "protocolSection": {
        "identificationModule": {"nctId": "NCT001", "briefTitle": "PIK3CA inhibitor study"},
        "statusModule": {"overallStatus": "RECRUITING"},
        "descriptionModule": {"briefSummary": "Alpelisib for PIK3CA-mutant tumors."},
        "designModule": {"phases": ["PHASE2"]},
        "eligibilityModule": {"eligibilityCriteria": "PIK3CA mutation required."},
        "conditionsModule": {"conditions": ["Breast Cancer"]}
      }
    },
    {
      "protocolSection": {
        "identificationModule": {"briefTitle": "record without id"},
        "statusModule": {"overallStatus": "RECRUITING"}
      }
    }
  ]
}`

func TestCTGovSearchParsesStudies(t *testing.T) {
	var gotQuery, gotStatus string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query.cond")
		gotStatus = r.URL.Query().Get("filter.overallStatus")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(studiesResponse))
	}))
	defer srv.Close()

	c := NewCTGovClient(srv.URL, 25, 5*time.Second)
	items, err := c.Search(context.Background(), []string{"breast cancer", "PIK3CA"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "breast cancer OR PIK3CA" {
		t.Errorf("query.cond = %q", gotQuery)
	}
	if !strings.Contains(gotStatus, "RECRUITING") {
		t.Errorf("status filter = %q", gotStatus)
	}
	// The record without an NCT ID is dropped.
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	it := items[0]
	if it.ID != "NCT001" || it.Phase != "PHASE2" || it.Status != "RECRUITING" {
		t.Errorf("item = %+v", it)
	}
	if !strings.Contains(it.Description, "Breast Cancer") {
		t.Errorf("conditions not folded into description: %q", it.Description)
	}
	if it.Criteria == "" {
		t.Error("criteria empty")
	}
}

func TestCTGovSearchEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"studies": []}`))
	}))
	defer srv.Close()

	c := NewCTGovClient(srv.URL, 25, 5*time.Second)
	items, err := c.Search(context.Background(), []string{"nothing"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}

func TestCTGovSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewCTGovClient(srv.URL, 25, 5*time.Second)
	if _, err := c.Search(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error on 503")
	}
}

// #endregion ctgov-tests

// #region heuristic-tests

func TestHeuristicScorerOverlap(t *testing.T) {
	entity := &model.QueryEntity{
		Diagnoses:   "metastatic breast cancer",
		Biomarkers:  []string{"pik3ca e545k"},
		SearchTerms: []string{"breast cancer"},
	}
	s := NewHeuristicScorer()

	match := model.CandidateItem{
		ID:    "NCT001",
		Title: "PIK3CA E545K inhibitor in metastatic breast cancer",
	}
	miss := model.CandidateItem{ID: "NCT002", Title: "Cardiology device study"}

	hi, err := s.Score(context.Background(), entity, match, nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	lo, err := s.Score(context.Background(), entity, miss, nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if hi <= lo {
		t.Errorf("match %v should outscore miss %v", hi, lo)
	}
	if hi < 0 || hi > 100 {
		t.Errorf("score %v out of range", hi)
	}

	// Same inputs, same score.
	again, _ := s.Score(context.Background(), entity, match, nil)
	if again != hi {
		t.Errorf("score not deterministic: %v vs %v", again, hi)
	}
}

func TestHeuristicScorerEvidenceBonusCapped(t *testing.T) {
	entity := &model.QueryEntity{SearchTerms: []string{"breast cancer"}}
	item := model.CandidateItem{ID: "NCT001", Title: "breast cancer trial"}
	s := NewHeuristicScorer()

	plain, _ := s.Score(context.Background(), entity, item, nil)

	evidence := make([]model.Passage, 30)
	for i := range evidence {
		evidence[i] = model.Passage{Text: "breast cancer guideline"}
	}
	boosted, _ := s.Score(context.Background(), entity, item, evidence)
	if boosted < plain {
		t.Errorf("evidence lowered score: %v < %v", boosted, plain)
	}
	if boosted > plain+20 {
		t.Errorf("bonus exceeded cap: %v vs %v", boosted, plain)
	}
}

// #endregion heuristic-tests

// #region parse-tests

func TestParseScore(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"85", 85, false},
		{"Score: 72.5 out of 100", 72.5, false},
		{"150", 100, false},
		{"no number here", 0, true},
	} {
		got, err := parseScore(tc.in)
		if tc.wantErr != (err != nil) {
			t.Errorf("parseScore(%q) err = %v", tc.in, err)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("parseScore(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPlainTextExtractor(t *testing.T) {
	e := NewPlainTextExtractor()
	raw := []byte("Line one.  \nLine\x00 two\x01.\t\n\n  ")
	got, err := e.Extract(context.Background(), raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.ContainsRune(got, 0) {
		t.Error("control characters survived")
	}
	if !strings.HasPrefix(got, "Line one.") || !strings.Contains(got, "Line two.") {
		t.Errorf("got %q", got)
	}
}

// #endregion parse-tests
