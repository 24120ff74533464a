package ragconf

import (
	"testing"

	"trialmatch/internal/model"
)

func TestAllVariantsValidate(t *testing.T) {
	for id, cfg := range Variants {
		if err := cfg.Validate(); err != nil {
			t.Errorf("variant %s: %v", id, err)
		}
		if cfg.ID != id {
			t.Errorf("variant %s: ID field is %s", id, cfg.ID)
		}
	}
}

func TestControlHasNoSources(t *testing.T) {
	c, err := ByID("control")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if c.Enabled() {
		t.Error("control config must have no knowledge sources enabled")
	}
	if len(c.Sources()) != 0 {
		t.Errorf("control sources = %v, want none", c.Sources())
	}
}

func TestValidateRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero retrieval k", func(c *Config) { c.RetrievalK = 0 }},
		{"overlap >= chunk size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"zero rerank cutoff", func(c *Config) { c.TopNRerank = 0 }},
		{"unknown fusion", func(c *Config) { c.Fusion = "vote" }},
		{"alpha out of range", func(c *Config) { c.FusionAlpha = 1.5 }},
		{"empty template", func(c *Config) { c.QueryTemplate = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := ByID("guidelines_fda")
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestExpandQuery(t *testing.T) {
	entity := &model.QueryEntity{
		Diagnoses:  "cervical squamous cell carcinoma stage IIIB",
		Biomarkers: []string{"PIK3CA E545K", "PD-L1 positive"},
		Demographics: map[string]string{
			"stage":       "IIIB",
			"cancer_type": "cervical cancer",
		},
	}

	c, _ := ByID("guidelines_fda")
	got := c.ExpandQuery(entity)
	want := "cervical squamous cell carcinoma stage IIIB PIK3CA E545K PD-L1 positive treatment guidelines"
	if got != want {
		t.Errorf("ExpandQuery:\n got %q\nwant %q", got, want)
	}

	simple, _ := ByID("simple_query")
	got = simple.ExpandQuery(entity)
	want = "cervical cancer PIK3CA E545K treatment"
	if got != want {
		t.Errorf("simple query:\n got %q\nwant %q", got, want)
	}
}

func TestExperimentConfigsResolve(t *testing.T) {
	for _, name := range ExperimentNames() {
		configs, err := ExperimentConfigs(name)
		if err != nil {
			t.Fatalf("experiment %s: %v", name, err)
		}
		if len(configs) == 0 {
			t.Errorf("experiment %s has no configs", name)
		}
		exp, _ := ExperimentByName(name)
		if exp.PrimaryMetric == "" || exp.SecondaryMetric == "" {
			t.Errorf("experiment %s missing metric declaration", name)
		}
	}

	if _, err := ExperimentByName("nonexistent"); err == nil {
		t.Error("expected error for unknown experiment")
	}
}
