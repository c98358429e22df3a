package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules holds the threshold tables for all three roles. Defaults are compiled
// in; a YAML file can override any of them.
type Rules struct {
	Triage     TriageRules     `yaml:"triage"`
	Engagement EngagementRules `yaml:"engagement"`
	Optimizer  OptimizerRules  `yaml:"optimizer"`
}

// TriageRules drive lead classification and scoring.
type TriageRules struct {
	HighValueThreshold     float64            `yaml:"highValueThreshold"`
	QualifiedThreshold     float64            `yaml:"qualifiedThreshold"`
	AutoEscalateIndustries []string           `yaml:"autoEscalateIndustries"`
	PriorityRegions        []string           `yaml:"priorityRegions"`
	CompanySizeWeights     map[string]float64 `yaml:"companySizeWeights"`
	HighValueIndustries    []string           `yaml:"highValueIndustries"`
	DecisionMakerPersonas  []string           `yaml:"decisionMakerPersonas"`
	HighIntentSources      []string           `yaml:"highIntentSources"`
}

// EngagementRules hold the outreach templates, keyed by engagement type then
// channel.
type EngagementRules struct {
	Templates map[string]map[string]string `yaml:"templates"`
}

// OptimizerRules hold campaign performance thresholds.
type OptimizerRules struct {
	CTRThreshold            float64 `yaml:"ctrThreshold"`
	CPLThreshold            float64 `yaml:"cplThreshold"`
	ROASThreshold           float64 `yaml:"roasThreshold"`
	ConversionRateThreshold float64 `yaml:"conversionRateThreshold"`
	ScaleUpThreshold        float64 `yaml:"scaleUpThreshold"`
	ScaleDownThreshold      float64 `yaml:"scaleDownThreshold"`
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() Rules {
	return Rules{
		Triage: TriageRules{
			HighValueThreshold:     80,
			QualifiedThreshold:     60,
			AutoEscalateIndustries: []string{"Legal", "Healthcare"},
			PriorityRegions:        []string{"US", "EU"},
			CompanySizeWeights: map[string]float64{
				"5000+":     1.0,
				"1001-5000": 0.8,
				"201-1000":  0.6,
				"51-200":    0.4,
				"11-50":     0.2,
				"1-10":      0.1,
			},
			HighValueIndustries:   []string{"SaaS", "FinTech", "HealthTech"},
			DecisionMakerPersonas: []string{"Founder", "CMO", "CTO"},
			HighIntentSources:     []string{"Website", "Referral"},
		},
		Engagement: EngagementRules{
			Templates: map[string]map[string]string{
				"welcome": {
					"email":  "Welcome to Purple Merit! We're excited to help you optimize your marketing funnel.",
					"sms":    "Welcome to Purple Merit! Let's boost your marketing ROI.",
					"social": "Thanks for connecting! Ready to transform your marketing?",
				},
				"follow_up": {
					"email":  "Following up on our previous conversation about your marketing goals.",
					"sms":    "Quick follow-up on your marketing optimization needs.",
					"social": "Checking in on your marketing transformation journey.",
				},
				"demo_invite": {
					"email":  "Ready to see Purple Merit in action? Let's schedule a personalized demo.",
					"sms":    "Book your Purple Merit demo: [link]",
					"social": "See Purple Merit in action - book your demo today!",
				},
			},
		},
		Optimizer: OptimizerRules{
			CTRThreshold:            0.02,
			CPLThreshold:            50.0,
			ROASThreshold:           1.5,
			ConversionRateThreshold: 0.05,
			ScaleUpThreshold:        2.0,
			ScaleDownThreshold:      0.5,
		},
	}
}

// LoadRules reads rule overrides from a YAML file layered over the defaults.
// An empty path returns the defaults unchanged.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("parse rules file: %w", err)
	}
	return rules, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
