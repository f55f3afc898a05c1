// Package playbook loads an organization's call script (milestones and objections) from YAML.
package playbook

import (
	"context"
	"fmt"
	"os"
	"strings"

	"callos/internal/milestones"
	"callos/internal/objections"

	"gopkg.in/yaml.v3"
)

type Playbook struct {
	Organization string          `yaml:"organization"`
	Milestones   []MilestoneSpec `yaml:"milestones"`
	Objections   []ObjectionSpec `yaml:"objections"`
}

type MilestoneSpec struct {
	Number          int                  `yaml:"number"`
	OrderIndex      int                  `yaml:"order_index"`
	Title           string               `yaml:"title"`
	Objective       string               `yaml:"objective"`
	DurationMinutes int                  `yaml:"duration_minutes"`
	Questions       []milestones.ItemDef `yaml:"questions"`
	Confirmations   []milestones.ItemDef `yaml:"confirmations"`
}

type ObjectionSpec struct {
	Type            objections.Type       `yaml:"type"`
	Title           string                `yaml:"title"`
	Questions       []objections.Question `yaml:"questions"`
	AllowedOutcomes []objections.Outcome  `yaml:"allowed_outcomes"`
}

// Load reads a YAML playbook from path and returns it validated.
func Load(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("playbook: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Playbook.
func Parse(data []byte) (*Playbook, error) {
	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("playbook: parse: %w", err)
	}
	pb.applyDefaults()
	if err := pb.validate(); err != nil {
		return nil, err
	}
	return &pb, nil
}

func (p *Playbook) applyDefaults() {
	for i := range p.Milestones {
		m := &p.Milestones[i]
		if m.OrderIndex == 0 {
			m.OrderIndex = m.Number
		}
	}
	for i := range p.Objections {
		o := &p.Objections[i]
		if len(o.AllowedOutcomes) == 0 {
			o.AllowedOutcomes = objections.DefaultAllowedOutcomes(o.Type)
		}
		if o.Title == "" {
			o.Title = string(o.Type)
		}
	}
}

func (p *Playbook) validate() error {
	var errs []string
	numbers := map[int]bool{}
	for i, m := range p.Milestones {
		if m.Number < 1 {
			errs = append(errs, fmt.Sprintf("milestones[%d].number must be >= 1", i))
		} else if numbers[m.Number] {
			errs = append(errs, fmt.Sprintf("milestones[%d].number %d is duplicated", i, m.Number))
		}
		numbers[m.Number] = true
		if strings.TrimSpace(m.Title) == "" {
			errs = append(errs, fmt.Sprintf("milestones[%d].title is required", i))
		}
	}
	types := map[objections.Type]bool{}
	for i, o := range p.Objections {
		if !o.Type.Valid() {
			errs = append(errs, fmt.Sprintf("objections[%d].type %q is unknown", i, o.Type))
		} else if types[o.Type] {
			errs = append(errs, fmt.Sprintf("objections[%d].type %s is duplicated", i, o.Type))
		}
		types[o.Type] = true
		for _, out := range o.AllowedOutcomes {
			if !out.Valid() {
				errs = append(errs, fmt.Sprintf("objections[%d] has unknown outcome %q", i, out))
			}
		}
	}
	if len(p.Milestones) == 0 && len(p.Objections) == 0 {
		errs = append(errs, "playbook defines no milestones and no objections")
	}
	if len(errs) > 0 {
		return fmt.Errorf("playbook: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Seeder writes definitions. *milestones.Service and *objections.Service satisfy these.
type (
	MilestoneWriter interface {
		UpsertDefinitions(ctx context.Context, organizationID string, defs []milestones.DefinitionInput) ([]milestones.Milestone, error)
	}
	ObjectionWriter interface {
		UpsertDefinitions(ctx context.Context, organizationID string, defs []objections.DefinitionInput) ([]objections.Objection, error)
	}
)

type SeedResult struct {
	OrganizationID string
	Milestones     int
	Objections     int
}

// Seed upserts the playbook for organizationID, or for p.Organization when it is empty.
func Seed(ctx context.Context, p *Playbook, organizationID string, ms MilestoneWriter, ow ObjectionWriter) (SeedResult, error) {
	org := organizationID
	if org == "" {
		org = p.Organization
	}
	if org == "" {
		return SeedResult{}, fmt.Errorf("playbook: organization is required")
	}
	res := SeedResult{OrganizationID: org}

	if len(p.Milestones) > 0 {
		defs := make([]milestones.DefinitionInput, 0, len(p.Milestones))
		for _, m := range p.Milestones {
			defs = append(defs, milestones.DefinitionInput{
				Number:            m.Number,
				OrderIndex:        m.OrderIndex,
				Title:             m.Title,
				Objective:         m.Objective,
				DurationMinutes:   m.DurationMinutes,
				RequiredQuestions: m.Questions,
				Confirmations:     m.Confirmations,
			})
		}
		out, err := ms.UpsertDefinitions(ctx, org, defs)
		if err != nil {
			return SeedResult{}, fmt.Errorf("playbook: seed milestones: %w", err)
		}
		res.Milestones = len(out)
	}

	if len(p.Objections) > 0 {
		defs := make([]objections.DefinitionInput, 0, len(p.Objections))
		for _, o := range p.Objections {
			defs = append(defs, objections.DefinitionInput{
				Type:            o.Type,
				Title:           o.Title,
				Questions:       o.Questions,
				AllowedOutcomes: o.AllowedOutcomes,
			})
		}
		out, err := ow.UpsertDefinitions(ctx, org, defs)
		if err != nil {
			return SeedResult{}, fmt.Errorf("playbook: seed objections: %w", err)
		}
		res.Objections = len(out)
	}
	return res, nil
}
