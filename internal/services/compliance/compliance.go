// Package compliance decides, for one frame's detections, whether a person
// is present and which required equipment is missing.
package compliance

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
)

type ItemStatus string

const (
	StatusPresent       ItemStatus = "present"
	StatusMissing       ItemStatus = "missing"
	StatusNotApplicable ItemStatus = "not-applicable"
)

type Item struct {
	Label       string
	DisplayName string
	Status      ItemStatus
}

type Outcome struct {
	PersonPresent bool
	// Items follow the configured required-item order.
	Items   []Item
	Missing []string
	// Summary names the first missing item, empty otherwise.
	Summary      string
	AlertWorthy  bool
	Level        models.AlertLevel
	HasDetection bool
}

// Compliant reports whether a person was seen wearing every required item.
func (o Outcome) Compliant() bool {
	return o.PersonPresent && len(o.Missing) == 0
}

type Rules struct {
	PersonLabel   string
	RequiredItems []string
	DisplayNames  map[string]string
}

type Evaluator struct {
	personLabel string
	required    []string
	display     map[string]string
}

// New validates rules against the model vocabulary. An empty vocabulary
// skips validation.
func New(rules Rules, vocabulary []string) (*Evaluator, error) {
	const op = "compliance.New"

	if rules.PersonLabel == "" {
		return nil, fmt.Errorf("%s: person label is empty", op)
	}

	required := lo.Uniq(lo.Compact(rules.RequiredItems))
	if len(required) == 0 {
		return nil, fmt.Errorf("%s: no required items", op)
	}

	if len(vocabulary) > 0 {
		labels := append([]string{rules.PersonLabel}, required...)
		unknown := lo.Without(labels, vocabulary...)
		if len(unknown) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", op, errs.ErrUnknownLabel, strings.Join(unknown, ", "))
		}
	}

	display := make(map[string]string, len(required))
	for _, item := range required {
		display[item] = item
		if name, ok := rules.DisplayNames[item]; ok && name != "" {
			display[item] = name
		}
	}

	return &Evaluator{
		personLabel: rules.PersonLabel,
		required:    required,
		display:     display,
	}, nil
}

func (e *Evaluator) RequiredItems() []string {
	return append([]string(nil), e.required...)
}

func (e *Evaluator) DisplayName(label string) string {
	if name, ok := e.display[label]; ok {
		return name
	}
	return label
}

func (e *Evaluator) Evaluate(detections []models.Detection) Outcome {
	seen := lo.SliceToMap(detections, func(d models.Detection) (string, struct{}) {
		return d.Class, struct{}{}
	})

	_, person := seen[e.personLabel]

	out := Outcome{
		PersonPresent: person,
		Items:         make([]Item, 0, len(e.required)),
		HasDetection:  len(detections) > 0,
	}

	for _, label := range e.required {
		item := Item{Label: label, DisplayName: e.display[label], Status: StatusNotApplicable}
		if person {
			if _, ok := seen[label]; ok {
				item.Status = StatusPresent
			} else {
				item.Status = StatusMissing
				out.Missing = append(out.Missing, label)
			}
		}
		out.Items = append(out.Items, item)
	}

	if !person {
		return out
	}

	out.AlertWorthy = true
	if len(out.Missing) > 0 {
		out.Summary = "missing " + out.Missing[0]
		out.Level = models.LevelHigh
	} else {
		out.Level = models.LevelPositive
	}

	return out
}
