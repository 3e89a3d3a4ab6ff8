package executor

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

const localConfidence = 0.9

type persona struct {
	intro string
	areas []string
}

var personas = map[string]persona{
	"product_manager": {
		intro: "Product management assessment",
		areas: []string{
			"Product Strategy & Vision",
			"Market Analysis & User Needs",
			"Feature Prioritization & Roadmap",
			"Success Metrics & KPIs",
			"Stakeholder Communication",
		},
	},
	"business_analyst": {
		intro: "Business analysis",
		areas: []string{
			"Business Requirements & Objectives",
			"Functional & Non-functional Requirements",
			"Process Mapping & Workflow Analysis",
			"Risk Assessment & Mitigation",
			"Implementation Recommendations",
		},
	},
	"software_developer": {
		intro: "Technical design",
		areas: []string{
			"Technical Architecture & Design",
			"Technology Stack Recommendations",
			"Implementation Approach & Best Practices",
			"Code Structure & Patterns",
			"Performance & Scalability Considerations",
		},
	},
	"qa_engineer": {
		intro: "Testing strategy",
		areas: []string{
			"Test Strategy & Planning",
			"Test Case Design & Automation",
			"Quality Metrics & Reporting",
			"Risk-based Testing Approach",
			"Continuous Testing Integration",
		},
	},
	"devops_engineer": {
		intro: "Infrastructure plan",
		areas: []string{
			"CI/CD Pipeline Design",
			"Infrastructure as Code",
			"Containerization & Orchestration",
			"Monitoring & Observability",
			"Security & Compliance",
		},
	},
}

// LocalExecutor generates deterministic role-flavored responses without a
// model backend. It exists for development and tests, and backs the
// standalone agent stub service.
type LocalExecutor struct{}

func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{}
}

func (e *LocalExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	p, ok := personas[req.AgentRole]
	if !ok {
		p = persona{
			intro: "General assessment",
			areas: []string{
				"Planning & Analysis",
				"Design",
				"Development",
				"Testing",
				"Deployment",
			},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s for: %s\n\n", p.intro, req.Task)
	for i, area := range p.areas {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, area)
	}
	if prior := priorRoles(req.Context); len(prior) > 0 {
		fmt.Fprintf(&b, "\nInformed by prior work from: %s\n", strings.Join(prior, ", "))
	}

	return &Result{
		Response:       b.String(),
		Confidence:     localConfidence,
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

func (e *LocalExecutor) Healthy(_ context.Context) error {
	return nil
}

// priorRoles extracts the sorted agent roles present in the
// previous_results context entry. The entry may be any string-keyed map
// depending on whether it was injected in process or decoded from JSON.
func priorRoles(taskContext map[string]any) []string {
	previous, ok := taskContext["previous_results"]
	if !ok || previous == nil {
		return nil
	}

	rv := reflect.ValueOf(previous)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil
	}

	var roles []string
	for _, key := range rv.MapKeys() {
		roles = append(roles, key.String())
	}
	sort.Strings(roles)
	return roles
}
