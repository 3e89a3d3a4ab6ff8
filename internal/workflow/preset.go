package workflow

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/catalog"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/cerr"
)

// Preset is a reusable workflow template. String fields may reference
// {{project_name}} and {{requirements}}; Materialize substitutes both.
type Preset struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Metadata    map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Tasks       []PresetTask      `yaml:"tasks" json:"tasks"`
}

type PresetTask struct {
	AgentRole    string            `yaml:"agent_type" json:"agent_type"`
	Description  string            `yaml:"task" json:"task"`
	Context      map[string]string `yaml:"context,omitempty" json:"context,omitempty"`
	Dependencies []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Priority     int               `yaml:"priority" json:"priority"`
}

// PresetInfo is the list view of a registered preset.
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TaskCount   int    `json:"task_count"`
}

func (p *Preset) validate() error {
	if p.Name == "" {
		return cerr.NewError(cerr.InvalidArgument, "preset name cannot be empty", nil)
	}
	return validateGraph(p.taskList())
}

// taskList converts the template tasks without rendering placeholders;
// roles and dependencies are literal, which is all graph validation needs.
func (p *Preset) taskList() []Task {
	tasks := make([]Task, len(p.Tasks))
	for i, t := range p.Tasks {
		tasks[i] = Task{
			AgentRole:    t.AgentRole,
			Description:  t.Description,
			Dependencies: t.Dependencies,
			Priority:     t.Priority,
		}
	}
	return tasks
}

func (p *Preset) clone() *Preset {
	c := *p
	if p.Metadata != nil {
		c.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	c.Tasks = make([]PresetTask, len(p.Tasks))
	for i, t := range p.Tasks {
		ct := t
		if t.Context != nil {
			ct.Context = make(map[string]string, len(t.Context))
			for k, v := range t.Context {
				ct.Context[k] = v
			}
		}
		ct.Dependencies = append([]string(nil), t.Dependencies...)
		c.Tasks[i] = ct
	}
	return &c
}

// PresetRegistry holds workflow templates: the builtin ones plus any
// loaded from a catalog. Catalog documents override builtins by name.
type PresetRegistry struct {
	catalog catalog.Catalog
	logger  *slog.Logger

	mu      sync.RWMutex
	presets map[string]*Preset
}

// NewPresetRegistry seeds the builtin presets. cat may be nil when no
// external preset source is configured.
func NewPresetRegistry(cat catalog.Catalog, logger *slog.Logger) *PresetRegistry {
	return &PresetRegistry{
		catalog: cat,
		logger:  logger,
		presets: map[string]*Preset{
			sdlcPreset.Name: sdlcPreset,
		},
	}
}

// Load reads every document from the catalog and replaces the registry
// contents. Documents that fail to parse or validate are skipped with a
// warning so one bad file cannot take down the rest.
func (pr *PresetRegistry) Load(ctx context.Context) error {
	if pr.catalog == nil {
		return nil
	}

	names, err := pr.catalog.List(ctx)
	if err != nil {
		return err
	}

	loaded := map[string]*Preset{
		sdlcPreset.Name: sdlcPreset,
	}
	for _, name := range names {
		data, err := pr.catalog.Read(ctx, name)
		if err != nil {
			pr.logger.WarnContext(ctx, "failed to read preset",
				slog.String("name", name), slog.String("error", err.Error()))
			continue
		}

		var p Preset
		if err := yaml.Unmarshal(data, &p); err != nil {
			pr.logger.WarnContext(ctx, "failed to parse preset",
				slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if err := p.validate(); err != nil {
			pr.logger.WarnContext(ctx, "invalid preset",
				slog.String("name", p.Name), slog.String("error", err.Error()))
			continue
		}
		loaded[p.Name] = &p
	}

	pr.mu.Lock()
	pr.presets = loaded
	pr.mu.Unlock()

	pr.logger.InfoContext(ctx, "presets loaded", slog.Int("count", len(loaded)))
	return nil
}

// Watch reloads the registry whenever the catalog reports a change. It
// blocks until ctx is done; catalogs without change notification return
// immediately.
func (pr *PresetRegistry) Watch(ctx context.Context) error {
	watcher, ok := pr.catalog.(catalog.Watcher)
	if !ok {
		return nil
	}
	return watcher.Watch(ctx, func() {
		if err := pr.Load(ctx); err != nil {
			pr.logger.WarnContext(ctx, "preset reload failed", slog.String("error", err.Error()))
		}
	})
}

func (pr *PresetRegistry) Get(name string) (*Preset, error) {
	pr.mu.RLock()
	p, ok := pr.presets[name]
	pr.mu.RUnlock()
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "preset "+name+" not found", nil)
	}
	return p.clone(), nil
}

func (pr *PresetRegistry) List() []PresetInfo {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	infos := make([]PresetInfo, 0, len(pr.presets))
	for _, p := range pr.presets {
		infos = append(infos, PresetInfo{
			Name:        p.Name,
			Description: p.Description,
			TaskCount:   len(p.Tasks),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Materialize renders a preset into a concrete workflow definition for
// the given project.
func (pr *PresetRegistry) Materialize(name, projectName, requirements string) (*CreateRequest, error) {
	p, err := pr.Get(name)
	if err != nil {
		return nil, err
	}

	r := strings.NewReplacer(
		"{{project_name}}", projectName,
		"{{requirements}}", requirements,
	)

	tasks := make([]Task, len(p.Tasks))
	for i, t := range p.Tasks {
		var taskCtx map[string]any
		if len(t.Context) > 0 {
			taskCtx = make(map[string]any, len(t.Context))
			for k, v := range t.Context {
				taskCtx[k] = r.Replace(v)
			}
		}
		tasks[i] = Task{
			AgentRole:    t.AgentRole,
			Description:  r.Replace(t.Description),
			Context:      taskCtx,
			Dependencies: t.Dependencies,
			Priority:     t.Priority,
		}
	}

	var metadata map[string]any
	if len(p.Metadata) > 0 {
		metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			metadata[k] = r.Replace(v)
		}
	}

	return &CreateRequest{
		ProjectName: projectName,
		Description: r.Replace(p.Description),
		Tasks:       tasks,
		Metadata:    metadata,
	}, nil
}

// sdlcPreset is the builtin five-phase delivery pipeline: product
// specification, business analysis, architecture, test planning, and
// deployment design.
var sdlcPreset = &Preset{
	Name:        "sdlc",
	Description: "Complete SDLC workflow for: {{requirements}}",
	Metadata: map[string]string{
		"workflow_type": "sdlc",
		"requirements":  "{{requirements}}",
	},
	Tasks: []PresetTask{
		{
			AgentRole:   "product_manager",
			Description: "Analyze requirements and create product specifications for: {{requirements}}",
			Context: map[string]string{
				"project_name": "{{project_name}}",
				"requirements": "{{requirements}}",
			},
			Priority: 5,
		},
		{
			AgentRole:    "business_analyst",
			Description:  "Create detailed business analysis and functional requirements based on the product specifications",
			Context:      map[string]string{"project_name": "{{project_name}}"},
			Dependencies: []string{"product_manager"},
			Priority:     4,
		},
		{
			AgentRole:    "software_developer",
			Description:  "Design system architecture and create implementation plan based on business requirements",
			Context:      map[string]string{"project_name": "{{project_name}}"},
			Dependencies: []string{"business_analyst"},
			Priority:     3,
		},
		{
			AgentRole:    "qa_engineer",
			Description:  "Create comprehensive testing strategy and test plans for the system",
			Context:      map[string]string{"project_name": "{{project_name}}"},
			Dependencies: []string{"software_developer"},
			Priority:     2,
		},
		{
			AgentRole:    "devops_engineer",
			Description:  "Design deployment pipeline and infrastructure for the project",
			Context:      map[string]string{"project_name": "{{project_name}}"},
			Dependencies: []string{"software_developer"},
			Priority:     1,
		},
	},
}
