package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/client"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/workflow"
)

var (
	app       = kingpin.New("aistudio", "Multi-agent workflow orchestration CLI")
	serverURL = app.Flag("server", "Orchestrator base URL").Default("http://localhost:8000").Envar("AISTUDIO_SERVER").String()
	apiKey    = app.Flag("api-key", "API key for the orchestrator").Envar("AISTUDIO_API_KEY").String()

	// Workflow commands
	sdlcCmd          = app.Command("sdlc", "Create a workflow from the builtin SDLC preset")
	sdlcProject      = sdlcCmd.Arg("project", "Project name").Required().String()
	sdlcRequirements = sdlcCmd.Arg("requirements", "Project requirements").Required().String()
	sdlcWait         = sdlcCmd.Flag("wait", "Poll until the workflow reaches a terminal state").Bool()

	createCmd  = app.Command("create", "Create a workflow from a JSON definition")
	createFile = createCmd.Arg("file", "Definition file, or - for stdin").Required().String()
	createWait = createCmd.Flag("wait", "Poll until the workflow reaches a terminal state").Bool()

	getCmd = app.Command("get", "Show a workflow")
	getID  = getCmd.Arg("id", "Workflow ID").Required().String()

	resultsCmd = app.Command("results", "Show a workflow's task results")
	resultsID  = resultsCmd.Arg("id", "Workflow ID").Required().String()

	pauseCmd = app.Command("pause", "Pause a running workflow")
	pauseID  = pauseCmd.Arg("id", "Workflow ID").Required().String()

	resumeCmd = app.Command("resume", "Resume a paused workflow")
	resumeID  = resumeCmd.Arg("id", "Workflow ID").Required().String()

	listCmd = app.Command("list", "List workflows")

	presetsCmd = app.Command("presets", "List registered workflow presets")

	statusCmd = app.Command("status", "Show engine status")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*serverURL, *apiKey)

	var err error
	switch command {
	case sdlcCmd.FullCommand():
		err = handleSDLC(ctx, c)
	case createCmd.FullCommand():
		err = handleCreate(ctx, c)
	case getCmd.FullCommand():
		err = handleGet(ctx, c, *getID)
	case resultsCmd.FullCommand():
		err = handleResults(ctx, c, *resultsID)
	case pauseCmd.FullCommand():
		err = handlePause(ctx, c, *pauseID)
	case resumeCmd.FullCommand():
		err = handleResume(ctx, c, *resumeID)
	case listCmd.FullCommand():
		err = handleList(ctx, c)
	case presetsCmd.FullCommand():
		err = handlePresets(ctx, c)
	case statusCmd.FullCommand():
		err = handleStatus(ctx, c)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleSDLC(ctx context.Context, c *client.Client) error {
	wf, err := c.CreateSDLCWorkflow(ctx, *sdlcProject, *sdlcRequirements)
	if err != nil {
		return err
	}
	printWorkflow(wf)
	if *sdlcWait {
		return waitForCompletion(ctx, c, wf.ID)
	}
	return nil
}

func handleCreate(ctx context.Context, c *client.Client) error {
	var data []byte
	var err error
	if *createFile == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*createFile)
	}
	if err != nil {
		return fmt.Errorf("failed to read definition: %w", err)
	}

	var req workflow.CreateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to parse definition: %w", err)
	}

	wf, err := c.CreateWorkflow(ctx, &req)
	if err != nil {
		return err
	}
	printWorkflow(wf)
	if *createWait {
		return waitForCompletion(ctx, c, wf.ID)
	}
	return nil
}

func handleGet(ctx context.Context, c *client.Client, id string) error {
	wf, err := c.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	printWorkflow(wf)
	return nil
}

func handleResults(ctx context.Context, c *client.Client, id string) error {
	view, err := c.GetWorkflowResults(ctx, id)
	if err != nil {
		return err
	}
	printWorkflow(view.Workflow)

	if len(view.AgentResults) == 0 {
		fmt.Println("\nNo task results yet.")
		return nil
	}
	role := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	for _, res := range view.AgentResults {
		fmt.Println()
		role.Printf("■ %s", res.AgentRole)
		dim.Printf("  (confidence %.2f, %.2fs)\n", res.Confidence, res.ProcessingTime)
		fmt.Println(indent(res.Response, "  "))
	}
	return nil
}

func handlePause(ctx context.Context, c *client.Client, id string) error {
	if err := c.PauseWorkflow(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Workflow %s %s\n", id, statusColor(workflow.StatusPaused).Sprint("paused"))
	return nil
}

func handleResume(ctx context.Context, c *client.Client, id string) error {
	if err := c.ResumeWorkflow(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Workflow %s %s\n", id, statusColor(workflow.StatusInProgress).Sprint("resumed"))
	return nil
}

func handleList(ctx context.Context, c *client.Client) error {
	summaries, err := c.ListWorkflows(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No workflows.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tSTATUS\tPROGRESS\tSTARTED")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n",
			s.ID,
			s.ProjectName,
			statusColor(s.Status).Sprint(s.Status),
			s.Progress,
			s.StartedAt.Local().Format(time.DateTime),
		)
	}
	return w.Flush()
}

func handlePresets(ctx context.Context, c *client.Client) error {
	presets, err := c.ListPresets(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTASKS\tDESCRIPTION")
	for _, p := range presets {
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name, p.TaskCount, p.Description)
	}
	return w.Flush()
}

func handleStatus(ctx context.Context, c *client.Client) error {
	status, err := c.SystemStatus(ctx)
	if err != nil {
		return err
	}

	overall := color.New(color.FgGreen)
	if status.Status != "healthy" {
		overall = color.New(color.FgYellow)
	}
	fmt.Printf("%s: %s\n", status.Service, overall.Sprint(status.Status))
	fmt.Printf("active runners: %d\n", status.ActiveRunners)

	if len(status.Workflows) > 0 {
		fmt.Println("workflows:")
		for _, st := range []workflow.Status{
			workflow.StatusPending, workflow.StatusInProgress, workflow.StatusPaused,
			workflow.StatusCompleted, workflow.StatusFailed,
		} {
			if n := status.Workflows[st]; n > 0 {
				fmt.Printf("  %s: %d\n", statusColor(st).Sprint(st), n)
			}
		}
	}

	fmt.Print("executor: ")
	if status.Executor.Healthy {
		color.Green("healthy")
	} else {
		color.Red("unhealthy (%s)", status.Executor.Error)
	}
	if s := status.Executor.Stats; s != nil {
		fmt.Printf("  requests: %d, errors: %d, avg response: %.3fs", s.Requests, s.Errors, s.AvgResponseTime)
		if s.CircuitState != "" {
			fmt.Printf(", circuit: %s", s.CircuitState)
		}
		fmt.Println()
	}

	if len(status.Presets) > 0 {
		fmt.Printf("presets: %s\n", strings.Join(status.Presets, ", "))
	}
	return nil
}

// waitForCompletion polls the workflow until it reaches a terminal state,
// printing status and progress changes along the way.
func waitForCompletion(ctx context.Context, c *client.Client, id string) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastStatus workflow.Status
	var lastProgress float64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			wf, err := c.GetWorkflow(ctx, id)
			if err != nil {
				return err
			}
			if wf.Status != lastStatus || wf.Progress != lastProgress {
				fmt.Printf("%s  %.1f%%\n", statusColor(wf.Status).Sprint(wf.Status), wf.Progress)
				lastStatus, lastProgress = wf.Status, wf.Progress
			}
			if wf.Status.IsTerminal() {
				if wf.Status == workflow.StatusFailed {
					return fmt.Errorf("workflow failed: %s", wf.ErrorMessage)
				}
				return nil
			}
		}
	}
}

func printWorkflow(wf *workflow.Workflow) {
	bold := color.New(color.Bold)
	bold.Printf("%s", wf.ProjectName)
	fmt.Printf("  (%s)\n", wf.ID)
	if wf.Description != "" {
		fmt.Println(wf.Description)
	}
	fmt.Printf("status: %s  progress: %.1f%%  tasks: %d\n",
		statusColor(wf.Status).Sprint(wf.Status), wf.Progress, len(wf.Tasks))
	if wf.ErrorMessage != "" {
		color.Red("error: %s", wf.ErrorMessage)
	}
	fmt.Printf("started: %s", wf.StartedAt.Local().Format(time.DateTime))
	if wf.CompletedAt != nil {
		fmt.Printf("  completed: %s", wf.CompletedAt.Local().Format(time.DateTime))
	}
	fmt.Println()
}

func statusColor(s workflow.Status) *color.Color {
	switch s {
	case workflow.StatusCompleted:
		return color.New(color.FgGreen)
	case workflow.StatusFailed:
		return color.New(color.FgRed)
	case workflow.StatusInProgress:
		return color.New(color.FgCyan)
	case workflow.StatusPaused:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgWhite)
	}
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}
