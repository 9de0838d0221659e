package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// shellJob is one background command managed by the JobManager.
type shellJob struct {
	cmd     *exec.Cmd
	output  *lockedBuffer
	done    chan struct{}
	exitErr error
	started time.Time
}

// lockedBuffer lets the command goroutine and status checks share output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// JobManager runs shell commands in the background inside the workspace and
// tracks them by job id. It owns its own locking; the conversation loop
// only ever dispatches one tool call at a time, but jobs outlive the call
// that started them.
type JobManager struct {
	workspace string
	timeout   time.Duration

	mu   sync.Mutex
	jobs map[string]*shellJob
}

// NewJobManager creates a JobManager confined to workspace.
func NewJobManager(workspace string, timeoutSeconds int) *JobManager {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	return &JobManager{
		workspace: workspace,
		timeout:   time.Duration(timeoutSeconds) * time.Second,
		jobs:      map[string]*shellJob{},
	}
}

func (m *JobManager) start(command string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = m.timeout
	}

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = m.workspace
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	out := &lockedBuffer{}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start command: %w", err)
	}

	job := &shellJob{cmd: cmd, output: out, done: make(chan struct{}), started: time.Now()}
	id := uuid.NewString()

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	go func() {
		job.exitErr = cmd.Wait()
		close(job.done)
	}()
	go func() {
		select {
		case <-job.done:
		case <-time.After(timeout):
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
	}()

	return id, nil
}

func (m *JobManager) get(id string) *shellJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

// KillAll terminates every tracked job's process group. Called at shutdown.
func (m *JobManager) KillAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		select {
		case <-job.done:
		default:
			_ = syscall.Kill(-job.cmd.Process.Pid, syscall.SIGKILL)
		}
	}
}

// ---------------------------------------------------------------------------
// StartCommandTool
// ---------------------------------------------------------------------------

// StartCommandTool launches a shell command in the background.
type StartCommandTool struct {
	jobs *JobManager
}

func NewStartCommandTool(jobs *JobManager) *StartCommandTool { return &StartCommandTool{jobs: jobs} }

func (t *StartCommandTool) Name() string { return "start_shell_command" }
func (t *StartCommandTool) Description() string {
	return "Start a shell command in the background inside the workspace. Returns a job_id for polling."
}
func (t *StartCommandTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "The shell command to execute"},
			"timeout": {"type": "integer", "description": "Seconds before the command is killed"}
		},
		"required": ["command"]
	}`)
}

func (t *StartCommandTool) Execute(_ context.Context, params map[string]any) (any, error) {
	command, _ := params["command"].(string)
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}
	var timeout time.Duration
	if v, ok := numParam(params, "timeout"); ok {
		timeout = time.Duration(v) * time.Second
	}
	id, err := t.jobs.start(command, timeout)
	if err != nil {
		return nil, err
	}
	return map[string]any{"job_id": id, "status": "started"}, nil
}

// ---------------------------------------------------------------------------
// CheckCommandTool
// ---------------------------------------------------------------------------

// CheckCommandTool reports a background command's status and output so far.
type CheckCommandTool struct {
	jobs *JobManager
}

func NewCheckCommandTool(jobs *JobManager) *CheckCommandTool { return &CheckCommandTool{jobs: jobs} }

func (t *CheckCommandTool) Name() string { return "check_shell_command" }
func (t *CheckCommandTool) Description() string {
	return "Check the status of a background shell command, returning its output and exit state."
}
func (t *CheckCommandTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"job_id": {"type": "string", "description": "The job_id returned by start_shell_command"}
		},
		"required": ["job_id"]
	}`)
}

func (t *CheckCommandTool) Execute(_ context.Context, params map[string]any) (any, error) {
	id, _ := params["job_id"].(string)
	job := t.jobs.get(id)
	if job == nil {
		return nil, fmt.Errorf("unknown job_id: %s", id)
	}

	result := map[string]any{
		"job_id":          id,
		"output":          job.output.String(),
		"elapsed_seconds": int(time.Since(job.started).Seconds()),
	}
	select {
	case <-job.done:
		result["status"] = "finished"
		result["exit_code"] = job.cmd.ProcessState.ExitCode()
		if job.exitErr != nil {
			result["error"] = job.exitErr.Error()
		}
	default:
		result["status"] = "running"
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// KillCommandTool
// ---------------------------------------------------------------------------

// KillCommandTool terminates a background command's process group.
type KillCommandTool struct {
	jobs *JobManager
}

func NewKillCommandTool(jobs *JobManager) *KillCommandTool { return &KillCommandTool{jobs: jobs} }

func (t *KillCommandTool) Name() string { return "kill_shell_command" }
func (t *KillCommandTool) Description() string {
	return "Terminate a running background shell command."
}
func (t *KillCommandTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"job_id": {"type": "string", "description": "The job_id of the command to terminate"}
		},
		"required": ["job_id"]
	}`)
}

func (t *KillCommandTool) Execute(_ context.Context, params map[string]any) (any, error) {
	id, _ := params["job_id"].(string)
	job := t.jobs.get(id)
	if job == nil {
		return nil, fmt.Errorf("unknown job_id: %s", id)
	}

	select {
	case <-job.done:
		return map[string]any{"job_id": id, "status": "already_finished"}, nil
	default:
	}
	if err := syscall.Kill(-job.cmd.Process.Pid, syscall.SIGTERM); err != nil {
		return nil, fmt.Errorf("kill job %s: %w", id, err)
	}
	return map[string]any{"job_id": id, "status": "killed"}, nil
}
