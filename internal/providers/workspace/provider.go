// Package workspace provides session file operations and session
// introspection.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/codeforge/execd/internal/config"
	"github.com/codeforge/execd/internal/logging"
	"github.com/codeforge/execd/internal/session"
	"github.com/codeforge/execd/internal/shared/utils"
	"github.com/codeforge/execd/internal/types"
)

// Provider implements the workspace service
type Provider struct {
	cfg      *config.Config
	sessions *session.Manager
	logger   *logging.Logger
}

// NewProvider creates a workspace provider
func NewProvider(cfg *config.Config, sessions *session.Manager, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Provider{
		cfg:      cfg,
		sessions: sessions,
		logger:   logger.Component("workspace"),
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "workspace",
		Name:        "Session Workspace",
		Description: "File persistence and introspection for execution sessions",
		Category:    types.CategoryWorkspace,
		Capabilities: []string{
			"files",
			"info",
		},
		Tools: []types.Tool{
			{
				ID:          "workspace.write",
				Name:        "Write File",
				Description: "Write content to a file in the session workspace",
				Parameters: []types.Parameter{
					{Name: "filename", Type: "string", Description: "Name of file to create", Required: true},
					{Name: "content", Type: "string", Description: "Content to write", Required: true},
					{Name: "session_id", Type: "string", Description: "Session ID", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "workspace.read",
				Name:        "Read File",
				Description: "Read a file from the session workspace",
				Parameters: []types.Parameter{
					{Name: "filename", Type: "string", Description: "Name of file to read", Required: true},
					{Name: "session_id", Type: "string", Description: "Session ID", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "workspace.list",
				Name:        "List Files",
				Description: "List files in the session workspace",
				Parameters: []types.Parameter{
					{Name: "session_id", Type: "string", Description: "Session ID", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "workspace.info",
				Name:        "Session Info",
				Description: "Session age, activity, files, and recent history",
				Parameters: []types.Parameter{
					{Name: "session_id", Type: "string", Description: "Session ID (creates one if unknown)", Required: false},
				},
				Returns: "object",
			},
		},
	}
}

// Execute runs a workspace operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, opCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "workspace.write":
		return p.writeFile(params)
	case "workspace.read":
		return p.readFile(params)
	case "workspace.list":
		return p.listFiles(params)
	case "workspace.info":
		return p.sessionInfo(params)
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) writeFile(params map[string]interface{}) (*types.Result, error) {
	if !p.cfg.Sessions.AllowFilePersistence {
		return failure("file persistence is disabled in configuration")
	}

	filename := utils.CoerceString(params["filename"])
	content := utils.CoerceString(params["content"])
	if strings.TrimSpace(filename) == "" {
		return failure("no filename provided")
	}
	if content == "" {
		return failure("no content provided")
	}

	sess, err := p.sessions.Resolve(stringParam(params, "session_id"))
	if err != nil {
		return nil, err
	}

	saved, err := sess.AddFile(filename, content)
	if err != nil {
		// Quota violations are caller mistakes, not environment faults.
		if errors.Is(err, types.ErrFileCapacity) || errors.Is(err, types.ErrFileTooLarge) {
			return failure(err.Error())
		}
		return nil, err
	}

	return successResult(map[string]interface{}{
		"filename":    saved,
		"size_bytes":  len(content),
		"session_id":  sess.ID,
		"total_files": len(sess.ListFiles()),
	})
}

func (p *Provider) readFile(params map[string]interface{}) (*types.Result, error) {
	filename := utils.CoerceString(params["filename"])
	if strings.TrimSpace(filename) == "" {
		return failure("no filename provided")
	}

	sess, err := p.sessions.Resolve(stringParam(params, "session_id"))
	if err != nil {
		return nil, err
	}

	content, ok, err := sess.GetFile(filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		available := sess.ListFiles()
		return failure(fmt.Sprintf("%q not found in session (available: %s)",
			filename, strings.Join(available, ", ")))
	}

	data := map[string]interface{}{
		"filename":   utils.SanitizeFilename(filename),
		"content":    content,
		"size_bytes": len(content),
		"session_id": sess.ID,
	}
	if path, ok := sess.FilePath(filename); ok {
		if mime, err := mimetype.DetectFile(path); err == nil {
			data["mime_type"] = mime.String()
		}
	}
	return successResult(data)
}

func (p *Provider) listFiles(params map[string]interface{}) (*types.Result, error) {
	sess, err := p.sessions.Resolve(stringParam(params, "session_id"))
	if err != nil {
		return nil, err
	}

	names := sess.ListFiles()
	sort.Strings(names)

	files := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		entry := map[string]interface{}{"name": name}
		if path, ok := sess.FilePath(name); ok {
			if info, err := os.Stat(path); err == nil {
				entry["size_bytes"] = info.Size()
				if mime, err := mimetype.DetectFile(path); err == nil {
					entry["mime_type"] = mime.String()
				}
			} else {
				entry["missing"] = true
			}
		}
		files = append(files, entry)
	}

	return successResult(map[string]interface{}{
		"files":      files,
		"count":      len(names),
		"session_id": sess.ID,
		"workspace":  sess.WorkspacePath(),
	})
}

func (p *Provider) sessionInfo(params map[string]interface{}) (*types.Result, error) {
	sess, err := p.sessions.Resolve(stringParam(params, "session_id"))
	if err != nil {
		return nil, err
	}

	history := sess.History()
	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	return successResult(map[string]interface{}{
		"session_id":      sess.ID,
		"created_at":      sess.CreatedAt.Format(time.RFC3339),
		"age_minutes":     time.Since(sess.CreatedAt).Minutes(),
		"idle_minutes":    time.Since(sess.LastAccessedAt()).Minutes(),
		"executions":      sess.ExecutionCount(),
		"files":           len(sess.ListFiles()),
		"workspace":       sess.WorkspacePath(),
		"recent_history":  recent,
		"history_entries": len(history),
	})
}

func stringParam(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return strings.TrimSpace(s)
}

func successResult(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}

func failure(message string) (*types.Result, error) {
	msg := message
	return &types.Result{Success: false, Error: &msg}, nil
}
