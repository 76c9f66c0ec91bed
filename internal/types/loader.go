package types

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// taskDescriptor is the wire form of a task. Durations arrive as integer
// milliseconds; unknown fields are kept in Extra so round-trips preserve
// them even though the engine ignores them.
type taskDescriptor struct {
	ID                  string             `json:"id" yaml:"id"`
	Title               string             `json:"title" yaml:"title"`
	Description         string             `json:"description" yaml:"description"`
	Category            Category           `json:"category" yaml:"category"`
	Priority            Priority           `json:"priority" yaml:"priority"`
	Status              Status             `json:"status" yaml:"status"`
	CreatedAt           time.Time          `json:"createdAt" yaml:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt" yaml:"updatedAt"`
	Deadline            *time.Time         `json:"deadline" yaml:"deadline"`
	EstimatedDurationMs int64              `json:"estimatedDuration" yaml:"estimatedDuration"`
	Capabilities        []string           `json:"capabilities" yaml:"capabilities"`
	Resources           map[string]float64 `json:"resourceRequirements" yaml:"resourceRequirements"`
	Dependencies        []DependencyRef    `json:"dependencies" yaml:"dependencies"`
	Tags                []string           `json:"tags" yaml:"tags"`
	RetryCount          int                `json:"retryCount" yaml:"retryCount"`
	LastError           string             `json:"lastError" yaml:"lastError"`
	History             []ExecutionRecord  `json:"executionHistory" yaml:"executionHistory"`
}

var descriptorFields = map[string]struct{}{
	"id": {}, "title": {}, "description": {}, "category": {}, "priority": {},
	"status": {}, "createdAt": {}, "updatedAt": {}, "deadline": {},
	"estimatedDuration": {}, "capabilities": {}, "resourceRequirements": {},
	"dependencies": {}, "tags": {}, "retryCount": {}, "lastError": {},
	"executionHistory": {},
}

var validate = validator.New()

// LoadError describes one descriptor that could not be accepted. The
// remaining descriptors in the file still load.
type LoadError struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Msg   string `json:"message"`
}

func (e LoadError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("task %q: %s", e.ID, e.Msg)
	}
	return fmt.Sprintf("task at index %d: %s", e.Index, e.Msg)
}

// LoadTasks reads task descriptors from a YAML or JSON file. Malformed
// descriptors are skipped and reported; the rest of the file loads.
func LoadTasks(path string) ([]*Task, []LoadError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read task file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseTasksJSON(data)
	default:
		return ParseTasksYAML(data)
	}
}

// LoadInto decodes a whole YAML or JSON file into dst. Used for auxiliary
// inputs (event logs) that share the task files' format conventions.
func LoadInto(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("decode yaml: %w", err)
		}
	}
	return nil
}

// ParseTasksYAML decodes a YAML document holding either a bare list of
// descriptors or a mapping with a top-level "tasks" key.
func ParseTasksYAML(data []byte) ([]*Task, []LoadError, error) {
	var raw []map[string]any

	var wrapper struct {
		Tasks []map[string]any `yaml:"tasks"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err == nil && len(wrapper.Tasks) > 0 {
		raw = wrapper.Tasks
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode task descriptors: %w", err)
	}

	return tasksFromRaw(raw, func(m map[string]any, dst *taskDescriptor) error {
		buf, err := yaml.Marshal(m)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(buf, dst)
	})
}

// ParseTasksJSON decodes a JSON array of descriptors, or an object with a
// top-level "tasks" array.
func ParseTasksJSON(data []byte) ([]*Task, []LoadError, error) {
	var raw []map[string]any

	var wrapper struct {
		Tasks []map[string]any `json:"tasks"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Tasks) > 0 {
		raw = wrapper.Tasks
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode task descriptors: %w", err)
	}

	return tasksFromRaw(raw, func(m map[string]any, dst *taskDescriptor) error {
		buf, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return json.Unmarshal(buf, dst)
	})
}

func tasksFromRaw(raw []map[string]any, decode func(map[string]any, *taskDescriptor) error) ([]*Task, []LoadError, error) {
	tasks := make([]*Task, 0, len(raw))
	var errs []LoadError

	for i, m := range raw {
		var desc taskDescriptor
		if err := decode(m, &desc); err != nil {
			errs = append(errs, LoadError{Index: i, Msg: err.Error()})
			continue
		}

		task, err := desc.toTask(m)
		if err != nil {
			errs = append(errs, LoadError{Index: i, ID: desc.ID, Msg: err.Error()})
			continue
		}
		tasks = append(tasks, task)
	}

	return tasks, errs, nil
}

// toTask converts the wire form into the internal model, applying
// defaults and validating required fields.
func (d *taskDescriptor) toTask(raw map[string]any) (*Task, error) {
	if d.EstimatedDurationMs < 0 {
		return nil, fmt.Errorf("estimatedDuration cannot be negative: %d", d.EstimatedDurationMs)
	}

	task := &Task{
		ID:                d.ID,
		Title:             d.Title,
		Description:       d.Description,
		Category:          d.Category,
		Priority:          d.Priority,
		Status:            d.Status,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		Deadline:          d.Deadline,
		EstimatedDuration: time.Duration(d.EstimatedDurationMs) * time.Millisecond,
		Capabilities:      d.Capabilities,
		Resources:         ResourceDemand(d.Resources),
		Dependencies:      d.Dependencies,
		Tags:              d.Tags,
		RetryCount:        d.RetryCount,
		LastError:         d.LastError,
		History:           d.History,
	}

	if task.Status == "" {
		task.Status = StatusPending
	}
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if !task.Priority.Valid() {
		return nil, fmt.Errorf("unknown priority %q", task.Priority)
	}
	if task.Category == "" {
		task.Category = CategoryOther
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	// A null dependency list is the same as an empty one.
	if task.Dependencies == nil {
		task.Dependencies = []DependencyRef{}
	}
	for i := range task.Dependencies {
		if task.Dependencies[i].Kind == "" {
			task.Dependencies[i].Kind = DependencyPrerequisite
		}
	}
	for name, units := range task.Resources {
		if units < 0 {
			return nil, fmt.Errorf("resource %q has negative demand %v", name, units)
		}
	}

	if err := validate.Struct(task); err != nil {
		return nil, fmt.Errorf("invalid descriptor: %w", err)
	}

	// Keep any fields the engine does not recognize.
	for k, v := range raw {
		if _, known := descriptorFields[k]; known {
			continue
		}
		if task.Extra == nil {
			task.Extra = make(map[string]any)
		}
		task.Extra[k] = v
	}

	return task, nil
}
