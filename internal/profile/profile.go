package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/user/propdesk/configs"
)

var profileIDPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var defaultProfileFiles = []string{
	"maintenance.yaml",
	"billing.yaml",
	"complaint.yaml",
	"lease.yaml",
	"general.yaml",
}

type Registry struct {
	dir      string
	profiles map[string]*TriageProfile
	mu       sync.RWMutex
}

func NewRegistry(dir string) (*Registry, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("profiles dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profiles dir: %w", err)
	}
	if err := ensureDefaults(dir); err != nil {
		return nil, err
	}

	r := &Registry{
		dir:      dir,
		profiles: make(map[string]*TriageProfile),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// ByCategory returns the profile for a ticket category, or nil when none is
// configured.
func (r *Registry) ByCategory(category string) *TriageProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	category = strings.ToUpper(strings.TrimSpace(category))
	for _, p := range r.profiles {
		if p.Category == category {
			return cloneProfile(p)
		}
	}
	return nil
}

func (r *Registry) Get(id string) *TriageProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil
	}
	return cloneProfile(p)
}

func (r *Registry) List() []*TriageProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*TriageProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		result = append(result, cloneProfile(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

func (r *Registry) Reload() error {
	loaded, err := loadDir(r.dir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.profiles = loaded
	r.mu.Unlock()
	return nil
}

func ensureDefaults(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read profiles dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			return nil
		}
	}

	for _, file := range defaultProfileFiles {
		content, err := configs.ProfileDefaults.ReadFile(filepath.Join("profiles", file))
		if err != nil {
			return fmt.Errorf("read embedded default %q: %w", file, err)
		}
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write default %q: %w", path, err)
		}
	}

	return nil
}

func loadDir(dir string) (map[string]*TriageProfile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read profiles dir: %w", err)
	}

	loaded := make(map[string]*TriageProfile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profile %q: %w", path, err)
		}
		var p TriageProfile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse profile %q: %w", path, err)
		}
		if err := validate(&p); err != nil {
			return nil, fmt.Errorf("invalid profile %q: %w", path, err)
		}
		loaded[p.ID] = &p
	}
	return loaded, nil
}

func validate(p *TriageProfile) error {
	if p == nil {
		return errors.New("profile is required")
	}
	if !profileIDPattern.MatchString(p.ID) {
		return fmt.Errorf("invalid profile id %q", p.ID)
	}
	category := strings.ToUpper(strings.TrimSpace(p.Category))
	if category == "" {
		return errors.New("category is required")
	}
	p.Category = category
	return nil
}

func cloneProfile(p *TriageProfile) *TriageProfile {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Checklist = append([]string(nil), p.Checklist...)
	return &clone
}
