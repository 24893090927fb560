package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/campus-gateway/internal/models"
)

// StaticProvider serves a catalog loaded from YAML seed files and applies
// the provider-side filters itself
type StaticProvider struct {
	mu           sync.RWMutex
	universities map[string]models.University
	order        []string
}

// NewStaticProvider creates an empty static provider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		universities: make(map[string]models.University),
	}
}

// Load reads a single seed file or every YAML file in a directory
func (p *StaticProvider) Load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat seed path: %w", err)
	}
	if info.IsDir() {
		return p.LoadFromDir(path)
	}
	return p.LoadFromFile(path)
}

// LoadFromDir loads all YAML seed files from a directory and its direct subdirectories
func (p *StaticProvider) LoadFromDir(dir string) error {
	slog.Info("loading catalog seed from directory", "dir", dir)

	patterns := []string{"*.yaml", "*.yml"}
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)

		subMatches, err := filepath.Glob(filepath.Join(dir, "*", pattern))
		if err != nil {
			continue
		}
		files = append(files, subMatches...)
	}
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		if err := p.LoadFromFile(file); err != nil {
			slog.Warn("failed to load catalog seed", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("catalog seed loaded", "files", loaded, "total_files", len(files), "universities", p.Len())
	return nil
}

// LoadFromFile loads universities from one YAML seed file
func (p *StaticProvider) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, entry := range sf.Universities {
		uni, err := entry.toModel()
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		p.Add(uni)
	}

	slog.Debug("catalog seed file loaded", "file", path, "count", len(sf.Universities))
	return nil
}

// Add programmatically adds or replaces a university
func (p *StaticProvider) Add(uni models.University) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := uni.ID.String()
	if _, exists := p.universities[key]; !exists {
		p.order = append(p.order, key)
	}
	p.universities[key] = uni
}

// Len returns the number of loaded universities
func (p *StaticProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.universities)
}

// ListUniversities returns the seed catalog filtered by tuition ceiling,
// country (case-insensitive substring) and degree level (case-insensitive match)
func (p *StaticProvider) ListUniversities(ctx context.Context, q models.CatalogQuery) ([]models.University, error) {
	maxFee, hasMaxFee := parseMaxFee(q.MaxFee)
	country := strings.ToLower(strings.TrimSpace(q.Country))
	degree := strings.TrimSpace(q.Degree)

	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]models.University, 0, len(p.order))
	for _, key := range p.order {
		uni := p.universities[key]
		if hasMaxFee && uni.Tuition.Float64() > maxFee {
			continue
		}
		if country != "" && !strings.Contains(strings.ToLower(uni.Country), country) {
			continue
		}
		if degree != "" && !strings.EqualFold(uni.DegreeLevel, degree) {
			continue
		}
		result = append(result, uni)
	}
	return result, nil
}

// HealthCheck reports an empty catalog as unhealthy
func (p *StaticProvider) HealthCheck(ctx context.Context) error {
	if p.Len() == 0 {
		return fmt.Errorf("static catalog is empty")
	}
	return nil
}

func parseMaxFee(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// --- YAML file structs ---

// seedFile represents the YAML structure of a catalog seed file
type seedFile struct {
	Universities []seedUniversity `yaml:"universities"`
}

type seedUniversity struct {
	ID          yaml.Node `yaml:"id"`
	Name        string    `yaml:"name"`
	Country     string    `yaml:"country"`
	DegreeLevel string    `yaml:"degree_level"`
	MinGPA      float64   `yaml:"min_gpa"`
	MinIELTS    float64   `yaml:"min_ielts"`
	Tuition     float64   `yaml:"tuition"`
	ImageURL    string    `yaml:"image_url"`
}

func (s seedUniversity) toModel() (models.University, error) {
	if s.Name == "" {
		return models.University{}, fmt.Errorf("university name is required")
	}
	if s.Tuition < 0 {
		return models.University{}, fmt.Errorf("tuition must be non-negative")
	}

	var id models.UniversityID
	switch {
	case s.ID.Kind == 0 || s.ID.Value == "":
		return models.University{}, fmt.Errorf("university id is required")
	case s.ID.Tag == "!!int":
		n, err := strconv.ParseInt(s.ID.Value, 10, 64)
		if err != nil {
			return models.University{}, fmt.Errorf("invalid id %q: %w", s.ID.Value, err)
		}
		id = models.NumericUniversityID(n)
	default:
		id = models.NewUniversityID(s.ID.Value)
	}

	return models.University{
		ID:          id,
		Name:        s.Name,
		Country:     s.Country,
		DegreeLevel: s.DegreeLevel,
		MinGPA:      models.Number(s.MinGPA),
		MinIELTS:    models.Number(s.MinIELTS),
		Tuition:     models.Number(s.Tuition),
		ImageURL:    s.ImageURL,
	}, nil
}
