package language

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"polyjudge/internal/compiler/observer"
	appErr "polyjudge/pkg/errors"
	"polyjudge/pkg/utils/logger"
)

// DefaultDir is the language directory used when none is configured.
const DefaultDir = "langs"

// Registry indexes validated descriptors by id. It is never mutated after
// construction and is safe for concurrent readers.
type Registry struct {
	langs   map[uuid.UUID]Descriptor
	sources map[uuid.UUID]string
}

// NewRegistry builds a registry from descriptors defined in code.
// Every descriptor is validated and ids must be unique.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		langs:   make(map[uuid.UUID]Descriptor, len(descs)),
		sources: make(map[uuid.UUID]string, len(descs)),
	}
	for i, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, appErr.Wrapf(err, appErr.LanguageConfigInvalid, "language #%d is invalid", i)
		}
		if err := r.add(d, "<builtin>"); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(d Descriptor, source string) error {
	if prev, ok := r.sources[d.ID]; ok {
		return appErr.Newf(appErr.LanguageDuplicateID, "language %s is defined by both %s and %s", d.ID, prev, source).
			WithDetail("language_id", d.ID.String())
	}
	r.langs[d.ID] = d
	r.sources[d.ID] = source
	return nil
}

// Load reads every regular file in dir (non-recursively) as a language definition.
func Load(ctx context.Context, dir string) (*Registry, LoadReport, error) {
	return LoadWithObserver(ctx, dir, observer.NoopMetricsRecorder{})
}

// LoadWithObserver is Load with a metrics hook for per-file outcomes.
//
// Files that cannot be read or parsed are skipped, logged and listed in the
// report. A missing directory or a duplicated id fails the whole load.
func LoadWithObserver(ctx context.Context, dir string, metrics observer.MetricsRecorder) (*Registry, LoadReport, error) {
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	report := LoadReport{Dir: dir}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, report, appErr.Wrapf(err, appErr.LanguageDirMissing, "language directory %s is not accessible", dir)
	}
	if !info.IsDir() {
		return nil, report, appErr.Newf(appErr.LanguageDirMissing, "language path %s is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, report, appErr.Wrapf(err, appErr.LanguageDirMissing, "read language directory %s failed", dir)
	}

	r := &Registry{
		langs:   make(map[uuid.UUID]Descriptor, len(entries)),
		sources: make(map[uuid.UUID]string, len(entries)),
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		d, err := readDescriptor(path)
		if err != nil {
			report.Files = append(report.Files, FileResult{Path: path, Outcome: OutcomeSkipped, Err: err})
			metrics.ObserveLoad(ctx, observer.LoadOutcomeSkipped)
			logger.Warn(ctx, "skip language definition", zap.String("path", path), zap.Error(err))
			continue
		}
		if err := r.add(d, path); err != nil {
			logger.Error(ctx, "duplicate language id", zap.String("path", path), zap.Error(err))
			return nil, report, err
		}
		report.Files = append(report.Files, FileResult{Path: path, Outcome: OutcomeLoaded, LanguageID: d.ID})
		metrics.ObserveLoad(ctx, observer.LoadOutcomeLoaded)
		logger.Debug(ctx, "language loaded",
			zap.String("path", path),
			zap.String("language_id", d.ID.String()),
			zap.String("language", d.Label()),
		)
	}

	logger.Info(ctx, "language registry loaded",
		zap.String("dir", dir),
		zap.Int("loaded", report.Loaded()),
		zap.Int("skipped", len(report.Skipped())),
	)
	return r, report, nil
}

func readDescriptor(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, appErr.Wrapf(err, appErr.LanguageConfigInvalid, "read language definition failed")
	}
	return ParseDescriptor(data)
}

// Get returns the descriptor registered under id.
func (r *Registry) Get(id uuid.UUID) (Descriptor, bool) {
	d, ok := r.langs[id]
	return d, ok
}

// Lookup resolves a textual id, reporting LanguageNotSupported when it is
// malformed or unknown.
func (r *Registry) Lookup(ctx context.Context, id string) (Descriptor, error) {
	if strings.TrimSpace(id) == "" {
		return Descriptor{}, appErr.ValidationError("language_id", "required")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Descriptor{}, appErr.Wrapf(err, appErr.LanguageNotSupported, "language not supported")
	}
	d, ok := r.Get(parsed)
	if !ok {
		return Descriptor{}, appErr.New(appErr.LanguageNotSupported).WithMessage("language not supported").
			WithDetail("language_id", id)
	}
	return d, nil
}

// List returns all descriptors ordered by name, then version.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.langs))
	for _, d := range r.langs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Len returns the number of registered languages.
func (r *Registry) Len() int {
	return len(r.langs)
}
