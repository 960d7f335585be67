// Package recognize implements the trainable face classifier: a local
// binary pattern histogram bank with nearest-neighbor matching. The
// model learns incrementally (new samples are appended, old ones are
// never discarded) and persists to two companion artifacts: the sample
// bank and the label->name map.
package recognize

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/imaging"
)

// ErrNoSamples is returned by Update when called with no training data.
var ErrNoSamples = errors.New("no training samples provided")

// bankVersion guards against loading artifacts produced by an
// incompatible descriptor geometry.
const bankVersion = 1

// TrainingSample pairs a cropped grayscale face region with the label
// id it belongs to. The label id is always the Identity Store user id.
type TrainingSample struct {
	Region *image.Gray
	Label  int64
}

// sampleBank is the serialized form of the trained state.
type sampleBank struct {
	Version int
	Grid    int
	Bins    int
	Labels  []int64
	Hists   [][]float64
}

// Model is the face classifier. Classify takes a read lock; Update,
// SetName and Save take the write lock, so a committing enrollment
// never races an in-flight classification.
type Model struct {
	mu      sync.RWMutex
	labels  []int64     // per-sample label ids
	hists   [][]float64 // per-sample descriptors, parallel to labels
	names   map[int64]string
	trained bool

	modelPath  string
	labelsPath string
}

// New creates an untrained model bound to the given artifact paths.
func New(cfg config.RecognizerConfig) *Model {
	return &Model{
		names:      make(map[int64]string),
		modelPath:  cfg.ModelPath,
		labelsPath: cfg.LabelsPath,
	}
}

// Trained reports whether the model has absorbed at least one sample.
func (m *Model) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trained
}

// Classify returns the best-matching label and its distance score for
// a cropped grayscale face region. Lower scores are closer matches;
// thresholding is the caller's job. ok is false while the model is
// untrained, in which case every input is a no-match.
func (m *Model) Classify(region *image.Gray) (label int64, score float64, ok bool) {
	desc := describe(region)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return 0, 0, false
	}

	best := -1
	bestDist := maxDistance + 1.0
	for i, hist := range m.hists {
		if d := chiSquare(desc, hist); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return m.labels[best], bestDist, true
}

// Update appends labeled samples to the model. Previously learned
// samples are preserved; both new labels and additional samples for
// known labels are accepted.
func (m *Model) Update(samples []TrainingSample) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}

	descs := make([][]float64, len(samples))
	for i, s := range samples {
		if s.Region == nil {
			return fmt.Errorf("sample %d has no region", i)
		}
		descs[i] = describe(s.Region)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range samples {
		m.labels = append(m.labels, s.Label)
		m.hists = append(m.hists, descs[i])
	}
	m.trained = true
	return nil
}

// SetName records the display name for a label id.
func (m *Model) SetName(label int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[label] = name
}

// Name resolves a label id to its display name.
func (m *Model) Name(label int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.names[label]
	return name, ok
}

// SampleCount returns the number of stored training samples.
func (m *Model) SampleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.labels)
}

// Save writes the sample bank and the label map to disk as a pair.
// Both artifacts are fully staged as temp files before either rename
// happens, so any failure up to the first rename leaves the previously
// saved pair intact. The bank is renamed last: if the label rename
// fails, the old bank still matches the old label map, and a stale
// extra name in the label map is harmless while a bank label without
// an identity is not.
func (m *Model) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bank := sampleBank{
		Version: bankVersion,
		Grid:    gridRegions,
		Bins:    histBins,
		Labels:  m.labels,
		Hists:   m.hists,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(bank); err != nil {
		return fmt.Errorf("encode sample bank: %w", err)
	}

	labelData, err := yaml.Marshal(m.names)
	if err != nil {
		return fmt.Errorf("encode label map: %w", err)
	}

	bankFile, err := renameio.TempFile("", m.modelPath)
	if err != nil {
		return fmt.Errorf("stage model artifact: %w", err)
	}
	defer bankFile.Cleanup()
	labelFile, err := renameio.TempFile("", m.labelsPath)
	if err != nil {
		return fmt.Errorf("stage label artifact: %w", err)
	}
	defer labelFile.Cleanup()

	if err := stagePending(bankFile, buf.Bytes()); err != nil {
		return fmt.Errorf("write model artifact: %w", err)
	}
	if err := stagePending(labelFile, labelData); err != nil {
		return fmt.Errorf("write label artifact: %w", err)
	}

	if err := labelFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit label artifact: %w", err)
	}
	if err := bankFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit model artifact: %w", err)
	}
	return nil
}

func stagePending(f *renameio.PendingFile, data []byte) error {
	if err := f.Chmod(0o644); err != nil {
		return err
	}
	_, err := f.Write(data)
	return err
}

// Load reads both artifacts and replaces the in-memory state. Loading
// is best-effort: any read or decode failure returns an error and
// leaves the model exactly as it was, so callers can log the condition
// and continue untrained.
func (m *Model) Load() error {
	modelData, err := os.ReadFile(m.modelPath)
	if err != nil {
		return fmt.Errorf("read model artifact: %w", err)
	}
	labelData, err := os.ReadFile(m.labelsPath)
	if err != nil {
		return fmt.Errorf("read label artifact: %w", err)
	}

	var bank sampleBank
	if err := gob.NewDecoder(bytes.NewReader(modelData)).Decode(&bank); err != nil {
		return fmt.Errorf("decode sample bank: %w", err)
	}
	if bank.Version != bankVersion || bank.Grid != gridRegions || bank.Bins != histBins {
		return fmt.Errorf("incompatible model artifact (version %d, grid %d, bins %d)",
			bank.Version, bank.Grid, bank.Bins)
	}
	if len(bank.Labels) != len(bank.Hists) {
		return fmt.Errorf("corrupt sample bank: %d labels, %d histograms",
			len(bank.Labels), len(bank.Hists))
	}

	names := make(map[int64]string)
	if err := yaml.Unmarshal(labelData, &names); err != nil {
		return fmt.Errorf("decode label map: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels = bank.Labels
	m.hists = bank.Hists
	m.names = names
	m.trained = len(bank.Labels) > 0
	return nil
}

// describe converts a face crop into its comparison descriptor.
func describe(region *image.Gray) []float64 {
	canonical := imaging.Resize(region, canonicalSize, canonicalSize)
	return histogram(lbpCodes(canonical), canonicalSize, canonicalSize)
}
