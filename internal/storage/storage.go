package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/pfrederiksen/liquipedia-cs/internal/match"
)

const stateFileName = "state.json"

// State is the most recent round of sensor outputs.
type State struct {
	UpdatedAt time.Time            `json:"updated_at"`
	Teams     []match.SensorOutput `json:"teams"`
}

// Storage handles persistence of the latest state
type Storage struct {
	dataDir string
	now     func() time.Time
}

// New creates a new Storage instance, creating dataDir if needed.
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "getting home directory")
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}

	return &Storage{
		dataDir: dataDir,
		now:     time.Now,
	}, nil
}

// Path returns the state file path.
func (s *Storage) Path() string {
	return filepath.Join(s.dataDir, stateFileName)
}

// LoadState reads the state file. A missing file yields an empty State.
func (s *Storage) LoadState() (*State, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, errors.Wrap(err, "reading state")
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, "parsing state")
	}
	return &state, nil
}

// SaveResults replaces the state file with results. Readers see either the old
// or the new file, never a partial write.
func (s *Storage) SaveResults(results []match.TeamResult) error {
	state := State{
		UpdatedAt: s.now().UTC(),
		Teams:     make([]match.SensorOutput, 0, len(results)),
	}
	for _, r := range results {
		state.Teams = append(state.Teams, r.Output())
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}

	tmp, err := os.CreateTemp(s.dataDir, stateFileName+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing state")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing state")
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return errors.Wrap(err, "replacing state")
	}
	return nil
}
