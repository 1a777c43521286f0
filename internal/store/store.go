// Package store implements overmind's durable memory: one JSON file per
// collection (agents, wallets, decision log, evolution log, metrics) under a
// single data directory.
//
// Every write follows the same crash-safe path:
//
//	serialize -> write <collection>.json.tmp -> copy live file to <collection>.json.bak -> rename tmp over live
//
// so a reader never observes a partial file and the previous state survives
// any single torn write. On load, an unreadable or invalid live file falls
// back to the backup; if both are bad the collection starts empty and the
// event is logged, never silently swallowed.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"overmind/internal/types"
)

// Collection file names under the data directory.
const (
	agentsFile    = "agents.json"
	walletsFile   = "wallets.json"
	decisionsFile = "decisions.json"
	evolutionFile = "evolution.json"
	metricsFile   = "metrics.json"

	tmpSuffix    = ".tmp"
	backupSuffix = ".bak"

	schemaVersion = 1
)

// PersistenceError reports a store I/O or corruption failure. Write-path
// errors of this type leave the previous live file intact.
type PersistenceError struct {
	Op         string // "load", "save", "append", "update"
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// On-disk envelope shapes. The version field gates schema validation on load.

type agentsDoc struct {
	Version int                    `json:"version"`
	Agents  map[string]types.Agent `json:"agents"`
}

type walletsDoc struct {
	Version int                           `json:"version"`
	Wallets map[string]types.WalletRecord `json:"wallets"`
}

type decisionsDoc struct {
	Version int                    `json:"version"`
	Records []types.DecisionRecord `json:"records"` // oldest first on disk
}

type evolutionDoc struct {
	Version int                    `json:"version"`
	Events  []types.EvolutionEvent `json:"events"` // oldest first on disk
}

type metricsDoc struct {
	Version int                 `json:"version"`
	Metrics types.SystemMetrics `json:"metrics"`
}

// Store is the durable memory store. All collections are cached in memory and
// written through to disk on every mutation; a fresh Store built on the same
// directory sees exactly what the previous one persisted.
type Store struct {
	mu     sync.RWMutex
	dir    string
	logger *zap.Logger

	agents    map[string]types.Agent
	wallets   map[string]types.WalletRecord
	decisions []types.DecisionRecord
	evolution []types.EvolutionEvent
	metrics   types.SystemMetrics
}

// New opens (or initializes) the store rooted at dir. Corrupt collections are
// recovered from backups where possible; recovery is logged, not fatal.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &PersistenceError{Op: "load", Collection: "datadir", Err: err}
	}

	s := &Store{
		dir:     dir,
		logger:  logger,
		agents:  make(map[string]types.Agent),
		wallets: make(map[string]types.WalletRecord),
	}

	s.loadAgents()
	s.loadWallets()
	s.loadDecisions()
	s.loadEvolution()
	s.loadMetrics()

	return s, nil
}

// =============================================================================
// ATOMIC FILE I/O
// =============================================================================

// writeCollection performs the serialize -> tmp -> backup -> rename sequence
// for one collection document. Callers hold s.mu.
func (s *Store) writeCollection(name string, doc interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Collection: name, Err: err}
	}

	live := filepath.Join(s.dir, name)
	tmp := live + tmpSuffix

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &PersistenceError{Op: "save", Collection: name, Err: err}
	}

	// Preserve the current live file before replacing it. A missing live
	// file (first write) is fine; any other copy failure aborts so the
	// recovery chain is never weakened silently.
	if prev, err := os.ReadFile(live); err == nil {
		if err := os.WriteFile(live+backupSuffix, prev, 0644); err != nil {
			os.Remove(tmp)
			return &PersistenceError{Op: "save", Collection: name, Err: fmt.Errorf("backup rotation: %w", err)}
		}
	} else if !os.IsNotExist(err) {
		os.Remove(tmp)
		return &PersistenceError{Op: "save", Collection: name, Err: err}
	}

	if err := os.Rename(tmp, live); err != nil {
		os.Remove(tmp)
		return &PersistenceError{Op: "save", Collection: name, Err: err}
	}

	return nil
}

// readCollection loads one collection document, falling back to the backup
// when the live file is unreadable or fails schema validation. It returns
// os.ErrNotExist when neither file exists.
func (s *Store) readCollection(name string, doc interface{}, version func() int) error {
	live := filepath.Join(s.dir, name)

	err := decodeDoc(live, doc, version)
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		// No live file; a backup alone can still carry state.
		if bakErr := decodeDoc(live+backupSuffix, doc, version); bakErr == nil {
			s.logger.Warn("collection live file missing, recovered from backup",
				zap.String("collection", name))
			return nil
		}
		return err
	}

	s.logger.Warn("collection live file unreadable, trying backup",
		zap.String("collection", name),
		zap.Error(err))

	if bakErr := decodeDoc(live+backupSuffix, doc, version); bakErr == nil {
		s.logger.Warn("collection recovered from backup",
			zap.String("collection", name))
		return nil
	} else if !os.IsNotExist(bakErr) {
		s.logger.Error("collection backup also unreadable, starting empty",
			zap.String("collection", name),
			zap.Error(bakErr))
	}
	return err
}

func decodeDoc(path string, doc interface{}, version func() int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if v := version(); v != schemaVersion {
		return fmt.Errorf("decode %s: unsupported schema version %d", filepath.Base(path), v)
	}
	return nil
}

// =============================================================================
// COLLECTION LOADERS
// =============================================================================

func (s *Store) loadAgents() {
	var doc agentsDoc
	if err := s.readCollection(agentsFile, &doc, func() int { return doc.Version }); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("agents collection initialized empty", zap.Error(err))
		}
		return
	}
	for id, a := range doc.Agents {
		agent := a
		if err := agent.Validate(); err != nil {
			s.logger.Warn("dropping invalid agent record",
				zap.String("id", id),
				zap.Error(err))
			continue
		}
		s.agents[id] = agent
	}
}

func (s *Store) loadWallets() {
	var doc walletsDoc
	if err := s.readCollection(walletsFile, &doc, func() int { return doc.Version }); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("wallets collection initialized empty", zap.Error(err))
		}
		return
	}
	for id, w := range doc.Wallets {
		wallet := w
		if err := wallet.Validate(); err != nil {
			s.logger.Warn("dropping invalid wallet record",
				zap.String("owner", id),
				zap.Error(err))
			continue
		}
		s.wallets[id] = wallet
	}
}

func (s *Store) loadDecisions() {
	var doc decisionsDoc
	if err := s.readCollection(decisionsFile, &doc, func() int { return doc.Version }); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("decision log initialized empty", zap.Error(err))
		}
		return
	}
	for i := range doc.Records {
		rec := doc.Records[i]
		if err := rec.Validate(); err != nil {
			s.logger.Warn("dropping invalid decision record", zap.Error(err))
			continue
		}
		s.decisions = append(s.decisions, rec)
	}
}

func (s *Store) loadEvolution() {
	var doc evolutionDoc
	if err := s.readCollection(evolutionFile, &doc, func() int { return doc.Version }); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("evolution log initialized empty", zap.Error(err))
		}
		return
	}
	for i := range doc.Events {
		ev := doc.Events[i]
		if err := ev.Validate(); err != nil {
			s.logger.Warn("dropping invalid evolution event", zap.Error(err))
			continue
		}
		s.evolution = append(s.evolution, ev)
	}
}

func (s *Store) loadMetrics() {
	var doc metricsDoc
	if err := s.readCollection(metricsFile, &doc, func() int { return doc.Version }); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("metrics initialized empty", zap.Error(err))
		}
		return
	}
	if err := doc.Metrics.Validate(); err != nil {
		s.logger.Warn("dropping invalid metrics record", zap.Error(err))
		return
	}
	s.metrics = doc.Metrics
}

// Dir returns the store's data directory.
func (s *Store) Dir() string { return s.dir }

// stamp is the single place mutation timestamps come from; tests keep real
// clock usage but record ordering never depends on sub-millisecond precision.
func stamp() time.Time { return time.Now().UTC() }
