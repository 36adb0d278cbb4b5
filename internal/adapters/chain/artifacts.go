package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sahilm/fuzzy"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
)

// Artifact is a compiled contract
type Artifact struct {
	Name     string
	Source   string
	Path     string
	ABI      abi.ABI
	Bytecode []byte
}

// Key returns the "source:Name" identifier of the artifact
func (a *Artifact) Key() string {
	return a.Source + ":" + a.Name
}

type artifactRef struct {
	name   string
	source string
	path   string
}

func (r artifactRef) key() string {
	return r.source + ":" + r.name
}

// artifactFile covers both Foundry (out/<File>.sol/<Name>.json) and
// Hardhat (artifacts/<path>/<Name>.json) layouts
type artifactFile struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
	AST          *struct {
		AbsolutePath string `json:"absolutePath"`
	} `json:"ast"`
}

// ArtifactStore finds compiled contracts in the configured artifact directories
type ArtifactStore struct {
	dirs []string
	log  *slog.Logger

	mu      sync.Mutex
	indexed bool
	byName  map[string][]artifactRef
	cache   map[string]*Artifact
}

// NewArtifactStore creates an artifact store over the configured directories
func NewArtifactStore(cfg *config.RuntimeConfig, log *slog.Logger) *ArtifactStore {
	return &ArtifactStore{
		dirs:  cfg.Artifacts.Dirs,
		log:   log.With("component", "ArtifactStore"),
		cache: make(map[string]*Artifact),
	}
}

// Find returns the artifact for a contract name or a "path:Name" identifier
func (s *ArtifactStore) Find(identifier string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.indexed {
		if err := s.index(); err != nil {
			return nil, err
		}
	}

	name, path := identifier, ""
	if i := strings.LastIndex(identifier, ":"); i >= 0 {
		path, name = identifier[:i], identifier[i+1:]
	}

	var candidates []artifactRef
	for _, ref := range s.byName[name] {
		if path == "" || matchesSource(ref.source, path) {
			candidates = append(candidates, ref)
		}
	}

	switch len(candidates) {
	case 0:
		names := make([]string, 0, len(s.byName))
		for n := range s.byName {
			names = append(names, n)
		}
		sort.Strings(names)
		hint := ""
		if matches := fuzzy.Find(name, names); len(matches) > 0 {
			hint = fmt.Sprintf(" (did you mean %q?)", matches[0].Str)
		}
		return nil, fmt.Errorf("%w: %s%s", domain.ErrContractNotFound, identifier, hint)
	case 1:
	default:
		keys := make([]string, len(candidates))
		for i, c := range candidates {
			keys[i] = c.key()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("contract %s is ambiguous, use one of: %s", identifier, strings.Join(keys, ", "))
	}

	ref := candidates[0]
	if art, ok := s.cache[ref.path]; ok {
		return art, nil
	}
	art, err := loadArtifact(ref)
	if err != nil {
		return nil, err
	}
	s.cache[ref.path] = art
	return art, nil
}

func matchesSource(source, path string) bool {
	return source == path ||
		strings.HasSuffix(source, "/"+path) ||
		filepath.Base(source) == path
}

func (s *ArtifactStore) index() error {
	s.byName = make(map[string][]artifactRef)
	found := false

	for _, dir := range s.dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		found = true

		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "build-info" {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".dbg.json") {
				return nil
			}

			ref, ok := s.readRef(dir, path)
			if ok {
				s.byName[ref.name] = append(s.byName[ref.name], ref)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to index artifacts in %s: %w", dir, err)
		}
	}

	if !found {
		return fmt.Errorf("no artifact directory found (looked in %s)", strings.Join(s.dirs, ", "))
	}
	s.indexed = true
	return nil
}

func (s *ArtifactStore) readRef(root, path string) (artifactRef, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Debug("skipping unreadable artifact", "path", path, "error", err)
		return artifactRef{}, false
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil || len(file.ABI) == 0 {
		return artifactRef{}, false
	}

	ref := artifactRef{
		name:   file.ContractName,
		source: file.SourceName,
		path:   path,
	}
	if ref.name == "" {
		ref.name = strings.TrimSuffix(filepath.Base(path), ".json")
		// Foundry suffixes artifacts built by several compilers with the version
		if i := strings.Index(ref.name, "."); i > 0 {
			ref.name = ref.name[:i]
		}
	}
	if ref.source == "" && file.AST != nil {
		ref.source = file.AST.AbsolutePath
	}
	if ref.source == "" {
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			rel = filepath.Dir(path)
		}
		ref.source = filepath.ToSlash(rel)
	}
	return ref, true
}

func loadArtifact(ref artifactRef) (*Artifact, error) {
	data, err := os.ReadFile(ref.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", ref.path, err)
	}

	parsed, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI of %s: %w", ref.key(), err)
	}

	bytecode, err := decodeBytecode(file.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bytecode of %s: %w", ref.key(), err)
	}

	return &Artifact{
		Name:     ref.name,
		Source:   ref.source,
		Path:     ref.path,
		ABI:      parsed,
		Bytecode: bytecode,
	}, nil
}

// decodeBytecode accepts "0x.." (Hardhat) or {"object": "0x.."} (Foundry)
func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var hex string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &hex); err != nil {
			return nil, err
		}
	} else {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		hex = obj.Object
	}

	if hex == "" || hex == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(hex, "0x") {
		hex = "0x" + hex
	}
	if strings.Contains(hex, "__") {
		return nil, fmt.Errorf("bytecode has unlinked libraries")
	}
	return hexutil.Decode(hex)
}
