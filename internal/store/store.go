// Package store persists companion profiles keyed by validated UUIDs.
// Persistence keys are never trusted from external input: a non-UUID
// identifier is replaced, not sanitized, so keys cannot become an injection
// or collision vector.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flaggdavid-source/lifeboat/internal/profile"
	"github.com/flaggdavid-source/lifeboat/internal/scan"
)

// ErrInvalidImport means an imported document does not resemble a profile.
var ErrInvalidImport = errors.New("file does not look like a companion profile")

// ErrNotFound means no record exists under the given id.
var ErrNotFound = errors.New("profile not found")

// FallbackName labels profiles that carry no declared name.
const FallbackName = "Unnamed Companion"

// Record is one persisted profile entry.
type Record struct {
	ID      string                    `json:"id"`
	Name    string                    `json:"name"`
	SavedAt time.Time                 `json:"saved_at"`
	Profile *profile.CompanionProfile `json:"profile"`
}

// Store is the profile persistence contract. List ordering is recomputed on
// every read (most recent SavedAt first) and never round-trips
// caller-controlled ordering.
type Store interface {
	// Save persists the profile under id. An empty or non-UUID id is
	// replaced with a freshly generated one; the effective id is returned.
	Save(ctx context.Context, id string, p *profile.CompanionProfile) (string, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// ValidateID returns candidate when it is a well-formed UUID in canonical
// shape, otherwise a freshly generated identifier.
func ValidateID(candidate string) string {
	parsed, err := uuid.Parse(candidate)
	if err != nil || parsed.String() != candidate {
		return uuid.NewString()
	}
	return candidate
}

// recordName returns the display name for a profile.
func recordName(p *profile.CompanionProfile) string {
	if p != nil && p.Name != "" {
		return p.Name
	}
	return FallbackName
}

// Import is the result of validating an external profile document.
type Import struct {
	ID       string
	Profile  *profile.CompanionProfile
	Findings []scan.Finding
}

// PrepareImport accepts arbitrary external JSON and validates it as a
// profile: the document must carry at least one of the two signature fields
// (name, communication_style), any supplied identifier is replaced unless
// it is a well-formed UUID, and every string field is scanned for injection
// patterns. Non-empty findings require explicit acknowledgement before the
// result is persisted; that decision belongs to the caller.
func PrepareImport(data []byte) (*Import, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrInvalidImport, err)
	}

	_, hasName := doc["name"]
	_, hasStyle := doc["communication_style"]
	if !hasName && !hasStyle {
		return nil, ErrInvalidImport
	}

	var p profile.CompanionProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: not a profile shape: %v", ErrInvalidImport, err)
	}

	id, _ := doc["id"].(string)
	id = ValidateID(id)

	// The system prompt is scanned separately so structured findings are
	// not reported twice for it.
	findings := scan.ScanValue(doc, "system_prompt")
	for _, f := range scan.Scan(p.SystemPrompt) {
		f.Field = "system_prompt"
		findings = append(findings, f)
	}

	return &Import{ID: id, Profile: &p, Findings: findings}, nil
}
