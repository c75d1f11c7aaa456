// Package artifact defines the artifact/chunk data model shared by every
// other component: artifacts are hierarchical content units with a status
// state machine and append-only version history; chunks are the
// index-addressed retrieval units derived from artifact content.
package artifact

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is the closed enumeration of supported artifact kinds.
type Type string

const (
	TypeText     Type = "TEXT"
	TypeCode     Type = "CODE"
	TypeMarkdown Type = "MARKDOWN"
	TypeHTML     Type = "HTML"
	TypeJSON     Type = "JSON"
	TypeCSV      Type = "CSV"
	TypeWebPages Type = "WEB_PAGES"
	TypeNovel    Type = "NOVEL"
	TypeDir      Type = "DIR"
	TypeCustom   Type = "CUSTOM"
)

// knownTypes keeps the enumeration closed: ParseType rejects anything else.
var knownTypes = map[Type]bool{
	TypeText: true, TypeCode: true, TypeMarkdown: true, TypeHTML: true,
	TypeJSON: true, TypeCSV: true, TypeWebPages: true, TypeNovel: true,
	TypeDir: true, TypeCustom: true,
}

// ParseType converts a string into a Type, rejecting unknown values.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !knownTypes[t] {
		return "", fmt.Errorf("unknown artifact type %q", s)
	}
	return t, nil
}

// Status is the artifact lifecycle state.
type Status string

const (
	StatusDraft    Status = "DRAFT"    // initial state on first construction
	StatusEdited   Status = "EDITED"   // any content update
	StatusComplete Status = "COMPLETE" // explicit completion signal
	StatusArchived Status = "ARCHIVED" // terminal, soft-delete
)

// Version is one append-only history record. Content and Status snapshot the
// artifact at the time of the transition.
type Version struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Status      Status    `json:"status"`
}

// Artifact is a structured content unit. Sub-artifacts in Sublist are owned
// by their parent: their ParentID must equal the owner's ID and their
// lifetime is tied to it.
type Artifact struct {
	ID             string         `json:"artifact_id"`
	ParentID       string         `json:"parent_id"`
	Type           Type           `json:"artifact_type"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Status         Status         `json:"status"`
	VersionHistory []Version      `json:"version_history,omitempty"`
	Sublist        []*Artifact    `json:"sublist"`
	ChunkList      []*Chunk       `json:"-"`

	// AttachmentFiles maps file names to local source paths to be copied
	// into the repository alongside the artifact descriptor.
	AttachmentFiles map[string]string `json:"-"`
}

// New creates an artifact in DRAFT status with an initial version record.
// An empty id is replaced with a generated UUID.
func New(id string, typ Type, content string, metadata map[string]any) *Artifact {
	if id == "" {
		id = uuid.NewString()
	}
	if metadata == nil {
		metadata = make(map[string]any)
	}
	a := &Artifact{
		ID:        id,
		Type:      typ,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
		Status:    StatusDraft,
	}
	a.recordVersion("Initial version")
	return a
}

// recordVersion appends the current state to the history and bumps UpdatedAt.
func (a *Artifact) recordVersion(description string) {
	v := Version{
		Timestamp:   time.Now(),
		Description: description,
		Content:     a.Content,
		Status:      a.Status,
	}
	a.VersionHistory = append(a.VersionHistory, v)
	a.UpdatedAt = v.Timestamp
}

// UpdateContent replaces content, moves the artifact to EDITED, and records
// a version.
func (a *Artifact) UpdateContent(content, description string) {
	if description == "" {
		description = "Content update"
	}
	a.Content = content
	a.Status = StatusEdited
	a.recordVersion(description)
}

// UpdateMetadata merges new metadata keys over the existing map.
func (a *Artifact) UpdateMetadata(metadata map[string]any) {
	for k, v := range metadata {
		a.Metadata[k] = v
	}
	a.UpdatedAt = time.Now()
}

// MarkComplete moves the artifact to COMPLETE and records a version.
func (a *Artifact) MarkComplete() {
	a.Status = StatusComplete
	a.recordVersion("Marked as complete")
}

// Archive soft-deletes the artifact. ARCHIVED is terminal.
func (a *Artifact) Archive() {
	a.Status = StatusArchived
	a.recordVersion("Artifact archived")
}

// GetVersion returns the history record at index i, or nil if out of range.
func (a *Artifact) GetVersion(i int) *Version {
	if i < 0 || i >= len(a.VersionHistory) {
		return nil
	}
	return &a.VersionHistory[i]
}

// RevertToVersion restores content and status from history index i and
// appends a new "reverted" record. History only grows, never shrinks.
// Returns false if i is out of range.
func (a *Artifact) RevertToVersion(i int) bool {
	v := a.GetVersion(i)
	if v == nil {
		return false
	}
	a.Content = v.Content
	a.Status = v.Status
	a.recordVersion(fmt.Sprintf("Reverted to version %d", i))
	return true
}

// AddSubArtifact appends a child and stamps its ParentID with the owner's ID.
func (a *Artifact) AddSubArtifact(sub *Artifact) {
	sub.ParentID = a.ID
	a.Sublist = append(a.Sublist, sub)
}

// EmbeddingText returns the text to embed for this artifact, or "" when the
// artifact has no embeddable content.
func (a *Artifact) EmbeddingText() string {
	return a.Content
}

// RerankText returns the text handed to rerankers.
func (a *Artifact) RerankText() string {
	return a.Content
}

// MetadataValue returns the metadata value for key, or nil if absent.
func (a *Artifact) MetadataValue(key string) any {
	return a.Metadata[key]
}
