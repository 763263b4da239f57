// Package commit implements Commit and CommitLog: the ordered grouping
// of ActionObjects and the two append-only per-replica logs (local,
// unpublished; remote, server-accepted) built on pkg/persistence.
package commit

import (
	"time"

	"github.com/google/uuid"

	"github.com/mezeipetister/demobit/pkg/action"
	"github.com/mezeipetister/demobit/pkg/sign"
)

// Sentinel is the ancestor_id of the first commit in either log.
var Sentinel = uuid.UUID{}

// Commit groups the ActionObjects closed over by one commit context.
type Commit struct {
	ID         uuid.UUID         `json:"id"`
	UID        string            `json:"uid"`
	DTime      time.Time         `json:"dtime"`
	Comment    string            `json:"comment,omitempty"`
	AncestorID uuid.UUID         `json:"ancestor_id"`
	Actions    []*action.Envelope `json:"serialized_actions"`

	RemoteSignature *string `json:"remote_signature,omitempty"`
}

// IsRemote reports whether the server has signed this commit.
func (c *Commit) IsRemote() bool { return c.RemoteSignature != nil }

// HasValidRemoteSignature reports whether RemoteSignature, if present,
// equals the SHA-1 of the commit with RemoteSignature cleared.
func (c *Commit) HasValidRemoteSignature() (bool, error) {
	if c.RemoteSignature == nil {
		return false, nil
	}
	want := *c.RemoteSignature
	clone := *c
	clone.RemoteSignature = nil
	return sign.Verify(&clone, want)
}

// RemoteSign computes and installs this commit's remote signature. It is
// the server's final step in merge_pushed_commit, run after every
// contained ActionObject has already been individually signed.
func (c *Commit) RemoteSign() error {
	clone := *c
	clone.RemoteSignature = nil
	digest, err := sign.Fingerprint(&clone)
	if err != nil {
		return err
	}
	c.RemoteSignature = &digest
	return nil
}
