package ledger

import (
	"errors"
	"strings"
	"time"

	"ledgerforge/internal/core"
)

// Entry is one deployment of one unit to one network.
//
// Schema constraints (frozen): identity_hash, address and deployed_at are
// required; metadata is optional. The unit name is the key the entry is
// filed under and is not repeated in the record.
type Entry struct {
	UnitName     string            `json:"-"`
	IdentityHash core.IdentityHash `json:"identity_hash"`
	Address      string            `json:"address"`
	DeployedAt   time.Time         `json:"deployed_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (e Entry) Validate() error {
	var errs []error
	if strings.TrimSpace(e.UnitName) == "" {
		errs = append(errs, errors.New("unit name is required"))
	}
	if strings.TrimSpace(string(e.IdentityHash)) == "" {
		errs = append(errs, errors.New("identity_hash is required"))
	}
	if strings.TrimSpace(e.Address) == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if e.DeployedAt.IsZero() {
		errs = append(errs, errors.New("deployed_at is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func (e Entry) clone() Entry {
	if e.Metadata != nil {
		md := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}
