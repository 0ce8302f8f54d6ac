package ledger

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/csd-dev-tools/stonix/internal/fsutil"
)

// Kind identifies the variant of a change event.
type Kind string

const (
	KindConf     Kind = "conf"
	KindCreation Kind = "creation"
	KindDeletion Kind = "deletion"
	KindPerm     Kind = "perm"
	KindPackage  Kind = "pkghelper"
	KindService  Kind = "servicehelper"
	KindCommand  Kind = "command"
)

// Package and service states recorded in pkghelper and servicehelper events.
const (
	StateInstalled = "installed"
	StateRemoved   = "removed"
	StateEnabled   = "enabled"
	StateDisabled  = "disabled"
)

// Payload is the typed body of a change event. Exactly one concrete type
// exists per Kind.
type Payload interface {
	Kind() Kind
}

// FileConf records an edit of an existing configuration file. The
// pre-change bytes are kept as the event's snapshot.
type FileConf struct {
	Path string `json:"path"`
}

// Creation records a file that did not exist before the fix.
type Creation struct {
	Path string `json:"path"`
}

// Deletion records a file the fix removed; the original is archived.
type Deletion struct {
	Path string `json:"path"`
	// Archive is the archived copy holding the content at deletion time.
	Archive string `json:"archive,omitempty"`
}

// Perm records an ownership or mode change.
type Perm struct {
	Path  string           `json:"path"`
	Start fsutil.Ownership `json:"start"`
	End   fsutil.Ownership `json:"end"`
}

// Package records an install or removal.
type Package struct {
	Name       string `json:"name"`
	StartState string `json:"startstate"`
	EndState   string `json:"endstate"`
}

// Service records an enable or disable.
type Service struct {
	Name       string `json:"name"`
	Target     string `json:"target,omitempty"`
	StartState string `json:"startstate"`
	EndState   string `json:"endstate"`
}

// Command records a command that reverses the fix when run.
type Command struct {
	Argv []string `json:"argv"`
}

func (FileConf) Kind() Kind { return KindConf }
func (Creation) Kind() Kind { return KindCreation }
func (Deletion) Kind() Kind { return KindDeletion }
func (Perm) Kind() Kind     { return KindPerm }
func (Package) Kind() Kind  { return KindPackage }
func (Service) Kind() Kind  { return KindService }
func (Command) Kind() Kind  { return KindCommand }

// Event is one entry of the change ledger.
type Event struct {
	ID         string
	Rule       int
	Payload    Payload
	RecordedAt time.Time
}

// Kind returns the variant of the payload.
func (e Event) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

var eventIDPattern = regexp.MustCompile(`^\d{7}$`)

// maxSeq is the last sequence number that fits the three id digits.
const maxSeq = 999

// EventID builds the seven digit id for the seq-th change made by rule:
// four digits of rule number followed by three digits of sequence.
func EventID(rule, seq int) string {
	return fmt.Sprintf("%04d%03d", rule, seq)
}

// ParseEventID splits id into rule number and sequence.
func ParseEventID(id string) (rule, seq int, err error) {
	if !eventIDPattern.MatchString(id) {
		return 0, 0, fmt.Errorf("ledger: invalid event id %q", id)
	}
	rule, _ = strconv.Atoi(id[:4])
	seq, _ = strconv.Atoi(id[4:])
	return rule, seq, nil
}

// IDs hands out consecutive event ids for one rule's fix pass.
type IDs struct {
	rule int
	seq  int
}

// NewIDs starts a sequence for rule at 001.
func NewIDs(rule int) *IDs {
	return &IDs{rule: rule}
}

// Next returns the next unused id, or ErrIDsExhausted after 999 ids.
func (i *IDs) Next() (string, error) {
	if i.seq >= maxSeq {
		return "", fmt.Errorf("%w: rule %d", ErrIDsExhausted, i.rule)
	}
	i.seq++
	return EventID(i.rule, i.seq), nil
}

func encodePayload(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodePayload(kind Kind, data string) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindConf:
		p, err = decodeAs[FileConf](data)
	case KindCreation:
		p, err = decodeAs[Creation](data)
	case KindDeletion:
		p, err = decodeAs[Deletion](data)
	case KindPerm:
		p, err = decodeAs[Perm](data)
	case KindPackage:
		p, err = decodeAs[Package](data)
	case KindService:
		p, err = decodeAs[Service](data)
	case KindCommand:
		p, err = decodeAs[Command](data)
	default:
		return nil, fmt.Errorf("ledger: unknown event kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: decode %s payload: %w", kind, err)
	}
	return p, nil
}

func decodeAs[T Payload](data string) (Payload, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, err
	}
	return v, nil
}
