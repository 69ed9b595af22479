// Package thread implements the plan discussion tree and its merge law:
// comment appends are monotone, edits are author-scoped last-write-wins on a
// given comment, and redaction removes a comment while keeping its id
// reserved.
package thread

import (
	"errors"
	"time"

	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/internal/object"
)

// ErrUnknownComment is returned when an id does not name a live comment.
var ErrUnknownComment = errors.New("unknown comment")

// Embed is a named reference to external content attached to a comment.
type Embed struct {
	Name string `json:"name" yaml:"name"`
	URI  string `json:"uri" yaml:"uri"`
}

// Comment is one entry in the discussion. Its ID is the id of the operation
// that created it.
type Comment struct {
	ID        object.ID         `json:"id"`
	Author    identity.Identity `json:"author"`
	Body      string            `json:"body"`
	ReplyTo   *object.ID        `json:"replyTo,omitempty"`
	Embeds    []Embed           `json:"embeds,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	EditedAt  *time.Time        `json:"editedAt,omitempty"`
}

// Thread is the ordered comment sequence of one plan. The first comment is
// the plan description.
type Thread struct {
	Comments []Comment   `json:"comments"`
	Redacted []object.ID `json:"redacted,omitempty"`
}

// New creates a thread rooted at the given comment.
func New(root Comment) Thread {
	return Thread{Comments: []Comment{root}}
}

// Root returns the first comment. The root always exists for an initialized
// thread; ok is false only on a zero Thread.
func (t *Thread) Root() (Comment, bool) {
	if len(t.Comments) == 0 {
		return Comment{}, false
	}
	return t.Comments[0], true
}

// Get returns the live comment with the given id.
func (t *Thread) Get(id object.ID) (*Comment, bool) {
	for i := range t.Comments {
		if t.Comments[i].ID == id {
			return &t.Comments[i], true
		}
	}
	return nil, false
}

// Append adds a comment. ReplyTo, when set, must name a live comment.
func (t *Thread) Append(c Comment) error {
	if c.ReplyTo != nil {
		if _, ok := t.Get(*c.ReplyTo); !ok {
			return ErrUnknownComment
		}
	}
	t.Comments = append(t.Comments, c)
	return nil
}

// Edit replaces the body and embeds of a live comment. The caller is
// responsible for the author check; later edits win over earlier ones.
func (t *Thread) Edit(id object.ID, body string, embeds []Embed, at time.Time) error {
	c, ok := t.Get(id)
	if !ok {
		return ErrUnknownComment
	}
	c.Body = body
	c.Embeds = embeds
	c.EditedAt = &at
	return nil
}

// Redact removes a live comment. The id stays reserved and is never reused.
func (t *Thread) Redact(id object.ID) error {
	for i := range t.Comments {
		if t.Comments[i].ID == id {
			t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
			t.Redacted = append(t.Redacted, id)
			return nil
		}
	}
	return ErrUnknownComment
}
