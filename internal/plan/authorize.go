package plan

import (
	"github.com/planweave/planweave/internal/identity"
)

// Class groups actions by who may apply them.
type Class int

const (
	// ClassAny actions are open to every participant.
	ClassAny Class = iota
	// ClassAuthorOrDelegate actions are open to the plan author and to
	// delegates of the repository identity.
	ClassAuthorOrDelegate
	// ClassDelegateOnly actions are open to delegates only, the plan
	// author included only when they are also a delegate.
	ClassDelegateOnly
	// ClassCommentAuthor actions are open only to the author of the
	// comment they target. The target check happens during apply; the
	// class gate itself passes everyone.
	ClassCommentAuthor
)

func classOf(a Action) Class {
	switch a.(type) {
	case Comment:
		return ClassAny
	case EditComment, RedactComment:
		return ClassCommentAuthor
	case SetLabels, SetAssignees:
		return ClassDelegateOnly
	default:
		// Open (after creation), edits, all task and link actions, and
		// critical file changes.
		return ClassAuthorOrDelegate
	}
}

// Oracle answers whether an actor may apply an action class to a plan.
// Authorization is evaluated against the identity document as it stands at
// fold time, not as it stood when the operation was authored.
type Oracle interface {
	Authorized(actor identity.Identity, class Class, p *Plan) bool
}

// DocOracle authorizes against a repository identity document's delegate
// set.
type DocOracle struct {
	Doc *identity.Doc
}

func (o DocOracle) Authorized(actor identity.Identity, class Class, p *Plan) bool {
	switch class {
	case ClassAny, ClassCommentAuthor:
		return true
	case ClassAuthorOrDelegate:
		return actor == p.Author || o.Doc.IsDelegate(actor)
	case ClassDelegateOnly:
		return o.Doc.IsDelegate(actor)
	default:
		return false
	}
}
