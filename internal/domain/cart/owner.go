package cart

import (
	"strings"
)

// OwnerKind distinguishes authenticated and anonymous carts.
type OwnerKind string

const (
	OwnerUser  OwnerKind = "user"
	OwnerGuest OwnerKind = "guest"
)

// Owner is the cart owner key: User(userId) or Guest(sessionId).
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

func UserOwner(userID string) Owner {
	return Owner{Kind: OwnerUser, ID: strings.TrimSpace(userID)}
}

func GuestOwner(sessionID string) Owner {
	return Owner{Kind: OwnerGuest, ID: strings.TrimSpace(sessionID)}
}

// ResolveOwner picks the owner key for a request.
// A user identity always wins over a session id.
func ResolveOwner(userID, sessionID string) (Owner, error) {
	if uid := strings.TrimSpace(userID); uid != "" {
		return UserOwner(uid), nil
	}
	if sid := strings.TrimSpace(sessionID); sid != "" {
		return GuestOwner(sid), nil
	}
	return Owner{}, ErrNoOwner
}

// ParseOwnerKey is the inverse of Owner.Key.
func ParseOwnerKey(key string) (Owner, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok {
		return Owner{}, ErrNoOwner
	}
	o := Owner{Kind: OwnerKind(kind), ID: id}
	if err := o.Validate(); err != nil {
		return Owner{}, err
	}
	return o, nil
}

// Key is the storage key, "user:<id>" or "guest:<sessionId>".
func (o Owner) Key() string {
	return string(o.Kind) + ":" + o.ID
}

func (o Owner) IsGuest() bool { return o.Kind == OwnerGuest }
func (o Owner) IsUser() bool  { return o.Kind == OwnerUser }

func (o Owner) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return ErrNoOwner
	}
	switch o.Kind {
	case OwnerUser, OwnerGuest:
		return nil
	default:
		return ErrNoOwner
	}
}

func (o Owner) String() string {
	return string(o.Kind) + ":" + maskID(o.ID)
}

// maskID keeps log lines from carrying full identifiers.
func maskID(s string) string {
	t := strings.TrimSpace(s)
	if len(t) <= 8 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
