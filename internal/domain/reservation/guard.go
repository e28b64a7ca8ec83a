package reservation

import (
	"errors"
	"fmt"
	"strings"

	"habita/internal/domain/shared/fault"
	"habita/internal/domain/user"
)

// Relation is how the acting user stands toward a reservation. It is a set: a host who
// books their own property is both owner and host.
type Relation uint8

const (
	RelationNone  Relation = 0
	RelationOwner Relation = 1 << 0
	RelationHost  Relation = 1 << 1
	RelationAdmin Relation = 1 << 2
)

var relationNames = []struct {
	rel  Relation
	name string
}{
	{RelationAdmin, "admin"},
	{RelationHost, "host"},
	{RelationOwner, "owner"},
}

func (r Relation) String() string {
	var names []string
	for _, n := range relationNames {
		if r.Has(n.rel) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

func (r Relation) Has(other Relation) bool {
	return other != RelationNone && r&other == other
}

// Elevated relations may drive the status and payment lifecycles.
func (r Relation) Elevated() bool {
	return r.Has(RelationHost) || r.Has(RelationAdmin)
}

type Action string

const (
	ActionView           Action = "view"
	ActionCreate         Action = "create"
	ActionCreateForOther Action = "create_for_other"
	ActionEditStay       Action = "edit_stay"
	ActionDiscount       Action = "discount"
	ActionStatus         Action = "status"
	ActionPayment        Action = "payment_status"
)

var (
	ErrNotAllowed      = errors.New("reservation: not allowed for this user")
	ErrOwnerCancelOnly = errors.New("reservation: guests may only cancel their reservation")
	ErrCreateForOther  = errors.New("reservation: only admins may book on behalf of another user")
	ErrPaymentElevated = errors.New("reservation: only hosts and admins may change payment status")
	ErrStatusElevated  = errors.New("reservation: only hosts and admins may change status")
)

// guardTable is the single source of who may do what to a reservation.
var guardTable = map[Relation]map[Action]bool{
	RelationAdmin: {
		ActionView: true, ActionCreate: true, ActionCreateForOther: true, ActionEditStay: true,
		ActionDiscount: true, ActionStatus: true, ActionPayment: true,
	},
	RelationHost: {
		ActionView: true, ActionCreate: true, ActionDiscount: true, ActionStatus: true, ActionPayment: true,
	},
	RelationOwner: {
		ActionView: true, ActionCreate: true, ActionEditStay: true, ActionDiscount: true, ActionStatus: true,
	},
	RelationNone: {},
}

// ownerStatuses restricts which statuses a non-elevated owner may request.
var ownerStatuses = map[Status]bool{StatusCancelled: true}

var deniedReasons = map[Action]error{
	ActionCreateForOther: ErrCreateForOther,
	ActionPayment:        ErrPaymentElevated,
	ActionStatus:         ErrStatusElevated,
}

var actionFields = map[Action]string{
	ActionView:           "reservation_id",
	ActionCreate:         "user_id",
	ActionCreateForOther: "user_id",
	ActionEditStay:       "reservation_id",
	ActionDiscount:       "discount_percent",
	ActionStatus:         "status",
	ActionPayment:        "payment_status",
}

// RelationOf classifies actor against a reservation owned by owner on a property hosted by host.
func RelationOf(actor user.Actor, owner, host user.ID) Relation {
	if actor.IsAdmin() {
		return RelationAdmin
	}
	rel := RelationNone
	if host != "" && actor.ID == host {
		rel |= RelationHost
	}
	if owner != "" && actor.ID == owner {
		rel |= RelationOwner
	}
	return rel
}

// Allowed reports whether any relation in rel grants action.
func Allowed(rel Relation, action Action) bool {
	for _, n := range relationNames {
		if rel.Has(n.rel) && guardTable[n.rel][action] {
			return true
		}
	}
	return false
}

// Authorize fails with a permission error when rel may not perform action.
func Authorize(rel Relation, action Action) error {
	if Allowed(rel, action) {
		return nil
	}
	reason, ok := deniedReasons[action]
	if !ok {
		reason = ErrNotAllowed
	}
	return fault.Permission(actionFields[action], reason)
}

// AuthorizeStatus checks both the role and the requested target status.
func AuthorizeStatus(rel Relation, to Status) error {
	if err := Authorize(rel, ActionStatus); err != nil {
		return err
	}
	if !rel.Elevated() && !ownerStatuses[to] {
		return fault.Permission("status", fmt.Errorf("%w: requested %s", ErrOwnerCancelOnly, to))
	}
	return nil
}
