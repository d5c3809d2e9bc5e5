package ledger

import (
	"strings"

	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/models"
)

// Transition is a custody-changing operation
type Transition int

const (
	Allocate Transition = iota + 1
	Return
	InitiateTransfer
	ReceiveTransfer
	SendToRepair
	CompleteRepair
	Retire
)

var transitionNames = map[Transition]string{
	Allocate:         "allocate",
	Return:           "return",
	InitiateTransfer: "transfer",
	ReceiveTransfer:  "receive",
	SendToRepair:     "send to repair",
	CompleteRepair:   "complete repair",
	Retire:           "retire",
}

func (t Transition) String() string {
	if n, ok := transitionNames[t]; ok {
		return n
	}
	return "unknown"
}

// transitionKeys are the API names of transitions
var transitionKeys = map[string]Transition{
	"allocate":        Allocate,
	"return":          Return,
	"transfer":        InitiateTransfer,
	"receive":         ReceiveTransfer,
	"repair":          SendToRepair,
	"complete_repair": CompleteRepair,
	"retire":          Retire,
}

// Key is the API name of t
func (t Transition) Key() string {
	for k, v := range transitionKeys {
		if v == t {
			return k
		}
	}
	return ""
}

// MarshalText encodes t as its API name
func (t Transition) MarshalText() ([]byte, error) {
	return []byte(t.Key()), nil
}

// ParseTransition maps an API name to a transition
func ParseTransition(key string) (Transition, error) {
	if t, ok := transitionKeys[strings.ToLower(strings.TrimSpace(key))]; ok {
		return t, nil
	}
	return 0, apperr.Invalid("unknown action %q", key)
}

// legal lists, per current status, the transitions that may be applied.
// Purchase is not listed; it creates the asset in StatusInStock.
var legal = map[models.AssetStatus]map[Transition]bool{
	models.StatusInStock: {
		Allocate:         true,
		InitiateTransfer: true,
		SendToRepair:     true,
		Retire:           true,
	},
	models.StatusAllocated: {
		Allocate:         true, // reallocation to another employee
		Return:           true,
		InitiateTransfer: true,
		SendToRepair:     true,
		Retire:           true, // rejected by the holder check
	},
	models.StatusInTransit: {
		ReceiveTransfer: true,
	},
	models.StatusRepair: {
		CompleteRepair: true,
		Retire:         true,
	},
	models.StatusRetired: {},
}

// Allowed reports whether t may be applied to an asset in status s
func Allowed(s models.AssetStatus, t Transition) bool {
	return legal[s][t]
}

// AllowedFrom lists the transitions available from s
func AllowedFrom(s models.AssetStatus) []Transition {
	var out []Transition
	for t := Allocate; t <= Retire; t++ {
		if legal[s][t] {
			out = append(out, t)
		}
	}
	return out
}
