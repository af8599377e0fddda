package models

// StoreTag identifies one of the four persistence layers.
type StoreTag string

const (
	StoreRel StoreTag = "rel"
	StoreKV  StoreTag = "kv"
	StoreObj StoreTag = "obj"
	StoreVec StoreTag = "vec"
)

// AllStores lists the store tags in fan-out order.
func AllStores() []StoreTag {
	return []StoreTag{StoreRel, StoreKV, StoreObj, StoreVec}
}

// Outcome is the per-store result of one fan-out write.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeSkippedBreaker Outcome = "skipped_breaker"
	OutcomeError          Outcome = "error"
	OutcomeDisabled       Outcome = "disabled"
)

// WriteStatus is the overall verdict of a write.
type WriteStatus string

const (
	WriteOK       WriteStatus = "ok"
	WriteDegraded WriteStatus = "degraded"
)

// R2Policy controls whether an operation's records reach the object store.
type R2Policy string

const (
	R2Required R2Policy = "required"
	R2Optional R2Policy = "optional"
	R2None     R2Policy = "none"
)

// Valid reports whether p is one of the three policy values.
func (p R2Policy) Valid() bool {
	switch p {
	case R2Required, R2Optional, R2None:
		return true
	}
	return false
}
