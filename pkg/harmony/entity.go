package harmony

// Keyed exposes the stable snowflake identity of a remotely-owned entity.
type Keyed interface {
	// Key returns the entity's immutable snowflake identifier.
	Key() Snowflake
}

// Patchable is implemented by cached entities that absorb partial updates in
// place. ApplyPatch must only overwrite fields that are present on the raw
// payload, so holders of the entity observe fresher values without the entity
// being replaced.
type Patchable[R any] interface {
	Keyed
	// ApplyPatch folds one raw wire payload into the entity.
	ApplyPatch(raw R)
}
