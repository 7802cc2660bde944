// Package speakerrouter resolves which TTS speaker id to use for a given
// author against the currently active engine, honoring durable per-author
// preferences and a static cross-engine mapping table when the preference
// was recorded against a different engine than the one currently active.
package speakerrouter

// Router maps (author id, active engine) to a speaker id.
type Router struct {
	store       *PreferenceStore
	speakerName string // configured TTS_SPEAKER default name
}

// New builds a Router backed by store. defaultSpeakerName is the configured
// TTS_SPEAKER value, used to resolve a named default for engines with no
// stored preference.
func New(store *PreferenceStore, defaultSpeakerName string) *Router {
	return &Router{store: store, speakerName: defaultSpeakerName}
}

// Resolve returns the speaker id to use for authorID against
// currentEngineTag. A nil return means "use the engine's default speaker".
func (r *Router) Resolve(authorID, currentEngineTag string) *int {
	pref, ok := r.store.Get(authorID)
	if !ok {
		return nil
	}
	if pref.Engine == currentEngineTag {
		id := pref.SpeakerID
		return &id
	}
	if mapped, ok := mappedSpeaker(pref.Engine, currentEngineTag, pref.SpeakerID); ok {
		return &mapped
	}
	id := DefaultSpeaker(currentEngineTag, r.speakerName)
	return &id
}

// DefaultSpeaker returns the configured default speaker id for
// currentEngineTag, honoring the Router's configured TTS_SPEAKER name.
func (r *Router) DefaultSpeaker(currentEngineTag string) int {
	return DefaultSpeaker(currentEngineTag, r.speakerName)
}

// SetPreference durably records authorID's speaker choice. engine may be
// empty to infer it from speakerID's known range.
func (r *Router) SetPreference(authorID string, speakerID int, speakerDisplayName, engine string) error {
	return r.store.Set(authorID, speakerID, speakerDisplayName, engine)
}
