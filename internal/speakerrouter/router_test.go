package speakerrouter

import (
	"path/filepath"
	"testing"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	store, err := OpenPreferenceStore(filepath.Join(t.TempDir(), "prefs.json"))
	if err != nil {
		t.Fatalf("OpenPreferenceStore: %v", err)
	}
	return New(store, "normal")
}

func TestRouter_Resolve_NoPreferenceReturnsNil(t *testing.T) {
	r := newTestRouter(t)
	if got := r.Resolve("u1", "voicevox"); got != nil {
		t.Errorf("Resolve = %v, want nil (no stored preference)", *got)
	}
}

func TestRouter_Resolve_SameEngineReturnsStoredSpeaker(t *testing.T) {
	r := newTestRouter(t)
	if err := r.SetPreference("u1", 7, "Tsundere", "voicevox"); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	got := r.Resolve("u1", "voicevox")
	if got == nil || *got != 7 {
		t.Fatalf("Resolve = %v, want 7", got)
	}
}

func TestRouter_Resolve_CrossEngineUsesMappingTable(t *testing.T) {
	r := newTestRouter(t)
	if err := r.SetPreference("u1", 7, "Tsundere", "voicevox"); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	got := r.Resolve("u1", "aivis")
	if got == nil || *got != 1512153252 {
		t.Fatalf("Resolve = %v, want 1512153252 (mapped Tsundere)", got)
	}
}

func TestRouter_Resolve_FallsBackToEngineDefaultWhenUnmapped(t *testing.T) {
	r := newTestRouter(t)
	// Preference stored against an engine id with no corresponding mapping
	// entry into "voicevox" falls back to voicevox's default.
	if err := r.SetPreference("u1", 1512159999, "Unmapped Aivis Voice", "aivis"); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	got := r.Resolve("u1", "voicevox")
	if got == nil || *got != 3 {
		t.Fatalf("Resolve = %v, want 3 (voicevox default)", got)
	}
}

func TestRouter_SetPreference_InfersEngine(t *testing.T) {
	r := newTestRouter(t)
	if err := r.SetPreference("u1", 1512153251, "Seductive", ""); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	got := r.Resolve("u1", "aivis")
	if got == nil || *got != 1512153251 {
		t.Fatalf("Resolve = %v, want 1512153251", got)
	}
}

func TestRouter_SetPreference_RejectsUnknownEngine(t *testing.T) {
	r := newTestRouter(t)
	if err := r.SetPreference("u1", 3, "Normal", "bogus"); err == nil {
		t.Error("expected error for unknown engine tag")
	}
}
