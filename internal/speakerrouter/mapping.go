package speakerrouter

// crossEngineMapping is the compiled speaker-id mapping table between the
// two supported engines, keyed as "<from>_to_<to>". Built by hand from
// voice-character equivalence, not derivable from either engine's API.
var crossEngineMapping = map[string]map[int]int{
	"voicevox_to_aivis": {
		3:  1512153250, // Normal -> zunda_normal
		1:  1512153249, // Sweet -> zunda_amai
		7:  1512153252, // Tsundere -> zunda_tsun
		5:  1512153251, // Seductive -> zunda_sexy
		22: 1512153253, // Whisper -> zunda_whisper
		38: 1512153254, // Murmur -> zunda_hisohiso
		75: 1512153250, // Flirty -> zunda_normal (no direct match)
		76: 1512153250, // Tearful -> zunda_normal (no direct match)
	},
	"aivis_to_voicevox": {
		1512153250: 3,  // zunda_normal -> Normal
		1512153249: 1,  // zunda_amai -> Sweet
		1512153252: 7,  // zunda_tsun -> Tsundere
		1512153251: 5,  // zunda_sexy -> Seductive
		1512153253: 22, // zunda_whisper -> Whisper
		1512153254: 38, // zunda_hisohiso -> Murmur
		1512153248: 3,  // zunda_reading -> Normal (no direct match)
		888753760:  3,  // anneli_normal -> Zundamon Normal
		888753761:  3,  // anneli_normal2 -> Zundamon Normal
		888753762:  3,  // anneli_tension -> Zundamon Normal
		888753763:  3,  // anneli_calm -> Zundamon Normal
		888753764:  3,  // anneli_happy -> Zundamon Normal
		888753765:  3,  // anneli_angry -> Zundamon Normal
		1431611904: 3,  // Mai -> Zundamon Normal
		604166016:  3,  // Chuunibyou -> Zundamon Normal
	},
}

// mappedSpeaker looks up the cross-engine equivalent of speakerID, if any.
func mappedSpeaker(fromEngine, toEngine string, speakerID int) (int, bool) {
	table, ok := crossEngineMapping[fromEngine+"_to_"+toEngine]
	if !ok {
		return 0, false
	}
	id, ok := table[speakerID]
	return id, ok
}

// speakerIDRanges lets engine tags be inferred from a bare speaker id, since
// the two engines' id spaces never overlap.
var speakerIDRanges = map[string]func(id int) bool{
	"voicevox": func(id int) bool { return id >= 0 && id < 1000 },
	"aivis":    func(id int) bool { return id >= 1000 },
}

// inferEngine returns the engine tag whose known id range contains speakerID.
func inferEngine(speakerID int) (string, bool) {
	for _, tag := range []string{"voicevox", "aivis"} {
		if speakerIDRanges[tag](speakerID) {
			return tag, true
		}
	}
	return "", false
}

// defaultSpeakers holds each engine's fallback speaker id, used whenever no
// per-author preference and no cross-engine mapping entry apply.
var defaultSpeakers = map[string]int{
	"voicevox": 3,          // Zundamon (Normal)
	"aivis":    1512153250, // Unofficial Zundamon (Normal)
}

// namedSpeakers resolves TTS_SPEAKER-style human names to engine speaker ids.
var namedSpeakers = map[string]map[string]int{
	"voicevox": {
		"normal": 3,
		"sexy":   5,
		"tsun":   7,
		"amai":   1,
	},
	"aivis": {
		"anneli_normal":   888753760,
		"anneli_normal2":  888753761,
		"anneli_tension":  888753762,
		"anneli_calm":     888753763,
		"anneli_happy":    888753764,
		"anneli_angry":    888753765,
		"zunda_reading":   1512153248,
		"zunda_normal":    1512153250,
		"zunda_amai":      1512153249,
		"zunda_sexy":      1512153251,
		"zunda_tsun":      1512153252,
		"zunda_whisper":   1512153253,
		"zunda_hisohiso":  1512153254,
	},
}

// DefaultSpeaker returns the engine's configured-default speaker id, looking
// up speakerName first and falling back to the engine's hardcoded default.
func DefaultSpeaker(engineTag, speakerName string) int {
	if names, ok := namedSpeakers[engineTag]; ok {
		if id, ok := names[speakerName]; ok {
			return id
		}
	}
	return defaultSpeakers[engineTag]
}
