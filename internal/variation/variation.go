// Package variation picks phrasing variants deterministically per
// (entity, weak point) pair, independent of call order.
package variation

import "hash/fnv"

// #region rng

// splitmix64 is a tiny local generator. Each selection builds its own
// instance from the seed, so no state is shared between callers.
type splitmix64 struct {
	state uint64
}

func (s *splitmix64) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// #endregion rng

// #region select

// Seed hashes the pair with fnv-64a. A zero byte separates the fields so
// ("ab","c") and ("a","bc") differ.
func Seed(entityID, weakPointKey string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(entityID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(weakPointKey))
	return h.Sum64()
}

// Select returns an index in [0, n). It returns 0 when n <= 1.
func Select(entityID, weakPointKey string, n int) int {
	if n <= 1 {
		return 0
	}
	rng := splitmix64{state: Seed(entityID, weakPointKey)}
	return int(rng.next() % uint64(n))
}

// #endregion select

// #region catalog

// Catalog maps weak-point keys to alternative phrasings of the same instruction.
type Catalog map[string][]string

// Phrase returns the variant chosen for (entityID, key), or "" when the key
// has no phrasings.
func (c Catalog) Phrase(entityID, key string) string {
	variants := c[key]
	if len(variants) == 0 {
		return ""
	}
	return variants[Select(entityID, key, len(variants))]
}

// DefaultCatalog returns the built-in instruction phrasings.
func DefaultCatalog() Catalog {
	return Catalog{
		"H_scene": {
			"Describe one concrete moment on site, such as checking in or opening the curtains.",
			"Walk the reader through a specific scene from the stay, with time of day and place.",
			"Anchor the review in a real moment: what you saw when you first entered the room.",
		},
		"H_emotion": {
			"Let the reviewer react honestly: what surprised or delighted them?",
			"Add a line about how the stay felt, not only what it offered.",
			"Share one emotional high point of the stay in plain words.",
		},
		"H_originality": {
			"Open with a personal episode that only this traveler could tell.",
			"Avoid stock phrases; give one detail that is unique to this hotel.",
		},
		"H_persona": {
			"Write consistently from one traveler's point of view.",
			"Make it clear who is traveling and why.",
		},
		"H_sensory": {
			"Mention at least one sound, smell or texture from the stay.",
			"Use sensory details: the view, the scent of the lobby, the feel of the linen.",
		},
		"Q_structure": {
			"Lead with the single best highlight, then cover the rest in order.",
			"Organize the review around what stood out, strongest first.",
		},
		"Q_depth": {
			"Go one level deeper on each facility you mention.",
			"For every feature, add why it mattered to the stay.",
		},
		"Q_length": {
			"Expand the body so each section carries real information.",
			"Give each topic its own paragraph with concrete details.",
		},
		"Q_specificity": {
			"Include concrete numbers: minutes from the station, room size, price range.",
			"Replace vague words with specific facts and figures.",
		},
		"Q_readability": {
			"Use shorter sentences and a calmer register.",
			"Break long paragraphs and keep one idea per sentence.",
		},
		"C_breakfast": {
			"Cover the breakfast: style, highlights and hours.",
			"Say what breakfast was like and whether it is worth adding.",
		},
		"C_bath": {
			"Describe the bath or spa facilities.",
			"Mention the bathroom and any public bath.",
		},
		"C_access": {
			"Explain how to get there from the nearest station.",
			"Add access details: walking time and landmarks on the way.",
		},
		"C_service": {
			"Describe one interaction with the staff.",
			"Say how the staff handled check-in and requests.",
		},
		"C_price": {
			"Discuss value for money honestly.",
			"Say who the price makes sense for.",
		},
		"C_surroundings": {
			"Recommend one place nearby worth visiting.",
			"Describe the neighborhood around the hotel.",
		},
		"C_hook": {
			"Open with a line that makes the reader want to keep going.",
			"Start with a vivid scene instead of a summary.",
		},
		"C_closing": {
			"End with a clear recommendation and who it suits.",
			"Close by saying who should book and when.",
		},
	}
}

// #endregion catalog
