package mqtt

// TopicPrefix is the root of the Voicematch topic tree.
const TopicPrefix = "voicematch"

// Topics provides type-safe construction of Voicematch MQTT topics.
//
// Using methods instead of string constants keeps the topic scheme in one
// place and makes call sites grep-able.
//
// Example:
//
//	Topics{}.MatchRequest() // "voicematch/match/request"
type Topics struct{}

// MatchRequest returns the topic batches are received on.
// Payloads use any of the supported request envelope shapes.
func (Topics) MatchRequest() string {
	return TopicPrefix + "/match/request"
}

// MatchResult returns the topic results are published on.
func (Topics) MatchResult() string {
	return TopicPrefix + "/match/result"
}

// SystemStatus returns the retained status topic.
// Carries online/offline payloads, including the LWT on unexpected disconnect.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}
