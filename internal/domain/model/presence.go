package model

import "strconv"

// Presence is a character's status in a single raid report.
type Presence int

// Presence values mirror the log API encoding.
const (
	Absent  Presence = 0
	Present Presence = 1
	Benched Presence = 2
)

// Priority orders presences for same-day merges: Present > Benched > Absent.
// Unknown values rank with Absent.
func (p Presence) Priority() int {
	switch p {
	case Present:
		return 2
	case Benched:
		return 1
	default:
		return 0
	}
}

// Attended reports whether the presence counts toward attendance.
// Benched players get full credit.
func (p Presence) Attended() bool {
	return p == Present || p == Benched
}

// Valid reports whether p is one of the known presence values.
func (p Presence) Valid() bool {
	return p == Absent || p == Present || p == Benched
}

func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case Present:
		return "present"
	case Benched:
		return "benched"
	default:
		return "presence(" + strconv.Itoa(int(p)) + ")"
	}
}

// PresencePriority is the merge comparator for a possibly missing entry.
// A character missing from a record ranks the same as Absent.
func PresencePriority(pp *PlayerPresence) int {
	if pp == nil {
		return 0
	}
	return pp.Presence.Priority()
}

// PreferPresence returns the entry that should survive when the same
// character appears twice in one raid day. Ties keep current.
func PreferPresence(current, candidate PlayerPresence) PlayerPresence {
	if candidate.Presence.Priority() > current.Presence.Priority() {
		return candidate
	}
	return current
}
