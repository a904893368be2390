package avrcp

import (
	"fmt"
	"strconv"
)

// MediaAttributes is a snapshot of the current track's element
// attributes. The zero value means "no track".
type MediaAttributes struct {
	Exists        bool
	Title         string
	Artist        string
	Album         string
	TrackNumber   int64
	TotalTracks   int64
	Genre         string
	PlayingTimeMs int64
}

// Equal compares everything a track-changed notification keys on.
// PlayingTimeMs participates so a re-encoded copy of the same title
// still counts as a change.
func (m MediaAttributes) Equal(other MediaAttributes) bool {
	if m.Exists != other.Exists {
		return false
	}
	if !m.Exists {
		return true
	}
	return m.Title == other.Title &&
		m.Artist == other.Artist &&
		m.Album == other.Album &&
		m.TrackNumber == other.TrackNumber &&
		m.TotalTracks == other.TotalTracks &&
		m.Genre == other.Genre &&
		m.PlayingTimeMs == other.PlayingTimeMs
}

// Attribute returns the string value for one element attribute id, the
// empty string when unset or unknown.
func (m MediaAttributes) Attribute(id int) string {
	if !m.Exists {
		return ""
	}
	switch id {
	case AttrTitle:
		return m.Title
	case AttrArtist:
		return m.Artist
	case AttrAlbum:
		return m.Album
	case AttrTrackNumber:
		return strconv.FormatInt(m.TrackNumber, 10)
	case AttrTotalTracks:
		return strconv.FormatInt(m.TotalTracks, 10)
	case AttrGenre:
		return m.Genre
	case AttrPlayingTime:
		return strconv.FormatInt(m.PlayingTimeMs, 10)
	default:
		return ""
	}
}

// Response builds the attribute map for a GetElementAttributes
// request. An empty ids slice means "all". Devices with the media
// attribute quirk get blank strings for everything but the title.
func (m MediaAttributes) Response(ids []int, titleOnly bool) map[int]string {
	if len(ids) == 0 {
		ids = []int{AttrTitle, AttrArtist, AttrAlbum, AttrTrackNumber,
			AttrTotalTracks, AttrGenre, AttrPlayingTime}
	}
	out := make(map[int]string, len(ids))
	for _, id := range ids {
		if titleOnly && id != AttrTitle {
			out[id] = ""
			continue
		}
		out[id] = m.Attribute(id)
	}
	return out
}

func (m MediaAttributes) String() string {
	if !m.Exists {
		return "[MediaAttributes: none]"
	}
	return fmt.Sprintf("[MediaAttributes: %s - %s by %s (%d %d/%d) %s]",
		m.Title, m.Album, m.Artist, m.PlayingTimeMs, m.TrackNumber,
		m.TotalTracks, m.Genre)
}
